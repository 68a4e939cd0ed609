// Package registry tracks which subscribers watch which symbols.
//
// The watch set is always derived from the subscription map, never stored
// separately. A symbol enters the registry only after its session has been
// validated, and the last subscriber leaving triggers exactly one session
// teardown.
package registry
