// Package poller drives scraping: every tick it snapshots the watch set
// and scrapes each watched symbol concurrently, feeding results into the
// price cache. One symbol's failure never blocks the others.
package poller
