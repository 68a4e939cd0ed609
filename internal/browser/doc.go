// Package browser abstracts the rendering provider used to load and
// scrape symbol pages. The Provider interface is what the rest of the
// service depends on; the chromedp implementation drives a headless
// Chrome instance over the DevTools protocol.
package browser
