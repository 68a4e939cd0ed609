// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connected client and watched symbol counts
//   - Browser session pool size
//   - Scrape outcomes per tick
//   - Broadcast delivery and skip counts
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScrapesTotal counts scrape attempts by result ("ok" or "error").
	ScrapesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickerstream_scrapes_total",
			Help: "Total scrape attempts by result",
		},
		[]string{"result"},
	)

	// MessagesTotal counts inbound client commands by action.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickerstream_messages_total",
			Help: "Total inbound client commands by action",
		},
		[]string{"action"},
	)

	// BroadcastsTotal counts price updates delivered to client connections.
	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickerstream_broadcasts_total",
			Help: "Total price updates delivered to clients",
		},
	)

	// UpdatesDropped counts price updates discarded against full client
	// outboxes (slow-client backpressure).
	UpdatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickerstream_updates_dropped_total",
			Help: "Total price updates dropped for slow client connections",
		},
	)

	// BroadcastsSkipped counts sends skipped because the subscriber had no
	// live connection.
	BroadcastsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickerstream_broadcasts_skipped_total",
			Help: "Total price updates skipped for subscribers without a live connection",
		},
	)
)

// RegisterGauges wires the live state gauges to their sources. Call once
// at startup after the components exist.
func RegisterGauges(connectedClients, watchedSymbols, activeSessions func() int) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tickerstream_connected_clients",
		Help: "Currently open client connections",
	}, func() float64 { return float64(connectedClients()) })

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tickerstream_watched_symbols",
		Help: "Symbols with at least one subscriber",
	}, func() float64 { return float64(watchedSymbols()) })

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tickerstream_active_sessions",
		Help: "Browser sessions currently held by the session pool",
	}, func() float64 { return float64(activeSessions()) })
}
