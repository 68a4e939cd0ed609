package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tickerstream/internal/connection"
	"tickerstream/internal/registry"
	"tickerstream/internal/session"
	"tickerstream/internal/version"
)

// createOpsHandler serves health checks and Prometheus metrics.
func createOpsHandler(metricsPath string, reg *registry.Registry, pool *session.Pool, mgr *connection.Manager, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status     string         `json:"status"`
			Version    string         `json:"version"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.String(),
			Components: make(map[string]any),
		}

		watched := reg.Watched()
		health.Components["registry"] = map[string]any{
			"watched_symbols": len(watched),
		}
		health.Components["sessions"] = map[string]any{
			"active": pool.Count(),
		}
		health.Components["connections"] = map[string]any{
			"clients": mgr.ClientCount(),
		}

		// Sessions lag the watch set only transiently; a persistent
		// mismatch means teardown or creation is wedged.
		if pool.Count() < len(watched) {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/watchset", func(w http.ResponseWriter, r *http.Request) {
		watched := reg.Watched()
		type entry struct {
			Symbol      string   `json:"symbol"`
			Subscribers []string `json:"subscribers"`
		}
		entries := make([]entry, 0, len(watched))
		for _, sym := range watched {
			entries = append(entries, entry{Symbol: sym, Subscribers: reg.Subscribers(sym)})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count":   len(entries),
			"symbols": entries,
		})
	})

	mux.Handle(metricsPath, promhttp.Handler())

	return mux
}
