package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tickerstream/internal/broadcast"
	"tickerstream/internal/browser"
	"tickerstream/internal/cache"
	"tickerstream/internal/config"
	"tickerstream/internal/connection"
	"tickerstream/internal/metrics"
	"tickerstream/internal/poller"
	"tickerstream/internal/registry"
	"tickerstream/internal/session"
	"tickerstream/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/server.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting tickerstream",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load .env before the config file so ${VAR} expansion sees it.
	// A missing .env is fine.
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded .env")
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"listen_addr", cfg.Listen.Addr,
		"poll_interval", cfg.Poller.Interval,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Launch the browser. Without a rendering provider there is nothing
	// to serve; a startup failure here is fatal.
	chrome, err := browser.Start(ctx, browser.Config{
		ExecPath:   cfg.Browser.ExecPath,
		Headless:   cfg.Browser.Headless,
		NavTimeout: cfg.Browser.NavTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to launch browser", "error", err)
		os.Exit(1)
	}
	defer chrome.Stop()

	// Wire the core, leaf to root. The cache's change handler is
	// installed last because broadcaster and registry refer to each
	// other through it.
	pool := session.NewPool(session.Config{
		URLTemplate:   cfg.Browser.URLTemplate,
		PriceSelector: cfg.Browser.PriceSelector,
		ScrapeTimeout: cfg.Browser.ScrapeTimeout,
	}, chrome, logger)

	priceCache := cache.New(nil, logger)
	reg := registry.New(pool, priceCache, logger)

	mgr := connection.NewManager(connection.Config{
		WriteTimeout:   cfg.Connections.WriteTimeout,
		PingInterval:   cfg.Connections.PingInterval,
		PongWait:       cfg.Connections.PongWait,
		SendBufferSize: cfg.Connections.SendBufferSize,
		MaxMessageSize: cfg.Connections.MaxMessageSize,
	}, &commands{registry: reg, logger: logger}, logger)
	mgr.SetMessageCounter(func(action string) {
		metrics.MessagesTotal.WithLabelValues(action).Inc()
	})
	mgr.SetDropCounter(metrics.UpdatesDropped.Inc)

	caster := broadcast.New(reg, mgr, logger)
	caster.SetCounters(metrics.BroadcastsTotal.Inc, metrics.BroadcastsSkipped.Inc)
	priceCache.SetHandler(caster)

	scrapePoller := poller.New(poller.Config{
		Interval:    cfg.Poller.Interval,
		Concurrency: cfg.Poller.Concurrency,
		Timeout:     cfg.Poller.Timeout,
	}, reg, pool, priceCache, logger)
	scrapePoller.SetCounters(
		func() { metrics.ScrapesTotal.WithLabelValues("ok").Inc() },
		func() { metrics.ScrapesTotal.WithLabelValues("error").Inc() },
	)

	metrics.RegisterGauges(mgr.ClientCount, reg.WatchedCount, pool.Count)

	// Ops server: health checks and Prometheus metrics.
	opsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: createOpsHandler(cfg.Metrics.Path, reg, pool, mgr, logger),
	}
	go func() {
		logger.Info("starting ops server", "port", cfg.Metrics.Port)
		if err := opsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("ops server error", "error", err)
		}
	}()

	// Client-facing WebSocket server.
	wsMux := http.NewServeMux()
	wsMux.Handle("/ws", mgr)
	wsServer := &http.Server{
		Addr:    cfg.Listen.Addr,
		Handler: wsMux,
	}
	go func() {
		logger.Info("starting websocket server", "addr", cfg.Listen.Addr)
		if err := wsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("websocket server error", "error", err)
			cancel()
		}
	}()

	if err := scrapePoller.Start(ctx); err != nil {
		logger.Error("failed to start poller", "error", err)
		os.Exit(1)
	}

	logger.Info("tickerstream running",
		"instance_id", cfg.Instance.ID,
		"ws_url", fmt.Sprintf("ws://localhost%s/ws", cfg.Listen.Addr),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Listen.ShutdownTimeout)
	defer shutdownCancel()

	// Stop order matters: no new commands, then no new scrapes, then
	// release browser sessions.
	wsServer.Shutdown(shutdownCtx)
	if err := scrapePoller.Stop(shutdownCtx); err != nil {
		logger.Warn("poller stop", "error", err)
	}
	if err := mgr.Stop(shutdownCtx); err != nil {
		logger.Warn("connection manager stop", "error", err)
	}
	pool.Shutdown(shutdownCtx)
	opsServer.Shutdown(shutdownCtx)

	logger.Info("tickerstream stopped")
}
