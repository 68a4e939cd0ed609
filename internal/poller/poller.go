package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// WatchSource provides the symbols to scrape each tick.
type WatchSource interface {
	Watched() []string
}

// Scraper reads the current price for one symbol.
type Scraper interface {
	Scrape(ctx context.Context, symbol string) (float64, error)
}

// PriceSink receives scraped prices.
type PriceSink interface {
	Update(symbol string, price float64)
}

// PriceSinkFunc is a function adapter for PriceSink.
type PriceSinkFunc func(symbol string, price float64)

func (f PriceSinkFunc) Update(symbol string, price float64) {
	f(symbol, price)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Tick interval
	Concurrency int           // Max concurrent scrapes per tick
	Timeout     time.Duration // Per-scrape deadline
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    2 * time.Second,
		Concurrency: 8,
		Timeout:     10 * time.Second,
	}
}

// Poller periodically scrapes every watched symbol.
type Poller struct {
	cfg     Config
	watch   WatchSource
	scraper Scraper
	sink    PriceSink
	logger  *slog.Logger

	// metrics hooks, optional
	scrapeOK  func()
	scrapeErr func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, watch WatchSource, scraper Scraper, sink PriceSink, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:     cfg,
		watch:   watch,
		scraper: scraper,
		sink:    sink,
		logger:  logger,
	}
}

// SetCounters installs optional per-scrape metrics hooks.
func (p *Poller) SetCounters(ok, failed func()) {
	p.scrapeOK = ok
	p.scrapeErr = failed
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("scrape poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("scrape poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Tick immediately on start.
	p.tick()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// tick scrapes all watched symbols concurrently. Scrape failures are
// transient: they are logged, counted, and retried next tick without
// touching the session or the cache.
func (p *Poller) tick() {
	start := time.Now()

	symbols := p.watch.Watched()
	if len(symbols) == 0 {
		p.logger.Debug("no symbols to watch")
		return
	}

	var scraped, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)

	for _, symbol := range symbols {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
			defer cancel()

			price, err := p.scraper.Scrape(ctx, symbol)
			if err != nil {
				p.logger.Warn("scrape failed", "symbol", symbol, "err", err)
				failed.Add(1)
				if p.scrapeErr != nil {
					p.scrapeErr()
				}
				return nil
			}

			p.sink.Update(symbol, price)
			scraped.Add(1)
			if p.scrapeOK != nil {
				p.scrapeOK()
			}
			return nil
		})
	}

	g.Wait()

	p.logger.Info("tick complete",
		"symbols", len(symbols),
		"scraped", scraped.Load(),
		"failed", failed.Load(),
		"duration", time.Since(start),
	)
}
