package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tickerstream/internal/browser"
	"tickerstream/internal/model"
)

// Errors
var (
	// ErrSymbolNotFound means the symbol failed existence validation:
	// its page could not be loaded.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrNoSession means Scrape was called for a symbol without a Ready session.
	ErrNoSession = errors.New("no ready session for symbol")
)

// ScrapeError wraps a transient scrape failure (element wait timeout,
// unparsable price text, lost page). The session survives it.
type ScrapeError struct {
	Symbol string
	Err    error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scrape %s: %v", e.Symbol, e.Err)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

type entryState int

const (
	statePending entryState = iota
	stateReady
)

// entry is one symbol's session slot. done closes when creation finishes,
// success or failure; err is set before done closes.
type entry struct {
	state entryState
	sess  browser.Session
	done  chan struct{}
	err   error
}

// Config holds Session Pool settings.
type Config struct {
	URLTemplate   string        // Symbol page URL, %s = normalized symbol
	PriceSelector string        // CSS selector for the price element
	ScrapeTimeout time.Duration // Deadline for the price element wait
}

// Pool maps each watched symbol to exactly one browser session.
type Pool struct {
	cfg      Config
	provider browser.Provider
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// NewPool creates a new Session Pool.
func NewPool(cfg Config, provider browser.Provider, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
		entries:  make(map[string]*entry),
	}
}

// Ensure validates that symbol exists and has a live session, creating one
// if needed. Concurrent calls for the same new symbol share one creation
// attempt. Returns ErrSymbolNotFound when the page cannot be loaded.
func (p *Pool) Ensure(ctx context.Context, symbol string) error {
	p.mu.Lock()
	if e, ok := p.entries[symbol]; ok {
		p.mu.Unlock()
		return p.await(ctx, e)
	}

	// Install the Pending entry before any I/O so a concurrent Ensure for
	// the same symbol finds it and waits instead of creating a second session.
	e := &entry{state: statePending, done: make(chan struct{})}
	p.entries[symbol] = e
	p.mu.Unlock()

	p.create(symbol, e)
	return p.await(ctx, e)
}

// await blocks until the entry's creation settles or ctx expires.
func (p *Pool) await(ctx context.Context, e *entry) error {
	select {
	case <-e.done:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// create performs the session creation bound to a Pending entry. It runs
// with the pool's own lifetime rather than any single caller's context:
// the attempt is shared by every waiter, so no one caller may cancel it.
func (p *Pool) create(symbol string, e *entry) {
	url := fmt.Sprintf(p.cfg.URLTemplate, symbol)
	sess, err := p.provider.Open(context.Background(), url)

	p.mu.Lock()
	if err != nil {
		delete(p.entries, symbol)
		e.err = fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
		p.mu.Unlock()
		close(e.done)

		p.logger.Warn("session creation failed", "symbol", symbol, "err", err)
		return
	}

	e.sess = sess
	e.state = stateReady
	p.mu.Unlock()
	close(e.done)

	p.logger.Info("session ready", "symbol", symbol, "url", url)
}

// Scrape reads the current price from the symbol's page. Requires a Ready
// session. Failures are returned as *ScrapeError and leave the session up.
func (p *Pool) Scrape(ctx context.Context, symbol string) (float64, error) {
	p.mu.Lock()
	e, ok := p.entries[symbol]
	if !ok || e.state != stateReady {
		p.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrNoSession, symbol)
	}
	sess := e.sess
	p.mu.Unlock()

	text, err := sess.WaitText(ctx, p.cfg.PriceSelector, p.cfg.ScrapeTimeout)
	if err != nil {
		return 0, &ScrapeError{Symbol: symbol, Err: err}
	}

	price, err := model.ParsePrice(text)
	if err != nil {
		return 0, &ScrapeError{Symbol: symbol, Err: fmt.Errorf("%w: %q", err, text)}
	}

	return price, nil
}

// Teardown closes and removes the symbol's session. A Pending entry is
// awaited first. Close errors are logged and swallowed; Teardown never
// fails and repeat calls are no-ops.
func (p *Pool) Teardown(symbol string) {
	p.mu.Lock()
	e, ok := p.entries[symbol]
	p.mu.Unlock()
	if !ok {
		return
	}

	<-e.done

	p.mu.Lock()
	cur, ok := p.entries[symbol]
	if !ok || cur != e {
		// Creation failed, another teardown won, or the symbol was
		// re-created since. Nothing of ours to close.
		p.mu.Unlock()
		return
	}
	delete(p.entries, symbol)
	p.mu.Unlock()

	p.closeSession(symbol, e.sess)
}

// Shutdown tears down every remaining session. Used on process exit.
func (p *Pool) Shutdown(ctx context.Context) {
	for _, symbol := range p.Active() {
		select {
		case <-ctx.Done():
			p.logger.Warn("session pool shutdown timed out")
			return
		default:
		}
		p.Teardown(symbol)
	}
	p.logger.Info("session pool shut down")
}

// Active returns the symbols that currently hold an entry (Pending or Ready).
func (p *Pool) Active() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	symbols := make([]string, 0, len(p.entries))
	for s := range p.entries {
		symbols = append(symbols, s)
	}
	return symbols
}

// Count returns the number of entries. Exposed as a metrics gauge.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *Pool) closeSession(symbol string, sess browser.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sess.Close(ctx); err != nil {
		p.logger.Warn("error closing session", "symbol", symbol, "err", err)
		return
	}
	p.logger.Info("session closed", "symbol", symbol)
}
