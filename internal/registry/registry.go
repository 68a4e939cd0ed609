package registry

import (
	"context"
	"log/slog"
	"sync"
)

// SessionValidator ensures and tears down per-symbol sessions.
type SessionValidator interface {
	// Ensure validates the symbol and guarantees a live session for it.
	Ensure(ctx context.Context, symbol string) error

	// Teardown releases the symbol's session. Never fails.
	Teardown(symbol string)
}

// PriceSource supplies the last known price for a symbol.
type PriceSource interface {
	Get(symbol string) (float64, bool)
}

// Registry maps symbols to their subscriber sets. All symbols passed in
// must already be normalized.
type Registry struct {
	sessions SessionValidator
	prices   PriceSource
	logger   *slog.Logger

	mu      sync.Mutex
	settled *sync.Cond // signals completed teardowns
	subs    map[string]map[string]struct{}
	tearing map[string]bool
}

// New creates a Subscription Registry.
func New(sessions SessionValidator, prices PriceSource, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		sessions: sessions,
		prices:   prices,
		logger:   logger,
		subs:     make(map[string]map[string]struct{}),
		tearing:  make(map[string]bool),
	}
	r.settled = sync.NewCond(&r.mu)
	return r
}

// Add subscribes subscriber to symbol. The symbol is validated through the
// Session Pool first; on validation failure nothing is mutated and the
// error is returned. On success the last cached price is returned when one
// exists. Re-adding an existing pair is a no-op.
func (r *Registry) Add(ctx context.Context, symbol, subscriber string) (price float64, hasPrice bool, err error) {
	for {
		// Validation (and possibly session creation) blocks on browser
		// I/O, so it happens before the registry lock is taken. A symbol
		// that fails here never enters the watch set.
		if err := r.sessions.Ensure(ctx, symbol); err != nil {
			return 0, false, err
		}

		r.mu.Lock()
		if r.tearing[symbol] {
			// A last-subscriber teardown is in flight: the session just
			// validated may be dying under us. Wait for it to finish,
			// then re-validate so the insert lands on a live session.
			for r.tearing[symbol] {
				r.settled.Wait()
			}
			r.mu.Unlock()
			continue
		}
		set, ok := r.subs[symbol]
		if !ok {
			set = make(map[string]struct{})
			r.subs[symbol] = set
			r.logger.Info("symbol added to watch set", "symbol", symbol)
		}
		set[subscriber] = struct{}{}
		r.mu.Unlock()
		break
	}

	price, hasPrice = r.prices.Get(symbol)
	return price, hasPrice, nil
}

// Remove unsubscribes subscriber from symbol. When the last subscriber
// leaves, the symbol's entry is deleted and its session torn down exactly
// once. Removing an absent pair is a no-op.
func (r *Registry) Remove(symbol, subscriber string) {
	r.mu.Lock()
	set, ok := r.subs[symbol]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(set, subscriber)
	emptied := len(set) == 0
	if emptied {
		delete(r.subs, symbol)
		r.tearing[symbol] = true
	}
	r.mu.Unlock()

	if emptied {
		r.logger.Info("symbol removed from watch set", "symbol", symbol)
		r.sessions.Teardown(symbol)
		r.settleTeardown(symbol)
	}
}

// settleTeardown clears the symbol's in-flight teardown mark and wakes
// any Add waiting to re-validate against a fresh session.
func (r *Registry) settleTeardown(symbols ...string) {
	r.mu.Lock()
	for _, symbol := range symbols {
		delete(r.tearing, symbol)
	}
	r.mu.Unlock()
	r.settled.Broadcast()
}

// RemoveSubscriber removes the identity from every symbol it subscribed
// to, tearing down each symbol that becomes empty. Used on client
// disconnect.
func (r *Registry) RemoveSubscriber(subscriber string) {
	r.mu.Lock()
	var emptied []string
	for symbol, set := range r.subs {
		if _, ok := set[subscriber]; !ok {
			continue
		}
		delete(set, subscriber)
		if len(set) == 0 {
			delete(r.subs, symbol)
			r.tearing[symbol] = true
			emptied = append(emptied, symbol)
		}
	}
	r.mu.Unlock()

	for _, symbol := range emptied {
		r.logger.Info("symbol removed from watch set", "symbol", symbol, "subscriber", subscriber)
		r.sessions.Teardown(symbol)
	}
	r.settleTeardown(emptied...)
}

// Watched returns the derived watch set: every symbol with at least one
// subscriber.
func (r *Registry) Watched() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	symbols := make([]string, 0, len(r.subs))
	for s := range r.subs {
		symbols = append(symbols, s)
	}
	return symbols
}

// Subscribers returns a snapshot of the symbol's subscriber identities.
func (r *Registry) Subscribers(symbol string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.subs[symbol]
	if !ok {
		return nil
	}
	subscribers := make([]string, 0, len(set))
	for s := range set {
		subscribers = append(subscribers, s)
	}
	return subscribers
}

// WatchedCount returns the watch set size. Exposed as a metrics gauge.
func (r *Registry) WatchedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
