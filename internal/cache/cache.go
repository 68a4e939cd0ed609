// Package cache keeps the last known price per symbol and gates
// broadcasts on actual changes.
package cache

import (
	"log/slog"
	"sync"
)

// ChangeHandler receives confirmed price changes.
type ChangeHandler interface {
	PriceChanged(symbol string, price float64)
}

// ChangeHandlerFunc is a function adapter for ChangeHandler.
type ChangeHandlerFunc func(symbol string, price float64)

func (f ChangeHandlerFunc) PriceChanged(symbol string, price float64) {
	f(symbol, price)
}

// Cache stores the last broadcast price per symbol. Entries survive
// subscriber churn and are only lost on process restart.
type Cache struct {
	handler ChangeHandler
	logger  *slog.Logger

	mu     sync.Mutex
	prices map[string]float64
}

// New creates a Price Cache. handler may be nil; changes are then only stored.
func New(handler ChangeHandler, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		handler: handler,
		logger:  logger,
		prices:  make(map[string]float64),
	}
}

// SetHandler installs the change handler. The cache is constructed before
// the broadcaster during wiring, so the handler arrives late; install it
// before any updates flow.
func (c *Cache) SetHandler(handler ChangeHandler) {
	c.handler = handler
}

// Update stores price for symbol and notifies the handler, but only when
// the value differs from the stored one or no value was stored yet.
// Redundant updates are suppressed entirely.
func (c *Cache) Update(symbol string, price float64) {
	c.mu.Lock()
	prev, ok := c.prices[symbol]
	if ok && prev == price {
		c.mu.Unlock()
		return
	}
	c.prices[symbol] = price
	c.mu.Unlock()

	c.logger.Debug("price changed", "symbol", symbol, "price", price)

	// Handler runs outside the lock: it fans out over the network.
	if c.handler != nil {
		c.handler.PriceChanged(symbol, price)
	}
}

// Get returns the last known price for symbol, if any.
func (c *Cache) Get(symbol string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	price, ok := c.prices[symbol]
	return price, ok
}

// Len returns the number of cached prices.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prices)
}
