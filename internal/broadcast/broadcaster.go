// Package broadcast fans confirmed price changes out to every live
// subscriber connection.
package broadcast

import (
	"log/slog"

	"tickerstream/internal/model"
)

// SubscriberSource enumerates a symbol's current subscribers.
type SubscriberSource interface {
	Subscribers(symbol string) []string
}

// Sender delivers an update to one subscriber's connection. It reports
// false when the subscriber has no live connection; that is not an error.
type Sender interface {
	Send(subscriber string, update model.PriceUpdate) bool
}

// Broadcaster resolves a changed symbol to its subscribers and sends the
// update through each live connection. Cleanup of dead connections is the
// Connection Manager's job, not ours; missing sockets are skipped.
type Broadcaster struct {
	subscribers SubscriberSource
	sender      Sender
	logger      *slog.Logger

	sent    func() // metrics hooks, optional
	skipped func()
}

// New creates a Broadcaster.
func New(subscribers SubscriberSource, sender Sender, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: subscribers,
		sender:      sender,
		logger:      logger,
	}
}

// SetCounters installs optional per-send metrics hooks.
func (b *Broadcaster) SetCounters(sent, skipped func()) {
	b.sent = sent
	b.skipped = skipped
}

// PriceChanged implements cache.ChangeHandler. A symbol whose subscriber
// set emptied mid-scrape broadcasts to nobody, harmlessly.
func (b *Broadcaster) PriceChanged(symbol string, price float64) {
	update := model.PriceUpdate{Ticker: symbol, Price: price}

	var delivered, missed int
	for _, subscriber := range b.subscribers.Subscribers(symbol) {
		if b.sender.Send(subscriber, update) {
			delivered++
			if b.sent != nil {
				b.sent()
			}
		} else {
			missed++
			if b.skipped != nil {
				b.skipped()
			}
		}
	}

	b.logger.Debug("price update broadcast",
		"symbol", symbol,
		"price", price,
		"delivered", delivered,
		"skipped", missed,
	)
}
