package main

import (
	"context"
	"log/slog"

	"tickerstream/internal/model"
	"tickerstream/internal/registry"
)

// commands adapts inbound client commands onto the subscription registry,
// normalizing tickers at the boundary so everything below only sees
// canonical symbols.
type commands struct {
	registry *registry.Registry
	logger   *slog.Logger
}

func (c *commands) Subscribe(ctx context.Context, ticker, userID string) (string, float64, bool, error) {
	symbol, err := model.NormalizeSymbol(ticker)
	if err != nil {
		return "", 0, false, err
	}

	price, hasPrice, err := c.registry.Add(ctx, symbol, userID)
	if err != nil {
		c.logger.Warn("subscription rejected", "symbol", symbol, "user_id", userID, "err", err)
		return symbol, 0, false, err
	}

	c.logger.Info("subscribed", "symbol", symbol, "user_id", userID)
	return symbol, price, hasPrice, nil
}

func (c *commands) Unsubscribe(ticker, userID string) {
	symbol, err := model.NormalizeSymbol(ticker)
	if err != nil {
		return
	}
	c.registry.Remove(symbol, userID)
	c.logger.Info("unsubscribed", "symbol", symbol, "user_id", userID)
}

func (c *commands) DropSubscriber(userID string) {
	c.registry.RemoveSubscriber(userID)
	c.logger.Info("subscriber dropped", "user_id", userID)
}
