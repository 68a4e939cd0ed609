package connection

import (
	"context"
	"time"
)

// Config configures the Connection Manager.
type Config struct {
	WriteTimeout   time.Duration // Write deadline per outbound frame
	PingInterval   time.Duration // How often to ping each client
	PongWait       time.Duration // Read deadline; reset on every pong
	SendBufferSize int           // Initial per-connection outbox capacity
	MaxMessageSize int64         // Inbound frame size limit
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:   5 * time.Second,
		PingInterval:   50 * time.Second,
		PongWait:       60 * time.Second,
		SendBufferSize: 256,
		MaxMessageSize: 4096,
	}
}

// CommandHandler executes client commands against the subscription core.
type CommandHandler interface {
	// Subscribe adds the subscriber to the ticker. It returns the
	// normalized symbol, the cached price when one exists, and an error
	// when the ticker fails existence validation.
	Subscribe(ctx context.Context, ticker, userID string) (symbol string, price float64, hasPrice bool, err error)

	// Unsubscribe removes the subscriber from the ticker.
	Unsubscribe(ticker, userID string)

	// DropSubscriber removes the subscriber from every symbol. Invoked on
	// disconnect.
	DropSubscriber(userID string)
}
