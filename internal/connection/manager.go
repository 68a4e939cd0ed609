package connection

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tickerstream/internal/model"
)

// Manager accepts WebSocket connections, routes client commands to the
// CommandHandler, and resolves subscriber identities to live connections
// for the broadcaster.
type Manager struct {
	cfg      Config
	handler  CommandHandler
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	byUser  map[string]*client
	clients map[*client]struct{}
	closed  bool

	done chan struct{}
	wg   sync.WaitGroup

	// metrics hooks, optional
	messageCount func(action string)
	dropCount    func()
}

// NewManager creates a Connection Manager.
func NewManager(cfg Config, handler CommandHandler, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Subscribers are unauthenticated; accept any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		byUser:  make(map[string]*client),
		clients: make(map[*client]struct{}),
		done:    make(chan struct{}),
	}
}

// SetMessageCounter installs an optional per-command metrics hook, keyed
// by action.
func (m *Manager) SetMessageCounter(count func(action string)) {
	m.messageCount = count
}

// SetDropCounter installs an optional metrics hook counting updates
// discarded against full client outboxes.
func (m *Manager) SetDropCounter(count func()) {
	m.dropCount = count
}

// ServeHTTP upgrades the request and starts the connection's pumps.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := newClient(uuid.NewString(), conn, m)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.clients[c] = struct{}{}
	// Registered and counted under the same lock hold that checked
	// closed, so Stop never sees the waitgroup grow after it balances.
	m.wg.Add(3)
	m.mu.Unlock()

	m.logger.Info("client connected", "conn_id", c.id, "remote", r.RemoteAddr)

	go c.readPump()
	go c.writePump()
	go c.pingLoop()
}

// Send queues an update for the subscriber's live connection. Reports
// false when the subscriber has no connection; the broadcaster skips it.
func (m *Manager) Send(subscriber string, update model.PriceUpdate) bool {
	m.mu.Lock()
	c, ok := m.byUser[subscriber]
	m.mu.Unlock()

	if !ok {
		return false
	}
	return c.push(update)
}

// ClientCount returns the number of open connections. Exposed as a
// metrics gauge.
func (m *Manager) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Stop closes every connection and waits for the pumps to drain.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	open := make([]*client, 0, len(m.clients))
	for c := range m.clients {
		open = append(open, c)
	}
	m.mu.Unlock()

	close(m.done)
	for _, c := range open {
		c.close()
	}

	doneCh := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		m.logger.Info("connection manager stopped")
		return nil
	case <-ctx.Done():
		m.logger.Warn("connection manager stop timed out")
		return ctx.Err()
	}
}

// handleCommand executes one inbound message from a client. Every
// identified message rebinds identity -> connection, which is what makes
// reconnects work without a handshake.
func (m *Manager) handleCommand(c *client, cmd model.ClientCommand) {
	if cmd.UserID == "" {
		m.logger.Warn("dropping message without userId", "conn_id", c.id, "action", cmd.Action)
		return
	}

	m.bind(c, cmd.UserID)

	if m.messageCount != nil {
		m.messageCount(cmd.Action)
	}

	switch cmd.Action {
	case model.ActionAddTicker:
		m.addTicker(c, cmd)
	case model.ActionRemoveTicker:
		m.handler.Unsubscribe(cmd.Ticker, cmd.UserID)
	default:
		m.logger.Warn("unknown action", "conn_id", c.id, "action", cmd.Action)
	}
}

func (m *Manager) addTicker(c *client, cmd model.ClientCommand) {
	symbol, price, hasPrice, err := m.handler.Subscribe(context.Background(), cmd.Ticker, cmd.UserID)
	if err != nil {
		reply := symbol
		if reply == "" {
			reply = cmd.Ticker
		}
		c.push(model.PriceUpdate{Ticker: reply, Price: model.PriceNotFound})
		return
	}

	// Reply immediately with the cached price when one exists. Nothing is
	// sent otherwise; the first scrape will deliver the first price.
	if hasPrice {
		c.push(model.PriceUpdate{Ticker: symbol, Price: price})
	}
}

// bind records identity -> connection, displacing any prior binding
// (last-writer-wins). The displaced socket stays open; its close handler
// will find itself unbound and skip the cascade.
func (m *Manager) bind(c *client, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.userID == userID && m.byUser[userID] == c {
		return
	}
	c.userID = userID
	m.byUser[userID] = c
}

// unregister removes the connection and, when it still owns its
// identity's binding, cascades subscription cleanup for that identity.
func (m *Manager) unregister(c *client) {
	m.mu.Lock()
	delete(m.clients, c)

	userID := c.userID
	cascade := userID != "" && m.byUser[userID] == c
	if cascade {
		delete(m.byUser, userID)
	}
	m.mu.Unlock()

	m.logger.Info("client disconnected", "conn_id", c.id, "user_id", userID)

	if cascade {
		m.handler.DropSubscriber(userID)
	}
}
