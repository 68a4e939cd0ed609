package connection

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tickerstream/internal/model"
)

// client is one accepted WebSocket connection.
type client struct {
	id     string // connection id, not the user identity
	conn   *websocket.Conn
	outbox *Outbox
	mgr    *Manager
	logger *slog.Logger

	// userID is bound by the manager on the first identified message.
	// Guarded by mgr.mu.
	userID string

	// done closes when the connection is torn down, releasing the ping
	// loop without waiting out a full ping interval.
	done      chan struct{}
	closeOnce sync.Once
	dropWarn  sync.Once
}

func newClient(id string, conn *websocket.Conn, mgr *Manager) *client {
	c := &client{
		id:     id,
		conn:   conn,
		outbox: NewOutbox(mgr.cfg.SendBufferSize),
		mgr:    mgr,
		logger: mgr.logger.With("conn_id", id),
		done:   make(chan struct{}),
	}
	c.outbox.OnDrop(func() {
		if mgr.dropCount != nil {
			mgr.dropCount()
		}
		c.dropWarn.Do(func() {
			c.logger.Warn("outbox full, dropping price updates")
		})
	})
	return c
}

// push queues a marshalled update for delivery. False when the connection
// is already closed.
func (c *client) push(update model.PriceUpdate) bool {
	data, err := json.Marshal(update)
	if err != nil {
		c.logger.Error("marshal update", "err", err)
		return false
	}
	return c.outbox.Push(data)
}

// readPump consumes inbound frames until the connection dies, then
// triggers unregistration and cascading cleanup.
func (c *client) readPump() {
	defer c.mgr.wg.Done()
	defer c.close()

	c.conn.SetReadLimit(c.mgr.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.mgr.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.mgr.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("read failed", "err", err)
			}
			return
		}

		var cmd model.ClientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.logger.Warn("dropping malformed message", "err", err)
			continue
		}

		c.mgr.handleCommand(c, cmd)
	}
}

// writePump drains the outbox onto the wire.
func (c *client) writePump() {
	defer c.mgr.wg.Done()
	defer c.conn.Close()

	for {
		msg, ok := c.outbox.Pop()
		if !ok {
			// Outbox closed: say goodbye if the socket is still up.
			c.conn.SetWriteDeadline(time.Now().Add(c.mgr.cfg.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}

		c.conn.SetWriteDeadline(time.Now().Add(c.mgr.cfg.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.logger.Warn("write failed", "err", err)
			return
		}
	}
}

// pingLoop keeps the connection alive. WriteControl is safe to call
// concurrently with the write pump.
func (c *client) pingLoop() {
	defer c.mgr.wg.Done()

	ticker := time.NewTicker(c.mgr.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-c.mgr.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.mgr.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// close tears the connection down exactly once: unregister from the
// manager (cascading subscription cleanup included), stop the write pump,
// close the socket.
func (c *client) close() {
	c.closeOnce.Do(func() {
		c.mgr.unregister(c)
		c.outbox.Close()
		c.conn.Close()
		close(c.done)
	})
}
