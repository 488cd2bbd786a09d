package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hexhold/hexhold/internal/model"
	"github.com/hexhold/hexhold/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 32
)

// Client is one live WebSocket connection. Requests are processed in
// order on the read pump; outbound traffic is serialized through the
// send channel so the write pump is the sole writer on the socket.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	logger *slog.Logger
	send   chan protocol.Envelope
	done   chan struct{}

	// cred is set once on successful register/auth, from the read pump
	cred *model.Credential

	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		logger: logger,
		send:   make(chan protocol.Envelope, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// Credential returns the bound identity, or nil before auth
func (c *Client) Credential() *model.Credential {
	return c.cred
}

// enqueue hands an envelope to the write pump. A client whose buffer
// is full is dropped rather than allowed to stall broadcasts.
func (c *Client) enqueue(env protocol.Envelope) {
	select {
	case <-c.done:
	case c.send <- env:
	default:
		c.logger.Warn("dropping slow client")
		c.closeSlow()
	}
}

func (c *Client) closeSlow() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump(h *Handler) {
	defer func() {
		h.disconnected(c)
		c.hub.unregister(c)
		c.closeSlow()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env protocol.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("read error", slog.Any("error", err))
			}
			return
		}
		h.handle(c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeSlow()
	}()

	for {
		select {
		case <-c.done:
			return
		case env := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
