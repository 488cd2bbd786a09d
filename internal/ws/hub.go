// Package ws is the server's WebSocket surface: connection registry,
// per-connection read/write pumps, and the event handler that routes
// client requests to the auth and room services.
package ws

import (
	"log/slog"
	"sync"

	"github.com/hexhold/hexhold/internal/model"
	"github.com/hexhold/hexhold/internal/protocol"
)

// Hub tracks live connections and the player identity bound to each.
// A player authenticating from a second connection displaces the first.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
	players map[model.PlayerID]*Client
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger.With(slog.String("component", "hub")),
		clients: make(map[*Client]struct{}),
		players: make(map[model.PlayerID]*Client),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if c.cred != nil && h.players[c.cred.ID] == c {
		delete(h.players, c.cred.ID)
	}
}

// Bind associates an authenticated identity with a connection. An
// existing connection for the same player is closed first.
func (h *Hub) Bind(c *Client, cred model.Credential) {
	h.mu.Lock()
	if prev, ok := h.players[cred.ID]; ok && prev != c {
		prev.closeSlow()
	}
	h.players[cred.ID] = c
	c.cred = &cred
	h.mu.Unlock()

	h.logger.Info("player bound",
		slog.String("player_id", string(cred.ID)),
		slog.String("username", cred.Username),
	)
}

// SendToPlayer delivers an envelope to one player's connection, if any
func (h *Hub) SendToPlayer(id model.PlayerID, env protocol.Envelope) {
	h.mu.RLock()
	c, ok := h.players[id]
	h.mu.RUnlock()
	if ok {
		c.enqueue(env)
	}
}

// BroadcastAuthed sends an envelope to every authenticated connection.
// Used for menu-wide traffic; clients filter by roomId.
func (h *Hub) BroadcastAuthed(except model.PlayerID, env protocol.Envelope) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.players))
	for id, c := range h.players {
		if id == except {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(env)
	}
}

// BroadcastRoom sends an envelope to every member of a room except the
// originating player.
func (h *Hub) BroadcastRoom(room *model.Room, except model.PlayerID, env protocol.Envelope) {
	if room == nil {
		return
	}
	for _, m := range room.Members {
		if m.ID == except {
			continue
		}
		h.SendToPlayer(m.ID, env)
	}
}

// ConnectionCount reports the number of live connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
