package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hexhold/hexhold/internal/model"
	"github.com/hexhold/hexhold/internal/protocol"
	"github.com/hexhold/hexhold/internal/services/auth"
	"github.com/hexhold/hexhold/internal/services/room"
)

const requestTimeout = 10 * time.Second

var errNotAuthenticated = fmt.Errorf("%w: not authenticated", model.ErrProtocol)

// Handler upgrades HTTP requests to WebSocket sessions and routes each
// request envelope to the appropriate service. Every request receives
// exactly one acknowledging response carrying the request's seq.
type Handler struct {
	auth     *auth.Service
	rooms    *room.Coordinator
	hub      *Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new Handler
func NewHandler(authService *auth.Service, rooms *room.Coordinator, hub *Hub, logger *slog.Logger) *Handler {
	return &Handler{
		auth:   authService,
		rooms:  rooms,
		hub:    hub,
		logger: logger.With(slog.String("component", "ws")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Game clients are native apps, not browsers
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the connection and runs its pumps
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.Any("error", err))
		return
	}

	c := newClient(h.hub, conn, h.logger)
	h.hub.register(c)

	go c.writePump()
	c.readPump(h)
}

// handle routes one request envelope and sends its ack
func (h *Handler) handle(c *Client, env protocol.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	var resp protocol.Response
	switch env.Event {
	case protocol.EventRegister:
		resp = h.handleRegister(ctx, c, env.Data)
	case protocol.EventAuth:
		resp = h.handleAuth(ctx, c, env.Data)
	case protocol.EventHostRoom:
		resp = h.authed(c, func(cred model.Credential) protocol.Response {
			return h.handleHostRoom(ctx, cred)
		})
	case protocol.EventJoinRoom:
		resp = h.authed(c, func(cred model.Credential) protocol.Response {
			return h.handleJoinRoom(ctx, cred, env.Data)
		})
	case protocol.EventLeaveRoom:
		resp = h.authed(c, func(cred model.Credential) protocol.Response {
			return h.handleLeaveRoom(ctx, cred, env.Data)
		})
	case protocol.EventStartMatch:
		resp = h.authed(c, func(cred model.Credential) protocol.Response {
			return h.handleStartMatch(ctx, cred, env.Data)
		})
	case protocol.EventReady:
		resp = h.authed(c, func(cred model.Credential) protocol.Response {
			return h.handleReady(ctx, cred, env.Data)
		})
	case protocol.EventMessage:
		resp = h.authed(c, func(cred model.Credential) protocol.Response {
			return h.handleMessage(ctx, cred, env.Data)
		})
	case protocol.EventTowers:
		resp = h.authed(c, func(cred model.Credential) protocol.Response {
			return h.handleTowers(ctx, cred, env.Data)
		})
	default:
		resp = protocol.Fail(fmt.Errorf("%w: unknown event %q", model.ErrProtocol, env.Event))
	}

	raw, _ := json.Marshal(resp)
	c.enqueue(protocol.Envelope{Event: env.Event, Ack: env.Seq, Data: raw})
}

func (h *Handler) authed(c *Client, fn func(model.Credential) protocol.Response) protocol.Response {
	cred := c.Credential()
	if cred == nil {
		return protocol.Fail(errNotAuthenticated)
	}
	return fn(*cred)
}

func (h *Handler) handleRegister(ctx context.Context, c *Client, data json.RawMessage) protocol.Response {
	var req protocol.RegisterRequest
	if err := protocol.DecodeRequest(data, &req); err != nil {
		return protocol.Fail(err)
	}

	player, err := h.auth.Register(ctx, req.Username, req.Passhash)
	if err != nil {
		return protocol.Fail(err)
	}

	h.hub.Bind(c, player.Credential())
	return protocol.Ok(protocol.AuthData{
		ID:       string(player.ID),
		Username: player.Username,
		Passhash: player.Passhash,
		Color:    player.ColorHex,
	})
}

func (h *Handler) handleAuth(ctx context.Context, c *Client, data json.RawMessage) protocol.Response {
	var req protocol.AuthRequest
	if err := protocol.DecodeRequest(data, &req); err != nil {
		return protocol.Fail(err)
	}

	player, err := h.auth.Authenticate(ctx, req.ID, req.Username, req.Passhash)
	if err != nil {
		return protocol.Fail(err)
	}

	h.hub.Bind(c, player.Credential())
	return protocol.Ok(protocol.AuthData{
		ID:       string(player.ID),
		Username: player.Username,
		Passhash: player.Passhash,
		Color:    player.ColorHex,
	})
}

func (h *Handler) handleHostRoom(ctx context.Context, cred model.Credential) protocol.Response {
	r, err := h.rooms.HostRoom(ctx, cred)
	if err != nil {
		return protocol.Fail(err)
	}
	return protocol.OkUsers(protocol.HostRoomData{RoomID: string(r.ID)}, protocol.Roster(r.Members))
}

func (h *Handler) handleJoinRoom(ctx context.Context, cred model.Credential, data json.RawMessage) protocol.Response {
	var req protocol.JoinRoomRequest
	if err := protocol.DecodeRequest(data, &req); err != nil {
		return protocol.Fail(err)
	}

	code, err := model.NormalizeRoomCode(req.RoomID)
	if err != nil {
		return protocol.Fail(err)
	}

	r, err := h.rooms.JoinRoom(ctx, code, cred)
	if err != nil {
		return protocol.Fail(err)
	}

	h.pushRoster(r, cred.ID)
	return protocol.OkUsers(protocol.JoinRoomData{RoomID: string(r.ID)}, protocol.Roster(r.Members))
}

func (h *Handler) handleLeaveRoom(ctx context.Context, cred model.Credential, data json.RawMessage) protocol.Response {
	var req protocol.LeaveRoomRequest
	if err := protocol.DecodeRequest(data, &req); err != nil {
		return protocol.Fail(err)
	}

	r, err := h.rooms.LeaveRoom(ctx, model.RoomID(req.RoomID), cred.ID)
	if err != nil {
		return protocol.Fail(err)
	}

	h.pushRoster(r, cred.ID)
	return protocol.Ok(protocol.LeaveRoomData{RoomID: req.RoomID})
}

func (h *Handler) handleStartMatch(ctx context.Context, cred model.Credential, data json.RawMessage) protocol.Response {
	var req protocol.StartMatchRequest
	if err := protocol.DecodeRequest(data, &req); err != nil {
		return protocol.Fail(err)
	}

	r, err := h.rooms.StartMatch(ctx, model.RoomID(req.RoomID), cred.ID)
	if err != nil {
		return protocol.Fail(err)
	}

	start := protocol.StartData{RoomID: string(r.ID), Users: protocol.Roster(r.Members)}
	raw, _ := json.Marshal(start)
	h.hub.BroadcastRoom(r, cred.ID, protocol.Envelope{Event: protocol.EventPushStart, Data: raw})

	return protocol.Ok(start)
}

func (h *Handler) handleReady(ctx context.Context, cred model.Credential, data json.RawMessage) protocol.Response {
	var req protocol.ReadyRequest
	if err := protocol.DecodeRequest(data, &req); err != nil {
		return protocol.Fail(err)
	}

	code := model.RoomID(req.RoomID)
	allReady, match, err := h.rooms.Ready(ctx, code, cred.ID)
	if err != nil {
		return protocol.Fail(err)
	}

	if allReady && match != nil {
		r, err := h.rooms.GetRoom(ctx, code)
		if err != nil {
			return protocol.Fail(err)
		}
		// Base assignment differs per viewer, so each member gets
		// their own push. The sender receives one too.
		for _, m := range r.Members {
			friendly, enemy, ok := match.BasePair(m.ID)
			if !ok {
				continue
			}
			raw, _ := json.Marshal(protocol.AllReadyData{
				RoomID:       string(code),
				FriendlyBase: friendly,
				EnemyBase:    enemy,
			})
			h.hub.SendToPlayer(m.ID, protocol.Envelope{Event: protocol.EventPushAllReady, Data: raw})
		}
	}

	return protocol.Ok(protocol.ReadyData{RoomID: req.RoomID, AllReady: allReady})
}

func (h *Handler) handleMessage(ctx context.Context, cred model.Credential, data json.RawMessage) protocol.Response {
	var req protocol.MessageRequest
	if err := protocol.DecodeRequest(data, &req); err != nil {
		return protocol.Fail(err)
	}

	code := model.RoomID(req.RoomID)
	if code == "" {
		code = model.MainRoomID
	}

	msg, err := h.rooms.PostMessage(ctx, code, cred, req.Message)
	if err != nil {
		return protocol.Fail(err)
	}

	payload := protocol.MessageData{
		RoomID:    string(msg.RoomID),
		Username:  msg.Sender,
		Color:     msg.ColorHex,
		Message:   msg.Body,
		Timestamp: msg.SentAt,
	}
	raw, _ := json.Marshal(payload)
	env := protocol.Envelope{Event: protocol.EventPushMessage, Data: raw}

	if code == model.MainRoomID {
		// Menu chat goes to everyone signed in; clients route by roomId
		h.hub.BroadcastAuthed(cred.ID, env)
	} else {
		r, err := h.rooms.GetRoom(ctx, code)
		if err != nil {
			return protocol.Fail(err)
		}
		h.hub.BroadcastRoom(r, cred.ID, env)
	}

	return protocol.Ok(payload)
}

func (h *Handler) handleTowers(ctx context.Context, cred model.Credential, data json.RawMessage) protocol.Response {
	var req protocol.TowersRequest
	if err := protocol.DecodeRequest(data, &req); err != nil {
		return protocol.Fail(err)
	}

	code := model.RoomID(req.RoomID)
	full, err := h.rooms.ApplyTowers(ctx, code, cred.ID, req.Towers)
	if err != nil {
		return protocol.Fail(err)
	}

	payload := protocol.SetTowersData{RoomID: req.RoomID, Towers: full}
	r, err := h.rooms.GetRoom(ctx, code)
	if err != nil {
		return protocol.Fail(err)
	}
	raw, _ := json.Marshal(payload)
	h.hub.BroadcastRoom(r, cred.ID, protocol.Envelope{Event: protocol.EventPushSetTowers, Data: raw})

	return protocol.Ok(payload)
}

// pushRoster notifies a room's members (minus the actor) that the
// member list changed
func (h *Handler) pushRoster(r *model.Room, except model.PlayerID) {
	if r == nil {
		return
	}
	raw, _ := json.Marshal(protocol.UsersData{
		RoomID: string(r.ID),
		Users:  protocol.Roster(r.Members),
	})
	h.hub.BroadcastRoom(r, except, protocol.Envelope{Event: protocol.EventPushUsers, Data: raw})
}

// disconnected runs when a connection's read pump exits. The player is
// removed from their room and remaining members get a roster update.
func (h *Handler) disconnected(c *Client) {
	cred := c.Credential()
	if cred == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	r, err := h.rooms.Disconnect(ctx, cred.ID)
	if err != nil {
		h.logger.Warn("disconnect cleanup failed",
			slog.String("player_id", string(cred.ID)),
			slog.Any("error", err),
		)
		return
	}
	h.pushRoster(r, cred.ID)
}
