package room

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hexhold/hexhold/internal/dependencies/clock"
	"github.com/hexhold/hexhold/internal/dependencies/random"
	"github.com/hexhold/hexhold/internal/model"
	"github.com/hexhold/hexhold/internal/storage"
)

const (
	// RoomCodeAlphabet is the characters used in room codes
	RoomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Config holds coordinator settings
type Config struct {
	// HexCount is the number of hexes on the map, bounding base assignment
	HexCount int
	// MaxMembers caps room size
	MaxMembers int
}

// DefaultConfig returns the default coordinator configuration
func DefaultConfig() Config {
	return Config{
		HexCount:   256,
		MaxMembers: 2,
	}
}

// Coordinator is the authoritative registry of rooms, membership and
// match phase transitions. All operations are safe against duplicate
// client retries.
type Coordinator struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
	cfg     Config

	// playerRoom tracks which non-MAIN room each player is in. Live
	// session state, not persisted.
	mu         sync.Mutex
	playerRoom map[model.PlayerID]model.RoomID
}

// NewCoordinator creates a new Coordinator
func NewCoordinator(
	storage storage.Storage,
	clock clock.Clock,
	random random.Random,
	cfg Config,
	logger *slog.Logger,
) *Coordinator {
	if cfg.HexCount == 0 {
		cfg = DefaultConfig()
	}
	return &Coordinator{
		storage:    storage,
		clock:      clock,
		random:     random,
		logger:     logger.With(slog.String("component", "room")),
		cfg:        cfg,
		playerRoom: make(map[model.PlayerID]model.RoomID),
	}
}

// CurrentRoom returns the room the player currently occupies, if any
func (c *Coordinator) CurrentRoom(playerID model.PlayerID) (model.RoomID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.playerRoom[playerID]
	return id, ok
}

// HostRoom allocates a fresh unique room code and creates a Lobby-phase
// room with the caller as sole member. Hosting while already in a room
// leaves the old room first.
func (c *Coordinator) HostRoom(ctx context.Context, host model.Credential) (*model.Room, error) {
	if old, ok := c.CurrentRoom(host.ID); ok {
		if _, err := c.LeaveRoom(ctx, old, host.ID); err != nil && !errors.Is(err, model.ErrRoomNotFound) {
			return nil, err
		}
	}

	now := c.clock.Now()

	var code model.RoomID
	for {
		code = model.RoomID(c.random.String(model.RoomCodeLength, RoomCodeAlphabet))
		if code == model.MainRoomID {
			continue
		}
		exists, err := c.storage.RoomExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if !exists {
			break
		}
	}

	room := &model.Room{
		ID:        code,
		Phase:     model.RoomPhaseLobby,
		Members:   []model.Credential{host},
		Ready:     map[model.PlayerID]bool{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.playerRoom[host.ID] = code
	c.mu.Unlock()

	c.logger.Info("room hosted",
		slog.String("room_id", string(code)),
		slog.String("player_id", string(host.ID)),
	)

	return room, nil
}

// JoinRoom adds a player to an existing Lobby-phase room. Joining a
// room the player is already in is a no-op returning the current
// roster; joining while in a different room leaves that one first.
func (c *Coordinator) JoinRoom(ctx context.Context, code model.RoomID, player model.Credential) (*model.Room, error) {
	if code == model.MainRoomID {
		return nil, model.ErrReservedRoomCode
	}

	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	if room.GetMember(player.ID) != nil {
		return room, nil
	}

	if room.Phase != model.RoomPhaseLobby {
		return nil, model.ErrWrongPhase
	}
	if len(room.Members) >= c.cfg.MaxMembers {
		return nil, model.ErrRoomFull
	}

	if old, ok := c.CurrentRoom(player.ID); ok && old != code {
		if _, err := c.LeaveRoom(ctx, old, player.ID); err != nil && !errors.Is(err, model.ErrRoomNotFound) {
			return nil, err
		}
	}

	room.Members = append(room.Members, player)
	room.UpdatedAt = c.clock.Now()

	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.playerRoom[player.ID] = code
	c.mu.Unlock()

	c.logger.Info("player joined room",
		slog.String("room_id", string(code)),
		slog.String("player_id", string(player.ID)),
		slog.Int("members", len(room.Members)),
	)

	return room, nil
}

// LeaveRoom removes a player from a room. An emptied room and its
// match are destroyed; leaving mid-match abandons the match and puts
// the remaining members back in the Lobby phase.
func (c *Coordinator) LeaveRoom(ctx context.Context, code model.RoomID, playerID model.PlayerID) (*model.Room, error) {
	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	if room.GetMember(playerID) == nil {
		return room, nil
	}

	for i, m := range room.Members {
		if m.ID == playerID {
			room.Members = append(room.Members[:i], room.Members[i+1:]...)
			break
		}
	}
	delete(room.Ready, playerID)

	c.mu.Lock()
	delete(c.playerRoom, playerID)
	c.mu.Unlock()

	if len(room.Members) == 0 {
		_ = c.storage.DeleteMatch(ctx, code)
		if err := c.storage.DeleteRoom(ctx, code); err != nil {
			return nil, err
		}
		c.logger.Info("room destroyed", slog.String("room_id", string(code)))
		return nil, nil
	}

	if room.Phase != model.RoomPhaseLobby {
		room.Phase = model.RoomPhaseLobby
		room.Ready = map[model.PlayerID]bool{}
		_ = c.storage.DeleteMatch(ctx, code)
		c.logger.Info("match abandoned",
			slog.String("room_id", string(code)),
			slog.String("player_id", string(playerID)),
		)
	}

	room.UpdatedAt = c.clock.Now()
	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	return room, nil
}

// Disconnect removes a player from whichever room they occupy. Used
// when the player's connection drops.
func (c *Coordinator) Disconnect(ctx context.Context, playerID model.PlayerID) (*model.Room, error) {
	code, ok := c.CurrentRoom(playerID)
	if !ok {
		return nil, nil
	}
	return c.LeaveRoom(ctx, code, playerID)
}

// StartMatch transitions a Lobby room with at least two members to the
// Starting phase and creates the match record. A duplicate call while
// already Starting is a no-op.
func (c *Coordinator) StartMatch(ctx context.Context, code model.RoomID, playerID model.PlayerID) (*model.Room, error) {
	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.GetMember(playerID) == nil {
		return nil, model.ErrNotInRoom
	}

	if room.Phase == model.RoomPhaseStarting {
		return room, nil
	}
	if room.Phase != model.RoomPhaseLobby {
		return nil, model.ErrWrongPhase
	}
	if len(room.Members) < 2 {
		return nil, model.ErrNotEnoughPlayers
	}

	now := c.clock.Now()
	room.Phase = model.RoomPhaseStarting
	room.Ready = map[model.PlayerID]bool{}
	room.UpdatedAt = now

	match := &model.MatchState{
		RoomID:    code,
		Bases:     map[model.PlayerID]int{},
		Towers:    []model.Tower{},
		Economy:   map[model.PlayerID]*model.Economy{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, m := range room.Members {
		match.Economy[m.ID] = model.NewEconomy()
	}

	if err := c.storage.SaveMatch(ctx, match); err != nil {
		return nil, err
	}
	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	c.logger.Info("match starting",
		slog.String("room_id", string(code)),
		slog.Int("members", len(room.Members)),
	)

	return room, nil
}

// Ready records a member's scene-ready signal. When the last member
// reports ready the room enters InMatch and each player is assigned a
// distinct base hex. Repeated ready signals are no-ops.
func (c *Coordinator) Ready(ctx context.Context, code model.RoomID, playerID model.PlayerID) (allReady bool, match *model.MatchState, err error) {
	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return false, nil, err
	}
	if room.GetMember(playerID) == nil {
		return false, nil, model.ErrNotInRoom
	}

	if room.Phase == model.RoomPhaseInMatch {
		match, err := c.storage.GetMatch(ctx, code)
		if err != nil {
			return false, nil, err
		}
		return true, match, nil
	}
	if room.Phase != model.RoomPhaseStarting {
		return false, nil, model.ErrWrongPhase
	}

	if room.Ready == nil {
		room.Ready = map[model.PlayerID]bool{}
	}
	room.Ready[playerID] = true
	room.UpdatedAt = c.clock.Now()

	if !room.AllReady() {
		if err := c.storage.SaveRoom(ctx, room); err != nil {
			return false, nil, err
		}
		return false, nil, nil
	}

	match, err = c.storage.GetMatch(ctx, code)
	if err != nil {
		return false, nil, err
	}

	c.assignBases(room, match)
	match.UpdatedAt = c.clock.Now()
	room.Phase = model.RoomPhaseInMatch

	if err := c.storage.SaveMatch(ctx, match); err != nil {
		return false, nil, err
	}
	if err := c.storage.SaveRoom(ctx, room); err != nil {
		return false, nil, err
	}

	c.logger.Info("match started",
		slog.String("room_id", string(code)),
	)

	return true, match, nil
}

// assignBases picks a distinct base hex for every member
func (c *Coordinator) assignBases(room *model.Room, match *model.MatchState) {
	used := make(map[int]bool, len(room.Members))
	for _, m := range room.Members {
		idx := c.random.Intn(c.cfg.HexCount)
		for used[idx] {
			idx = (idx + 1) % c.cfg.HexCount
		}
		used[idx] = true
		match.Bases[m.ID] = idx
	}
}

// ApplyTowers merges a client tower delta into the authoritative match
// state, keyed by hex index, and returns the full list for rebroadcast.
// Accepted only while the room is InMatch.
func (c *Coordinator) ApplyTowers(ctx context.Context, code model.RoomID, playerID model.PlayerID, delta []model.Tower) ([]model.Tower, error) {
	room, err := c.storage.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.GetMember(playerID) == nil {
		return nil, model.ErrNotInRoom
	}
	if room.Phase != model.RoomPhaseInMatch {
		return nil, model.ErrMatchNotStarted
	}

	match, err := c.storage.GetMatch(ctx, code)
	if err != nil {
		return nil, err
	}

	for _, t := range delta {
		if i := match.TowerAt(t.HexIndex); i >= 0 {
			match.Towers[i] = t
		} else {
			match.Towers = append(match.Towers, t)
		}
	}
	match.UpdatedAt = c.clock.Now()

	if err := c.storage.SaveMatch(ctx, match); err != nil {
		return nil, err
	}

	return match.Towers, nil
}

// GetMatch returns the match record for a room
func (c *Coordinator) GetMatch(ctx context.Context, code model.RoomID) (*model.MatchState, error) {
	return c.storage.GetMatch(ctx, code)
}

// GetRoom returns a room by code
func (c *Coordinator) GetRoom(ctx context.Context, code model.RoomID) (*model.Room, error) {
	return c.storage.GetRoom(ctx, code)
}

// PostMessage validates a chat message and stamps it with the server
// time and sender identity. MAIN accepts any authenticated sender;
// other rooms require membership.
func (c *Coordinator) PostMessage(ctx context.Context, code model.RoomID, sender model.Credential, body string) (*model.ChatMessage, error) {
	body, err := model.ValidateMessage(body)
	if err != nil {
		return nil, err
	}

	if code != model.MainRoomID {
		room, err := c.storage.GetRoom(ctx, code)
		if err != nil {
			return nil, err
		}
		if room.GetMember(sender.ID) == nil {
			return nil, model.ErrNotInRoom
		}
	}

	return &model.ChatMessage{
		RoomID:   code,
		Sender:   sender.Username,
		ColorHex: sender.ColorHex,
		Body:     body,
		SentAt:   c.clock.Now(),
	}, nil
}
