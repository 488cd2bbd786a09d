// Package game holds the client's in-game state: current room and
// roster, chat routing, match lifecycle, tower reconciliation and the
// economy production tick. Server pushes arrive through the transport
// dispatcher; the UI observes changes through the Notifier.
package game

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hexhold/hexhold/internal/client/transport"
	"github.com/hexhold/hexhold/internal/dependencies/clock"
	"github.com/hexhold/hexhold/internal/model"
	"github.com/hexhold/hexhold/internal/protocol"
)

// productionInterval is how often match income accrues
const productionInterval = time.Second

// Conn is the slice of the transport the game layer needs
type Conn interface {
	Request(ctx context.Context, event string, payload any) (protocol.Response, error)
	OnPush(event string, h transport.PushHandler)
}

// Notifier receives game state changes for display. Calls arrive on
// whichever goroutine the transport dispatcher runs handlers on.
type Notifier interface {
	ChatReceived(msg protocol.MessageData)
	RosterChanged(roomID model.RoomID, users []protocol.UserInfo)
	MatchStarting(roomID model.RoomID)
	MatchBegan(roomID model.RoomID, friendlyBase, enemyBase int)
	TowersChanged(roomID model.RoomID, towers []model.Tower)
	EconomyChanged(eco model.Economy)
}

// NopNotifier discards all notifications
type NopNotifier struct{}

func (NopNotifier) ChatReceived(protocol.MessageData) {}
func (NopNotifier) RosterChanged(model.RoomID, []protocol.UserInfo) {}
func (NopNotifier) MatchStarting(model.RoomID) {}
func (NopNotifier) MatchBegan(model.RoomID, int, int) {}
func (NopNotifier) TowersChanged(model.RoomID, []model.Tower) {}
func (NopNotifier) EconomyChanged(model.Economy) {}

// Identity reports who is signed in, for push filtering
type Identity interface {
	Current() *model.Credential
}

// Game is the client-side room and match state machine
type Game struct {
	conn     Conn
	identity Identity
	clock    clock.Clock
	notifier Notifier
	logger   *slog.Logger

	mu           sync.Mutex
	roomID       model.RoomID
	roster       []protocol.UserInfo
	inMatch      bool
	friendlyBase int
	enemyBase    int
	towers       map[int]model.Tower
	economy      model.Economy
	stopTick     chan struct{}
}

// New creates a Game and registers its push handlers on the connection
func New(conn Conn, identity Identity, clk clock.Clock, notifier Notifier, logger *slog.Logger) *Game {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	g := &Game{
		conn:     conn,
		identity: identity,
		clock:    clk,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "game")),
		towers:   make(map[int]model.Tower),
	}

	conn.OnPush(protocol.EventPushMessage, g.onMessage)
	conn.OnPush(protocol.EventPushUsers, g.onUsers)
	conn.OnPush(protocol.EventPushStart, g.onStart)
	conn.OnPush(protocol.EventPushAllReady, g.onAllReady)
	conn.OnPush(protocol.EventPushSetTowers, g.onSetTowers)

	return g
}

// CurrentRoom returns the joined room code, or "" when in the menu
func (g *Game) CurrentRoom() model.RoomID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.roomID
}

// Roster returns the current room's member list
func (g *Game) Roster() []protocol.UserInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]protocol.UserInfo, len(g.roster))
	copy(out, g.roster)
	return out
}

// InMatch reports whether a match is running
func (g *Game) InMatch() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inMatch
}

// Economy returns the player's current match economy
func (g *Game) Economy() model.Economy {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.economy
}

// Towers returns the known tower list
func (g *Game) Towers() []model.Tower {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.towerListLocked()
}

func (g *Game) towerListLocked() []model.Tower {
	out := make([]model.Tower, 0, len(g.towers))
	for _, t := range g.towers {
		out = append(out, t)
	}
	return out
}

// Host creates a room on the server and enters it
func (g *Game) Host(ctx context.Context) (model.RoomID, error) {
	resp, err := g.conn.Request(ctx, protocol.EventHostRoom, nil)
	if err != nil {
		return "", err
	}

	var data protocol.HostRoomData
	if err := resp.DecodeData(&data); err != nil {
		return "", err
	}

	g.enterRoom(model.RoomID(data.RoomID), resp.Users)
	return model.RoomID(data.RoomID), nil
}

// Join enters an existing room by code
func (g *Game) Join(ctx context.Context, code string) (model.RoomID, error) {
	normalized, err := model.NormalizeRoomCode(code)
	if err != nil {
		return "", err
	}
	if normalized == model.MainRoomID {
		return "", model.ErrReservedRoomCode
	}

	resp, err := g.conn.Request(ctx, protocol.EventJoinRoom, protocol.JoinRoomRequest{RoomID: string(normalized)})
	if err != nil {
		return "", err
	}

	var data protocol.JoinRoomData
	if err := resp.DecodeData(&data); err != nil {
		return "", err
	}

	g.enterRoom(model.RoomID(data.RoomID), resp.Users)
	return model.RoomID(data.RoomID), nil
}

// Leave exits the current room and resets match state
func (g *Game) Leave(ctx context.Context) error {
	g.mu.Lock()
	code := g.roomID
	g.mu.Unlock()
	if code == "" {
		return nil
	}

	resp, err := g.conn.Request(ctx, protocol.EventLeaveRoom, protocol.LeaveRoomRequest{RoomID: string(code)})
	if err != nil {
		return err
	}
	if respErr := resp.Err(); respErr != nil {
		return respErr
	}

	g.resetRoom()
	return nil
}

// Start asks the server to begin the match in the current room
func (g *Game) Start(ctx context.Context) error {
	g.mu.Lock()
	code := g.roomID
	g.mu.Unlock()
	if code == "" {
		return model.ErrNotInRoom
	}

	resp, err := g.conn.Request(ctx, protocol.EventStartMatch, protocol.StartMatchRequest{RoomID: string(code)})
	if err != nil {
		return err
	}
	return resp.Err()
}

// Ready reports that the match scene finished loading. The server
// assigns bases once every member has reported in.
func (g *Game) Ready(ctx context.Context) error {
	g.mu.Lock()
	code := g.roomID
	g.mu.Unlock()
	if code == "" {
		return model.ErrNotInRoom
	}

	resp, err := g.conn.Request(ctx, protocol.EventReady, protocol.ReadyRequest{RoomID: string(code)})
	if err != nil {
		return err
	}
	return resp.Err()
}

// SendMessage posts chat to the current room, or to the menu channel
// when no room is joined. The sender's own line is rendered from the
// acknowledgment, so an echoed copy is never displayed twice.
func (g *Game) SendMessage(ctx context.Context, body string) error {
	if _, err := model.ValidateMessage(body); err != nil {
		return err
	}

	g.mu.Lock()
	code := g.roomID
	g.mu.Unlock()
	if code == "" {
		code = model.MainRoomID
	}

	resp, err := g.conn.Request(ctx, protocol.EventMessage, protocol.MessageRequest{
		RoomID:  string(code),
		Message: body,
	})
	if err != nil {
		return err
	}

	var data protocol.MessageData
	if err := resp.DecodeData(&data); err != nil {
		return err
	}
	g.notifier.ChatReceived(data)
	return nil
}

// PlaceTower places a tower on a free hex and syncs it to the server.
// The acknowledgment carries the authoritative full list, which is
// reconciled like any other towers push.
func (g *Game) PlaceTower(ctx context.Context, hexIndex int, towerType model.TowerType, rotation float64) error {
	g.mu.Lock()
	code := g.roomID
	if code == "" || !g.inMatch {
		g.mu.Unlock()
		return model.ErrMatchNotStarted
	}
	if _, taken := g.towers[hexIndex]; taken || hexIndex == g.friendlyBase || hexIndex == g.enemyBase {
		g.mu.Unlock()
		return fmt.Errorf("%w: hex %d is occupied", model.ErrConflict, hexIndex)
	}
	tower := model.Tower{
		HexIndex:     hexIndex,
		Type:         towerType,
		Side:         model.SideFriendly,
		BaseRotation: rotation,
	}
	g.towers[hexIndex] = tower
	towers := g.towerListLocked()
	g.mu.Unlock()

	g.notifier.TowersChanged(code, towers)

	resp, err := g.conn.Request(ctx, protocol.EventTowers, protocol.TowersRequest{
		RoomID: string(code),
		Towers: []model.Tower{tower},
	})
	if err != nil {
		return err
	}

	var data protocol.SetTowersData
	if err := resp.DecodeData(&data); err != nil {
		return err
	}
	g.applyTowers(model.RoomID(data.RoomID), data.Towers)
	return nil
}

func (g *Game) enterRoom(code model.RoomID, users []protocol.UserInfo) {
	g.mu.Lock()
	g.stopProductionLocked()
	g.roomID = code
	g.roster = users
	g.inMatch = false
	g.towers = make(map[int]model.Tower)
	g.economy = model.Economy{}
	g.mu.Unlock()

	g.notifier.RosterChanged(code, users)
}

func (g *Game) resetRoom() {
	g.mu.Lock()
	g.stopProductionLocked()
	g.roomID = ""
	g.roster = nil
	g.inMatch = false
	g.towers = make(map[int]model.Tower)
	g.economy = model.Economy{}
	g.mu.Unlock()
}

// Reset clears all room and match state, for logout
func (g *Game) Reset() {
	g.resetRoom()
}

func (g *Game) onMessage(data json.RawMessage) {
	var msg protocol.MessageData
	if err := json.Unmarshal(data, &msg); err != nil {
		g.logger.Warn("malformed message push", slog.Any("error", err))
		return
	}

	g.mu.Lock()
	current := g.roomID
	g.mu.Unlock()

	// Menu chat is broadcast to everyone; room chat only matters for
	// the room we are actually in.
	roomID := model.RoomID(msg.RoomID)
	if roomID != model.MainRoomID && roomID != current {
		return
	}
	// In a room, the menu channel stays hidden
	if roomID == model.MainRoomID && current != "" {
		return
	}

	// The sender already rendered its own line from the ack
	if cred := g.identity.Current(); cred != nil && msg.Username == cred.Username {
		return
	}

	g.notifier.ChatReceived(msg)
}

func (g *Game) onUsers(data json.RawMessage) {
	var push protocol.UsersData
	if err := json.Unmarshal(data, &push); err != nil {
		g.logger.Warn("malformed users push", slog.Any("error", err))
		return
	}

	g.mu.Lock()
	if model.RoomID(push.RoomID) != g.roomID {
		g.mu.Unlock()
		return
	}
	g.roster = push.Users
	g.mu.Unlock()

	g.notifier.RosterChanged(model.RoomID(push.RoomID), push.Users)
}

func (g *Game) onStart(data json.RawMessage) {
	var push protocol.StartData
	if err := json.Unmarshal(data, &push); err != nil {
		g.logger.Warn("malformed start push", slog.Any("error", err))
		return
	}

	g.mu.Lock()
	relevant := model.RoomID(push.RoomID) == g.roomID
	if relevant && len(push.Users) > 0 {
		// The push carries the roster the match begins with
		g.roster = push.Users
	}
	g.mu.Unlock()
	if !relevant {
		return
	}

	g.notifier.MatchStarting(model.RoomID(push.RoomID))
}

func (g *Game) onAllReady(data json.RawMessage) {
	var push protocol.AllReadyData
	if err := json.Unmarshal(data, &push); err != nil {
		g.logger.Warn("malformed allReady push", slog.Any("error", err))
		return
	}

	g.mu.Lock()
	if model.RoomID(push.RoomID) != g.roomID || g.inMatch {
		g.mu.Unlock()
		return
	}
	g.inMatch = true
	g.friendlyBase = push.FriendlyBase
	g.enemyBase = push.EnemyBase
	g.economy = *model.NewEconomy()
	// Both bases exist from the first frame of the match
	g.towers[push.FriendlyBase] = model.Tower{
		HexIndex: push.FriendlyBase,
		Type:     model.TowerBase,
		Side:     model.SideFriendly,
	}
	g.towers[push.EnemyBase] = model.Tower{
		HexIndex: push.EnemyBase,
		Type:     model.TowerBase,
		Side:     model.SideEnemy,
	}
	stop := make(chan struct{})
	g.stopTick = stop
	towers := g.towerListLocked()
	eco := g.economy
	g.mu.Unlock()

	go g.produce(stop)

	g.notifier.MatchBegan(model.RoomID(push.RoomID), push.FriendlyBase, push.EnemyBase)
	g.notifier.TowersChanged(model.RoomID(push.RoomID), towers)
	g.notifier.EconomyChanged(eco)
}

func (g *Game) onSetTowers(data json.RawMessage) {
	var push protocol.SetTowersData
	if err := json.Unmarshal(data, &push); err != nil {
		g.logger.Warn("malformed setTowers push", slog.Any("error", err))
		return
	}
	g.applyTowers(model.RoomID(push.RoomID), push.Towers)
}

// applyTowers reconciles an authoritative tower list. Hexes already
// occupied locally keep their tower, so re-applying the same list is a
// no-op. Sides on the wire are submitter-relative, and every tower of
// ours is recorded locally before it is ever synced, so a tower on an
// unknown hex is the opponent's regardless of whether the list arrived
// as an ack or a push: its side is inverted on the way in.
func (g *Game) applyTowers(roomID model.RoomID, incoming []model.Tower) {
	g.mu.Lock()
	if roomID != g.roomID || !g.inMatch {
		g.mu.Unlock()
		return
	}

	changed := false
	for _, t := range incoming {
		if _, ok := g.towers[t.HexIndex]; ok {
			continue
		}
		if t.Side == model.SideFriendly {
			t.Side = model.SideEnemy
		} else {
			t.Side = model.SideFriendly
		}
		g.towers[t.HexIndex] = t
		changed = true
	}

	towers := g.towerListLocked()
	g.mu.Unlock()

	if changed {
		g.notifier.TowersChanged(roomID, towers)
	}
}

// produce accrues income once per interval until stopped
func (g *Game) produce(stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-g.clock.After(productionInterval):
		}

		g.mu.Lock()
		if !g.inMatch {
			g.mu.Unlock()
			return
		}
		g.economy.Money += g.economy.ProductionRate
		eco := g.economy
		g.mu.Unlock()

		g.notifier.EconomyChanged(eco)
	}
}

func (g *Game) stopProductionLocked() {
	if g.stopTick != nil {
		close(g.stopTick)
		g.stopTick = nil
	}
}
