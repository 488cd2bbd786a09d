package protocol

import (
	"time"

	"github.com/hexhold/hexhold/internal/model"
)

// Request payloads

type RegisterRequest struct {
	Username string `json:"username"`
	Passhash string `json:"passhash"`
}

// AuthRequest authenticates by stored id (silent re-auth, no passhash)
// or by username and passhash.
type AuthRequest struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	Passhash string `json:"passhash,omitempty"`
}

type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
}

type LeaveRoomRequest struct {
	RoomID string `json:"roomId"`
}

type StartMatchRequest struct {
	RoomID string `json:"roomId"`
}

type ReadyRequest struct {
	RoomID string `json:"roomId"`
}

type MessageRequest struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

type TowersRequest struct {
	RoomID string        `json:"roomId"`
	Towers []model.Tower `json:"towerData"`
}

// Response payloads

// AuthData answers both register and auth. The passhash echoes the
// stored digest so the client can run its own fail-closed comparison.
type AuthData struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Passhash string `json:"passhash,omitempty"`
	Color    string `json:"color"`
}

type HostRoomData struct {
	RoomID string `json:"roomId"`
}

type JoinRoomData struct {
	RoomID string `json:"roomId"`
}

type LeaveRoomData struct {
	RoomID string `json:"roomId"`
}

// ReadyData acknowledges a scene-ready signal. AllReady reports whether
// this signal was the one that completed the set.
type ReadyData struct {
	RoomID   string `json:"roomId"`
	AllReady bool   `json:"allReady"`
}

// Push payloads

// StartData announces the Lobby->Starting transition to room members,
// carrying the roster the match begins with.
type StartData struct {
	RoomID string     `json:"roomId"`
	Users  []UserInfo `json:"users,omitempty"`
}

// AllReadyData carries the base assignment from the receiving player's
// perspective once every member has signaled scene-ready.
type AllReadyData struct {
	RoomID       string `json:"roomId"`
	FriendlyBase int    `json:"friendlyBaseIndex"`
	EnemyBase    int    `json:"enemyBaseIndex"`
}

// SetTowersData is the authoritative tower list for a room. Clients
// reconcile against it rather than appending.
type SetTowersData struct {
	RoomID string        `json:"roomId"`
	Towers []model.Tower `json:"towerData"`
}

// MessageData is a chat line pushed to room members
type MessageData struct {
	RoomID    string    `json:"roomId"`
	Username  string    `json:"username"`
	Color     string    `json:"color"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// UsersData is a roster update pushed on membership changes
type UsersData struct {
	RoomID string     `json:"roomId"`
	Users  []UserInfo `json:"users"`
}
