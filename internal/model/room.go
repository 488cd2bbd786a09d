package model

import "time"

// RoomID is a short alphanumeric code identifying a room
type RoomID string

// MainRoomID is the reserved always-present room backing the lobby/menu
// chat channel. It is never hosted, joined for play, or destroyed.
const MainRoomID RoomID = "MAIN"

// RoomCodeLength is the length of generated room codes
const RoomCodeLength = 4

// RoomPhase represents a room's discrete lifecycle stage
type RoomPhase string

const (
	RoomPhaseLobby    RoomPhase = "lobby"    // Gathering players, joinable
	RoomPhaseStarting RoomPhase = "starting" // Match start broadcast, waiting for scene-ready
	RoomPhaseInMatch  RoomPhase = "in_match" // Match running
)

// Room groups players under a code. A player belongs to at most one
// room besides the implicit MAIN channel.
type Room struct {
	ID        RoomID
	Phase     RoomPhase
	Members   []Credential
	Ready     map[PlayerID]bool // scene-ready signals, only meaningful while Starting
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetMember returns the member with the given player ID, or nil if not found
func (r *Room) GetMember(id PlayerID) *Credential {
	for i := range r.Members {
		if r.Members[i].ID == id {
			return &r.Members[i]
		}
	}
	return nil
}

// AllReady reports whether every member has signaled scene-ready
func (r *Room) AllReady() bool {
	if len(r.Members) == 0 {
		return false
	}
	for _, m := range r.Members {
		if !r.Ready[m.ID] {
			return false
		}
	}
	return true
}

// Usernames returns the member usernames in join order
func (r *Room) Usernames() []string {
	names := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		names = append(names, m.Username)
	}
	return names
}
