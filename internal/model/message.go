package model

import "time"

// Message length bounds, applied after trimming
const (
	MinMessageLen = 2
	MaxMessageLen = 100
)

// ChatMessage is a transient chat line. Messages are broadcast to the
// current members of a room and never persisted.
type ChatMessage struct {
	RoomID   RoomID    `json:"roomId"`
	Sender   string    `json:"username"`
	ColorHex string    `json:"color"`
	Body     string    `json:"message"`
	SentAt   time.Time `json:"timestamp"`
}
