package model

import "time"

// PlayerID uniquely identifies a player across the system
type PlayerID string

// Credential is the identity record a client persists locally.
// It is what the server hands back on registration and what enables
// silent re-authentication on the next startup.
type Credential struct {
	ID       PlayerID `json:"id"`
	Username string   `json:"username"`
	ColorHex string   `json:"color"`
}

// Player is the server-side account record.
// The passhash is the client-computed SHA-256 digest of the password;
// the server stores it verbatim because the auth exchange echoes it
// back for the client's own comparison.
type Player struct {
	ID        PlayerID
	Username  string
	Passhash  string
	ColorHex  string
	CreatedAt time.Time
}

// Credential returns the client-visible identity for this player.
func (p *Player) Credential() Credential {
	return Credential{
		ID:       p.ID,
		Username: p.Username,
		ColorHex: p.ColorHex,
	}
}
