package model

import "time"

// TowerType identifies what kind of tower occupies a hex
type TowerType int

const (
	TowerBase  TowerType = 0
	TowerGun   TowerType = 1
	TowerMiner TowerType = 2
)

// TeamSide distinguishes the two sides of a match
type TeamSide int

const (
	SideFriendly TeamSide = 0
	SideEnemy    TeamSide = 1
)

// Tower is one placed tower. HexIndex is unique within a match.
type Tower struct {
	HexIndex     int       `json:"index"`
	Type         TowerType `json:"type"`
	Side         TeamSide  `json:"team"`
	BaseRotation float64   `json:"baseRotation"`
}

// Economy default values
const (
	MaxLife           = 100
	StartingMoney     = 10
	StartingLife      = 100
	DefaultProduction = 1
)

// Economy is one player's resource state within a match.
// Values never go below zero.
type Economy struct {
	Money          int `json:"money"`
	Life           int `json:"life"`
	ProductionRate int `json:"productionRate"`
}

// NewEconomy returns the starting economy for a match participant
func NewEconomy() *Economy {
	return &Economy{
		Money:          StartingMoney,
		Life:           StartingLife,
		ProductionRate: DefaultProduction,
	}
}

// MatchState is the authoritative per-room match record. It exists from
// the Lobby->Starting transition until the room disbands.
type MatchState struct {
	RoomID RoomID

	// Bases maps each player to their own base hex. Every other
	// member's base reads as the enemy base from that player's view.
	Bases map[PlayerID]int

	Towers  []Tower
	Economy map[PlayerID]*Economy

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TowerAt returns the index into Towers of the tower on the given hex,
// or -1 if the hex is empty.
func (m *MatchState) TowerAt(hexIndex int) int {
	for i := range m.Towers {
		if m.Towers[i].HexIndex == hexIndex {
			return i
		}
	}
	return -1
}

// BasePair returns the viewing player's own base and the opponent base.
// ok is false until bases have been assigned.
func (m *MatchState) BasePair(viewer PlayerID) (friendly, enemy int, ok bool) {
	own, found := m.Bases[viewer]
	if !found {
		return 0, 0, false
	}
	for id, idx := range m.Bases {
		if id != viewer {
			return own, idx, true
		}
	}
	return 0, 0, false
}
