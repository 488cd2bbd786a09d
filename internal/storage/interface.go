package storage

import (
	"context"

	"github.com/hexhold/hexhold/internal/model"
)

// Storage defines the interface for data persistence
type Storage interface {
	// Player operations
	SavePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	GetPlayerByUsername(ctx context.Context, username string) (*model.Player, error)
	DeletePlayer(ctx context.Context, id model.PlayerID) error

	// Room operations
	SaveRoom(ctx context.Context, room *model.Room) error
	GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error)
	DeleteRoom(ctx context.Context, id model.RoomID) error
	RoomExists(ctx context.Context, id model.RoomID) (bool, error)

	// Match operations
	SaveMatch(ctx context.Context, match *model.MatchState) error
	GetMatch(ctx context.Context, roomID model.RoomID) (*model.MatchState, error)
	DeleteMatch(ctx context.Context, roomID model.RoomID) error
}
