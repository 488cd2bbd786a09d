package redis

import (
	"fmt"

	"github.com/hexhold/hexhold/internal/model"
)

// Key prefix for all hexhold data
const keyPrefix = "hexhold"

// playerKey returns the Redis key for a Player
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// usernameIndexKey returns the Redis key for the username -> player_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// roomKey returns the Redis key for a Room
func roomKey(id model.RoomID) string {
	return fmt.Sprintf("%s:room:%s", keyPrefix, id)
}

// matchKey returns the Redis key for a MatchState
func matchKey(roomID model.RoomID) string {
	return fmt.Sprintf("%s:match:%s", keyPrefix, roomID)
}
