package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/hexhold/hexhold/internal/model"
)

type StorageSuite struct {
	suite.Suite
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.storage = New()
	s.ctx = context.Background()
}

func (s *StorageSuite) TestSaveAndGetPlayer() {
	player := &model.Player{
		ID:        "p1",
		Username:  "alice",
		Passhash:  "abc123",
		ColorHex:  "#FF0000",
		CreatedAt: time.Now(),
	}

	s.Require().NoError(s.storage.SavePlayer(s.ctx, player))

	retrieved, err := s.storage.GetPlayer(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal("alice", retrieved.Username)
	s.Equal("abc123", retrieved.Passhash)
}

func (s *StorageSuite) TestGetPlayerByUsername() {
	player := &model.Player{ID: "p1", Username: "alice"}
	s.Require().NoError(s.storage.SavePlayer(s.ctx, player))

	retrieved, err := s.storage.GetPlayerByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p1"), retrieved.ID)

	_, err = s.storage.GetPlayerByUsername(s.ctx, "bob")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *StorageSuite) TestDeletePlayerClearsUsernameIndex() {
	player := &model.Player{ID: "p1", Username: "alice"}
	s.Require().NoError(s.storage.SavePlayer(s.ctx, player))
	s.Require().NoError(s.storage.DeletePlayer(s.ctx, "p1"))

	_, err := s.storage.GetPlayer(s.ctx, "p1")
	s.ErrorIs(err, model.ErrPlayerNotFound)
	_, err = s.storage.GetPlayerByUsername(s.ctx, "alice")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *StorageSuite) TestSaveAndGetRoom() {
	room := &model.Room{
		ID:    "AB12",
		Phase: model.RoomPhaseLobby,
		Members: []model.Credential{
			{ID: "p1", Username: "alice"},
		},
		Ready: map[model.PlayerID]bool{},
	}

	s.Require().NoError(s.storage.SaveRoom(s.ctx, room))

	retrieved, err := s.storage.GetRoom(s.ctx, "AB12")
	s.Require().NoError(err)
	s.Equal(model.RoomPhaseLobby, retrieved.Phase)
	s.Len(retrieved.Members, 1)

	exists, err := s.storage.RoomExists(s.ctx, "AB12")
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.storage.RoomExists(s.ctx, "ZZ99")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *StorageSuite) TestDeleteRoom() {
	room := &model.Room{ID: "AB12", Phase: model.RoomPhaseLobby}
	s.Require().NoError(s.storage.SaveRoom(s.ctx, room))
	s.Require().NoError(s.storage.DeleteRoom(s.ctx, "AB12"))

	_, err := s.storage.GetRoom(s.ctx, "AB12")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *StorageSuite) TestSaveAndGetMatch() {
	match := &model.MatchState{
		RoomID: "AB12",
		Bases:  map[model.PlayerID]int{"p1": 3, "p2": 40},
		Towers: []model.Tower{
			{HexIndex: 7, Type: model.TowerGun, Side: model.SideFriendly, BaseRotation: 60},
		},
		Economy: map[model.PlayerID]*model.Economy{
			"p1": model.NewEconomy(),
		},
	}

	s.Require().NoError(s.storage.SaveMatch(s.ctx, match))

	retrieved, err := s.storage.GetMatch(s.ctx, "AB12")
	s.Require().NoError(err)
	s.Equal(3, retrieved.Bases["p1"])
	s.Len(retrieved.Towers, 1)
	s.Equal(model.StartingMoney, retrieved.Economy["p1"].Money)

	s.Require().NoError(s.storage.DeleteMatch(s.ctx, "AB12"))
	_, err = s.storage.GetMatch(s.ctx, "AB12")
	s.ErrorIs(err, model.ErrMatchNotFound)
}
