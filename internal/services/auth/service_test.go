package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/hexhold/hexhold/internal/dependencies/mocks"
	"github.com/hexhold/hexhold/internal/model"
	"github.com/hexhold/hexhold/internal/protocol"
	"github.com/hexhold/hexhold/internal/storage/memory"
	"github.com/hexhold/hexhold/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	random  *mocks.MockRandom
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.service = New(s.storage, s.clock, s.random, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ServiceSuite) register(username, password string) *model.Player {
	player, err := s.service.Register(s.ctx, username, protocol.HashPassword(password))
	s.Require().NoError(err)
	return player
}

func (s *ServiceSuite) TestRegisterSucceeds() {
	s.random.QueueIntn(2)
	player := s.register("alice", "secret1")

	s.NotEmpty(player.ID)
	s.Equal("alice", player.Username)
	s.Equal(protocol.HashPassword("secret1"), player.Passhash)
	s.Equal(colorPalette[2], player.ColorHex)
	s.Equal(s.clock.Now(), player.CreatedAt)
}

func (s *ServiceSuite) TestRegisterIsPersisted() {
	player := s.register("alice", "secret1")

	stored, err := s.storage.GetPlayer(s.ctx, player.ID)
	s.Require().NoError(err)
	s.Equal(player.Username, stored.Username)
}

func (s *ServiceSuite) TestRegisterRejectsDuplicateUsername() {
	s.register("alice", "secret1")

	_, err := s.service.Register(s.ctx, "alice", protocol.HashPassword("other99"))
	s.ErrorIs(err, model.ErrUsernameExists)
	s.ErrorIs(err, model.ErrConflict)
}

func (s *ServiceSuite) TestRegisterRejectsBadUsername() {
	_, err := s.service.Register(s.ctx, "ab", protocol.HashPassword("secret1"))
	s.ErrorIs(err, model.ErrUsernameTooShort)
}

func (s *ServiceSuite) TestRegisterRejectsMalformedPasshash() {
	_, err := s.service.Register(s.ctx, "alice", "nothash")
	s.ErrorIs(err, model.ErrProtocol)
}

func (s *ServiceSuite) TestAuthenticateByUsernameAndHash() {
	registered := s.register("alice", "secret1")

	player, err := s.service.Authenticate(s.ctx, "", "alice", protocol.HashPassword("secret1"))
	s.Require().NoError(err)
	s.Equal(registered.ID, player.ID)
	s.Equal(registered.Passhash, player.Passhash)
}

func (s *ServiceSuite) TestAuthenticateWrongHashFails() {
	s.register("alice", "secret1")

	_, err := s.service.Authenticate(s.ctx, "", "alice", protocol.HashPassword("wrong99"))
	s.ErrorIs(err, model.ErrInvalidCredentials)
}

func (s *ServiceSuite) TestAuthenticateEmptyHashFails() {
	s.register("alice", "secret1")

	_, err := s.service.Authenticate(s.ctx, "", "alice", "")
	s.ErrorIs(err, model.ErrInvalidCredentials)
}

func (s *ServiceSuite) TestAuthenticateUnknownUsernameFails() {
	_, err := s.service.Authenticate(s.ctx, "", "nobody", protocol.HashPassword("secret1"))
	s.ErrorIs(err, model.ErrInvalidCredentials)
}

func (s *ServiceSuite) TestSilentAuthByID() {
	registered := s.register("alice", "secret1")

	player, err := s.service.Authenticate(s.ctx, string(registered.ID), "alice", "")
	s.Require().NoError(err)
	s.Equal(registered.ID, player.ID)
}

func (s *ServiceSuite) TestSilentAuthWrongUsernameFails() {
	registered := s.register("alice", "secret1")

	_, err := s.service.Authenticate(s.ctx, string(registered.ID), "mallory", "")
	s.ErrorIs(err, model.ErrInvalidCredentials)
}

func (s *ServiceSuite) TestSilentAuthUnknownIDFails() {
	_, err := s.service.Authenticate(s.ctx, "ghost-id", "alice", "")
	s.ErrorIs(err, model.ErrInvalidCredentials)
}
