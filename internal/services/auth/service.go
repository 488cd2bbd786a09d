package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hexhold/hexhold/internal/dependencies/clock"
	"github.com/hexhold/hexhold/internal/dependencies/random"
	"github.com/hexhold/hexhold/internal/model"
	"github.com/hexhold/hexhold/internal/storage"
)

// PasshashLength is the length of a hex-encoded SHA-256 digest
const PasshashLength = 64

// colorPalette is the set of display colors handed out on registration
var colorPalette = []string{
	"#E0BA06", "#933042", "#3A7CA5", "#52B788",
	"#E76F51", "#9B5DE5", "#F4A261", "#00B4D8",
}

// Service handles player registration and authentication.
//
// The credential scheme is the legacy echo-back one: the server stores
// the client-computed digest verbatim and returns it on auth so the
// client can run its own fail-closed comparison.
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
}

// New creates a new auth Service
func New(storage storage.Storage, clock clock.Clock, random random.Random, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		clock:   clock,
		random:  random,
		logger:  logger.With(slog.String("component", "auth")),
	}
}

// Register creates a new player account. The username must pass the
// same shape rules the client enforces, and the passhash must look
// like a SHA-256 hex digest.
func (s *Service) Register(ctx context.Context, username, passhash string) (*model.Player, error) {
	if err := model.ValidateUsername(username); err != nil {
		return nil, err
	}
	if len(passhash) != PasshashLength {
		return nil, fmt.Errorf("%w: malformed password hash", model.ErrProtocol)
	}

	_, err := s.storage.GetPlayerByUsername(ctx, username)
	if err == nil {
		return nil, model.ErrUsernameExists
	}
	if !errors.Is(err, model.ErrPlayerNotFound) {
		return nil, err
	}

	player := &model.Player{
		ID:        model.PlayerID(uuid.NewString()),
		Username:  username,
		Passhash:  passhash,
		ColorHex:  colorPalette[s.random.Intn(len(colorPalette))],
		CreatedAt: s.clock.Now(),
	}

	if err := s.storage.SavePlayer(ctx, player); err != nil {
		return nil, err
	}

	s.logger.Info("player registered",
		slog.String("player_id", string(player.ID)),
		slog.String("username", username),
	)

	return player, nil
}

// Authenticate resolves a player either by stored id (silent re-auth,
// no passhash required) or by username and passhash. The returned
// player includes the stored passhash for the client's comparison.
func (s *Service) Authenticate(ctx context.Context, id, username, passhash string) (*model.Player, error) {
	if id != "" {
		player, err := s.storage.GetPlayer(ctx, model.PlayerID(id))
		if err != nil {
			if errors.Is(err, model.ErrPlayerNotFound) {
				return nil, model.ErrInvalidCredentials
			}
			return nil, err
		}
		if username != "" && player.Username != username {
			return nil, model.ErrInvalidCredentials
		}
		return player, nil
	}

	player, err := s.storage.GetPlayerByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrPlayerNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}
	if passhash == "" || player.Passhash != passhash {
		return nil, model.ErrInvalidCredentials
	}

	s.logger.Info("player authenticated",
		slog.String("player_id", string(player.ID)),
		slog.String("username", player.Username),
	)

	return player, nil
}
