// Package factory wires the server's components together
package factory

import (
	"errors"
	"io"
	"log/slog"

	"github.com/hexhold/hexhold/internal/dependencies/clock"
	"github.com/hexhold/hexhold/internal/dependencies/random"
	"github.com/hexhold/hexhold/internal/services/auth"
	"github.com/hexhold/hexhold/internal/services/room"
	"github.com/hexhold/hexhold/internal/storage"
	"github.com/hexhold/hexhold/internal/storage/memory"
	redisstorage "github.com/hexhold/hexhold/internal/storage/redis"
	"github.com/hexhold/hexhold/internal/ws"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired server components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	AuthService *auth.Service
	Coordinator *room.Coordinator
	Hub         *ws.Hub
	Handler     *ws.Handler
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// RoomConfig holds coordinator settings (optional)
	// If zero value, defaults to room.DefaultConfig()
	RoomConfig room.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	clk := clock.New()
	rnd := random.New()

	roomCfg := cfg.RoomConfig
	if roomCfg.HexCount == 0 {
		roomCfg = room.DefaultConfig()
	}

	return newWithDependencies(store, clk, rnd, roomCfg, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, roomCfg room.Config, logger *slog.Logger) *App {
	authService := auth.New(store, clk, rnd, logger)
	coordinator := room.NewCoordinator(store, clk, rnd, roomCfg, logger)
	hub := ws.NewHub(logger)
	handler := ws.NewHandler(authService, coordinator, hub, logger)

	return &App{
		Storage:     store,
		Clock:       clk,
		Random:      rnd,
		AuthService: authService,
		Coordinator: coordinator,
		Hub:         hub,
		Handler:     handler,
	}
}
