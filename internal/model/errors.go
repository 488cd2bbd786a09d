package model

import (
	"errors"
	"fmt"
)

// Error classes. Every concrete error below wraps exactly one of these,
// so callers can route on class with errors.Is while still surfacing
// the specific message.
var (
	// ErrValidation: local, pre-network, deterministic. Never reaches the server.
	ErrValidation = errors.New("validation error")
	// ErrProtocol: the server answered with a non-empty error string,
	// or a payload failed to decode.
	ErrProtocol = errors.New("protocol error")
	// ErrTimeout: no response within the configured window. Late
	// responses are discarded, not retried.
	ErrTimeout = errors.New("request timed out")
	// ErrTransport: connection lost or reconnect attempts exhausted.
	// Terminal until the caller restarts the session.
	ErrTransport = errors.New("transport error")
	// ErrConflict: a server-side invariant rejection (room full, wrong
	// phase, duplicate hex). A ProtocolError subtype.
	ErrConflict = fmt.Errorf("%w: conflict", ErrProtocol)
)

// Validation errors
var (
	ErrUsernameTooShort = fmt.Errorf("%w: username too short", ErrValidation)
	ErrUsernameTooLong  = fmt.Errorf("%w: username too long", ErrValidation)
	ErrUsernameCharset  = fmt.Errorf("%w: username may only contain letters, digits and underscores", ErrValidation)
	ErrPasswordTooShort = fmt.Errorf("%w: password too short", ErrValidation)
	ErrPasswordTooLong  = fmt.Errorf("%w: password too long", ErrValidation)
	ErrPasswordCharset  = fmt.Errorf("%w: password may only contain letters, digits and underscores", ErrValidation)
	ErrBadRoomCode      = fmt.Errorf("%w: room code must be 4 alphanumeric characters", ErrValidation)
	ErrMessageTooShort  = fmt.Errorf("%w: message too short", ErrValidation)
	ErrMessageTooLong   = fmt.Errorf("%w: message too long", ErrValidation)
)

// Auth errors
var (
	ErrPlayerNotFound     = fmt.Errorf("%w: player not found", ErrProtocol)
	ErrUsernameExists     = fmt.Errorf("%w: username already exists", ErrConflict)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrProtocol)
)

// Room and match errors
var (
	ErrRoomNotFound     = fmt.Errorf("%w: room not found", ErrProtocol)
	ErrRoomFull         = fmt.Errorf("%w: room is full", ErrConflict)
	ErrWrongPhase       = fmt.Errorf("%w: room is not accepting that right now", ErrConflict)
	ErrNotEnoughPlayers = fmt.Errorf("%w: not enough players", ErrConflict)
	ErrNotInRoom        = fmt.Errorf("%w: player is not in the room", ErrConflict)
	ErrMatchNotFound    = fmt.Errorf("%w: match not found", ErrProtocol)
	ErrMatchNotStarted  = fmt.Errorf("%w: match has not started", ErrConflict)
	ErrReservedRoomCode = fmt.Errorf("%w: that room code is reserved", ErrConflict)
)
