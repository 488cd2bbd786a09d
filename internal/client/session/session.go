// Package session is the client's account state machine: registration
// and login, locally validated before any network traffic, with the
// stored identity used for silent re-authentication on startup and
// after reconnects.
package session

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hexhold/hexhold/internal/client/identity"
	"github.com/hexhold/hexhold/internal/dependencies/clock"
	"github.com/hexhold/hexhold/internal/model"
	"github.com/hexhold/hexhold/internal/protocol"
)

// Phase is the session's account phase
type Phase int

const (
	PhaseNone Phase = iota
	PhasePending
	PhaseSuccess
	PhaseFailure
)

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhasePending:
		return "pending"
	case PhaseSuccess:
		return "success"
	case PhaseFailure:
		return "failure"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Requester sends a request and waits for its response
type Requester interface {
	Request(ctx context.Context, event string, payload any) (protocol.Response, error)
}

// Config holds session settings
type Config struct {
	// UIDelay pads interactive register/login so the result doesn't
	// flash by. Silent re-auth skips it. Zero disables it.
	UIDelay time.Duration
}

// Session tracks the signed-in identity. Interactive flows are
// serialized by a request epoch: a flow that was superseded while its
// response was in flight discards that response instead of applying it.
type Session struct {
	transport Requester
	store     *identity.Store
	clock     clock.Clock
	logger    *slog.Logger
	cfg       Config

	mu       sync.Mutex
	phase    Phase
	epoch    uint64
	cred     *model.Credential
	passhash string
}

// New creates a Session
func New(transport Requester, store *identity.Store, clk clock.Clock, cfg Config, logger *slog.Logger) *Session {
	return &Session{
		transport: transport,
		store:     store,
		clock:     clk,
		logger:    logger.With(slog.String("component", "session")),
		cfg:       cfg,
	}
}

// Phase returns the current account phase
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Current returns the signed-in credential, or nil
func (s *Session) Current() *model.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil
	}
	c := *s.cred
	return &c
}

// Register creates a new account. Username and password are validated
// locally first; a validation failure produces no network traffic.
func (s *Session) Register(ctx context.Context, username, password string) (*model.Credential, error) {
	if err := model.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := model.ValidatePassword(password); err != nil {
		return nil, err
	}

	digest := protocol.HashPassword(password)
	return s.interactive(ctx, protocol.EventRegister, protocol.RegisterRequest{
		Username: username,
		Passhash: digest,
	}, digest)
}

// Login authenticates an existing account by username and password
func (s *Session) Login(ctx context.Context, username, password string) (*model.Credential, error) {
	if err := model.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := model.ValidatePassword(password); err != nil {
		return nil, err
	}

	digest := protocol.HashPassword(password)
	return s.interactive(ctx, protocol.EventAuth, protocol.AuthRequest{
		Username: username,
		Passhash: digest,
	}, digest)
}

// interactive runs one register/login round trip with the cosmetic
// delay and epoch staleness check. The phase transition and credential
// persist happen as soon as the response is in; the delay only holds
// the caller's return value, so signing in never depends on a timer.
func (s *Session) interactive(ctx context.Context, event string, payload any, digest string) (*model.Credential, error) {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.phase = PhasePending
	s.mu.Unlock()

	resp, err := s.transport.Request(ctx, event, payload)
	cred, err := s.resolve(epoch, resp, err, digest)

	if s.cfg.UIDelay > 0 {
		select {
		case <-s.clock.After(s.cfg.UIDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: canceled: %v", model.ErrTransport, ctx.Err())
		}
	}

	return cred, err
}

// resolve applies the outcome of an interactive exchange to the state
// machine
func (s *Session) resolve(epoch uint64, resp protocol.Response, err error, digest string) (*model.Credential, error) {
	if err != nil {
		return nil, s.fail(epoch, err)
	}
	if respErr := resp.Err(); respErr != nil {
		return nil, s.fail(epoch, respErr)
	}

	var data protocol.AuthData
	if err := resp.DecodeData(&data); err != nil {
		return nil, s.fail(epoch, err)
	}

	// Fail closed: the server echoes the digest it stored. A mismatch
	// means we are not talking to the account we think we are.
	if subtle.ConstantTimeCompare([]byte(data.Passhash), []byte(digest)) != 1 {
		return nil, s.fail(epoch, fmt.Errorf("%w: server digest mismatch", model.ErrProtocol))
	}

	return s.succeed(epoch, data, digest)
}

// Resume signs in silently with the stored identity: no password, no
// cosmetic delay. Returns (nil, nil) when no identity is stored.
func (s *Session) Resume(ctx context.Context) (*model.Credential, error) {
	profile, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, nil
	}

	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.phase = PhasePending
	s.mu.Unlock()

	resp, err := s.transport.Request(ctx, protocol.EventAuth, protocol.AuthRequest{
		ID:       profile.ID,
		Username: profile.Username,
	})
	if err != nil {
		return nil, s.fail(epoch, err)
	}
	if respErr := resp.Err(); respErr != nil {
		return nil, s.fail(epoch, respErr)
	}

	var data protocol.AuthData
	if err := resp.DecodeData(&data); err != nil {
		return nil, s.fail(epoch, err)
	}

	return s.succeed(epoch, data, "")
}

// Reestablish re-authenticates after a transport reconnect, using the
// in-memory identity. A session that was never signed in is a no-op.
func (s *Session) Reestablish(ctx context.Context) error {
	s.mu.Lock()
	cred := s.cred
	s.mu.Unlock()
	if cred == nil {
		return nil
	}

	resp, err := s.transport.Request(ctx, protocol.EventAuth, protocol.AuthRequest{
		ID:       string(cred.ID),
		Username: cred.Username,
	})
	if err != nil {
		return err
	}
	if respErr := resp.Err(); respErr != nil {
		return respErr
	}
	s.logger.Info("session reestablished", slog.String("username", cred.Username))
	return nil
}

// Invalidate drops the in-memory signed-in state without touching the
// stored profile, so a later startup can still resume silently. Used
// when the transport gives up reconnecting; any in-flight auth result
// arriving afterwards is discarded.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.epoch++
	s.cred = nil
	s.passhash = ""
	s.phase = PhaseNone
	s.mu.Unlock()
}

// Logout clears the signed-in identity and the stored profile
func (s *Session) Logout() error {
	s.mu.Lock()
	s.epoch++
	s.cred = nil
	s.passhash = ""
	s.phase = PhaseNone
	s.mu.Unlock()

	return s.store.Clear()
}

// fail records a failed flow unless a newer flow superseded it
func (s *Session) fail(epoch uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return fmt.Errorf("%w: superseded: %v", model.ErrConflict, err)
	}
	s.phase = PhaseFailure
	return err
}

// succeed applies a successful auth result unless superseded
func (s *Session) succeed(epoch uint64, data protocol.AuthData, digest string) (*model.Credential, error) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: superseded", model.ErrConflict)
	}

	cred := model.Credential{
		ID:       model.PlayerID(data.ID),
		Username: data.Username,
		ColorHex: data.Color,
	}
	s.cred = &cred
	s.passhash = digest
	s.phase = PhaseSuccess
	s.mu.Unlock()

	if err := s.store.Save(identity.Profile{
		ID:       data.ID,
		Username: data.Username,
		Color:    data.Color,
		SavedAt:  s.clock.Now(),
	}); err != nil {
		s.logger.Warn("saving identity failed", slog.Any("error", err))
	}

	s.logger.Info("signed in", slog.String("username", data.Username))
	return &cred, nil
}
