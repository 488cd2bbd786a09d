package session_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/hexhold/hexhold/internal/client/identity"
	"github.com/hexhold/hexhold/internal/client/session"
	"github.com/hexhold/hexhold/internal/dependencies/mocks"
	"github.com/hexhold/hexhold/internal/model"
	"github.com/hexhold/hexhold/internal/protocol"
	"github.com/hexhold/hexhold/internal/testutil"
)

// fakeRequester scripts responses per event and records calls
type fakeRequester struct {
	mu        sync.Mutex
	responses map[string]protocol.Response
	calls     []string
	block     chan struct{}
}

func newFakeRequester() *fakeRequester {
	return &fakeRequester{responses: map[string]protocol.Response{}}
}

func (f *fakeRequester) respondWith(event string, resp protocol.Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[event] = resp
}

func (f *fakeRequester) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRequester) Request(_ context.Context, event string, _ any) (protocol.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, event)
	resp, ok := f.responses[event]
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if !ok {
		return protocol.Response{}, model.ErrTransport
	}
	return resp, nil
}

func authOK(id, username, passhash string) protocol.Response {
	return protocol.Ok(protocol.AuthData{
		ID:       id,
		Username: username,
		Passhash: passhash,
		Color:    "#3ec54b",
	})
}

type SessionSuite struct {
	suite.Suite

	requester *fakeRequester
	store     *identity.Store
	clock     *mocks.MockClock
	session   *session.Session
}

func (s *SessionSuite) SetupTest() {
	s.requester = newFakeRequester()
	s.store = identity.NewStore(filepath.Join(s.T().TempDir(), "identity.json"))
	s.clock = mocks.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s.session = session.New(s.requester, s.store, s.clock, session.Config{}, testutil.NopLogger())
}

func (s *SessionSuite) TestRegisterSuccess() {
	digest := protocol.HashPassword("secret1")
	s.requester.respondWith(protocol.EventRegister, authOK("p1", "alice", digest))

	cred, err := s.session.Register(context.Background(), "alice", "secret1")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p1"), cred.ID)
	s.Equal("alice", cred.Username)
	s.Equal(session.PhaseSuccess, s.session.Phase())

	// Identity persisted for the next run
	profile, err := s.store.Load()
	s.Require().NoError(err)
	s.Require().NotNil(profile)
	s.Equal("p1", profile.ID)
	s.Equal("alice", profile.Username)
}

func (s *SessionSuite) TestRegisterLocalValidationSendsNothing() {
	_, err := s.session.Register(context.Background(), "ab", "secret1")
	s.ErrorIs(err, model.ErrValidation)
	s.Equal(0, s.requester.callCount())

	_, err = s.session.Register(context.Background(), "alice", "short")
	s.ErrorIs(err, model.ErrValidation)
	s.Equal(0, s.requester.callCount())

	s.Equal(session.PhaseNone, s.session.Phase())
}

func (s *SessionSuite) TestRegisterServerRejection() {
	s.requester.respondWith(protocol.EventRegister, protocol.Fail(model.ErrUsernameExists))

	_, err := s.session.Register(context.Background(), "alice", "secret1")
	s.ErrorIs(err, model.ErrProtocol)
	s.Equal(session.PhaseFailure, s.session.Phase())
	s.Nil(s.session.Current())
}

func (s *SessionSuite) TestLoginDigestMismatchFailsClosed() {
	// Server claims success but echoes a different digest
	s.requester.respondWith(protocol.EventAuth, authOK("p1", "alice", protocol.HashPassword("other")))

	_, err := s.session.Login(context.Background(), "alice", "secret1")
	s.ErrorIs(err, model.ErrProtocol)
	s.Contains(err.Error(), "digest mismatch")
	s.Equal(session.PhaseFailure, s.session.Phase())
	s.Nil(s.session.Current())
}

func (s *SessionSuite) TestLoginSuccess() {
	digest := protocol.HashPassword("secret1")
	s.requester.respondWith(protocol.EventAuth, authOK("p1", "alice", digest))

	cred, err := s.session.Login(context.Background(), "alice", "secret1")
	s.Require().NoError(err)
	s.Equal("alice", cred.Username)

	current := s.session.Current()
	s.Require().NotNil(current)
	s.Equal(cred.ID, current.ID)
}

func (s *SessionSuite) TestUIDelayHoldsResult() {
	s.session = session.New(s.requester, s.store, s.clock,
		session.Config{UIDelay: 2 * time.Second}, testutil.NopLogger())
	digest := protocol.HashPassword("secret1")
	s.requester.respondWith(protocol.EventRegister, authOK("p1", "alice", digest))

	done := make(chan error, 1)
	go func() {
		_, err := s.session.Register(context.Background(), "alice", "secret1")
		done <- err
	}()

	// The flow is parked on the delay timer
	s.Require().Eventually(func() bool { return s.clock.PendingTimers() > 0 },
		2*time.Second, 2*time.Millisecond)
	select {
	case <-done:
		s.FailNow("register returned before the delay elapsed")
	case <-time.After(20 * time.Millisecond):
	}

	// The delay is cosmetic: the state machine already moved on and
	// the identity is already persisted, only the return is held.
	s.Equal(session.PhaseSuccess, s.session.Phase())
	s.Require().NotNil(s.session.Current())
	profile, err := s.store.Load()
	s.Require().NoError(err)
	s.Require().NotNil(profile)
	s.Equal("alice", profile.Username)

	s.clock.Advance(2 * time.Second)
	s.Require().NoError(<-done)
	s.Equal(session.PhaseSuccess, s.session.Phase())
}

func (s *SessionSuite) TestResumeWithoutProfile() {
	cred, err := s.session.Resume(context.Background())
	s.NoError(err)
	s.Nil(cred)
	s.Equal(0, s.requester.callCount())
}

func (s *SessionSuite) TestResumeSkipsDelay() {
	// A configured delay must not apply to silent sign-in: the mock
	// clock never fires on its own, so Resume blocking on it would
	// hang this test.
	s.session = session.New(s.requester, s.store, s.clock,
		session.Config{UIDelay: 2 * time.Second}, testutil.NopLogger())

	s.Require().NoError(s.store.Save(identity.Profile{ID: "p1", Username: "alice"}))
	s.requester.respondWith(protocol.EventAuth, authOK("p1", "alice", ""))

	cred, err := s.session.Resume(context.Background())
	s.Require().NoError(err)
	s.Require().NotNil(cred)
	s.Equal("alice", cred.Username)
	s.Equal(session.PhaseSuccess, s.session.Phase())
}

func (s *SessionSuite) TestStaleResponseDiscarded() {
	digest := protocol.HashPassword("secret1")
	s.requester.respondWith(protocol.EventAuth, authOK("p1", "alice", digest))
	s.requester.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := s.session.Login(context.Background(), "alice", "secret1")
		done <- err
	}()

	s.Require().Eventually(func() bool { return s.requester.callCount() == 1 },
		2*time.Second, 2*time.Millisecond)

	// Logout supersedes the in-flight login before its response lands
	s.Require().NoError(s.session.Logout())
	close(s.requester.block)

	err := <-done
	s.ErrorIs(err, model.ErrConflict)
	s.Nil(s.session.Current())
	s.Equal(session.PhaseNone, s.session.Phase())
}

func (s *SessionSuite) TestLogoutClearsEverything() {
	digest := protocol.HashPassword("secret1")
	s.requester.respondWith(protocol.EventRegister, authOK("p1", "alice", digest))

	_, err := s.session.Register(context.Background(), "alice", "secret1")
	s.Require().NoError(err)

	s.Require().NoError(s.session.Logout())
	s.Nil(s.session.Current())
	s.Equal(session.PhaseNone, s.session.Phase())

	profile, err := s.store.Load()
	s.Require().NoError(err)
	s.Nil(profile)
}

func (s *SessionSuite) TestInvalidateKeepsStoredProfile() {
	digest := protocol.HashPassword("secret1")
	s.requester.respondWith(protocol.EventRegister, authOK("p1", "alice", digest))

	_, err := s.session.Register(context.Background(), "alice", "secret1")
	s.Require().NoError(err)

	s.session.Invalidate()
	s.Nil(s.session.Current())
	s.Equal(session.PhaseNone, s.session.Phase())

	// The profile stays on disk for the next startup's silent resume
	profile, err := s.store.Load()
	s.Require().NoError(err)
	s.Require().NotNil(profile)
	s.Equal("alice", profile.Username)
}

func (s *SessionSuite) TestReestablishUsesStoredIdentity() {
	digest := protocol.HashPassword("secret1")
	s.requester.respondWith(protocol.EventRegister, authOK("p1", "alice", digest))
	s.requester.respondWith(protocol.EventAuth, authOK("p1", "alice", ""))

	_, err := s.session.Register(context.Background(), "alice", "secret1")
	s.Require().NoError(err)

	s.Require().NoError(s.session.Reestablish(context.Background()))
	s.Equal(2, s.requester.callCount())
}

func (s *SessionSuite) TestReestablishSignedOutIsNoop() {
	s.NoError(s.session.Reestablish(context.Background()))
	s.Equal(0, s.requester.callCount())
}

func (s *SessionSuite) TestMalformedSuccessPayload() {
	s.requester.respondWith(protocol.EventRegister, protocol.Response{
		Data: json.RawMessage(`"not an object"`),
	})

	_, err := s.session.Register(context.Background(), "alice", "secret1")
	s.ErrorIs(err, model.ErrProtocol)
	s.Equal(session.PhaseFailure, s.session.Phase())
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}
