package e2e

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/hexhold/hexhold/internal/client/game"
	"github.com/hexhold/hexhold/internal/client/identity"
	"github.com/hexhold/hexhold/internal/client/jobqueue"
	"github.com/hexhold/hexhold/internal/client/session"
	"github.com/hexhold/hexhold/internal/client/transport"
	"github.com/hexhold/hexhold/internal/dependencies/clock"
	"github.com/hexhold/hexhold/internal/factory"
	"github.com/hexhold/hexhold/internal/model"
	"github.com/hexhold/hexhold/internal/protocol"
	"github.com/hexhold/hexhold/internal/testutil"
	"github.com/hexhold/hexhold/internal/ws"
)

const waitFor = 5 * time.Second

// E2ESuite runs full client stacks against a real server over real
// WebSocket connections: transport, session and game on one side,
// factory-wired hub, coordinator and storage on the other.
type E2ESuite struct {
	suite.Suite

	app    *factory.App
	server *httptest.Server
	url    string
}

func (s *E2ESuite) SetupTest() {
	logger := testutil.NopLogger()

	app, err := factory.New(factory.Config{Logger: logger})
	s.Require().NoError(err)
	s.app = app

	s.server = httptest.NewServer(ws.NewRouter(ws.RouterConfig{
		Logger:  logger,
		Handler: app.Handler,
	}))
	s.url = "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
}

func (s *E2ESuite) TearDownTest() {
	s.server.Close()
}

// recorder captures notifier callbacks for assertions
type recorder struct {
	mu       sync.Mutex
	chat     []protocol.MessageData
	rosters  [][]protocol.UserInfo
	starting []model.RoomID
	began    []beganEvent
	towers   [][]model.Tower
}

type beganEvent struct {
	roomID       model.RoomID
	friendlyBase int
	enemyBase    int
}

func (r *recorder) ChatReceived(msg protocol.MessageData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat = append(r.chat, msg)
}

func (r *recorder) RosterChanged(_ model.RoomID, users []protocol.UserInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rosters = append(r.rosters, users)
}

func (r *recorder) MatchStarting(roomID model.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starting = append(r.starting, roomID)
}

func (r *recorder) MatchBegan(roomID model.RoomID, friendlyBase, enemyBase int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.began = append(r.began, beganEvent{roomID, friendlyBase, enemyBase})
}

func (r *recorder) TowersChanged(_ model.RoomID, towers []model.Tower) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.towers = append(r.towers, towers)
}

func (r *recorder) EconomyChanged(model.Economy) {}

func (r *recorder) chatCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chat)
}

func (r *recorder) lastChat() protocol.MessageData {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chat[len(r.chat)-1]
}

func (r *recorder) startingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.starting)
}

func (r *recorder) beganCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.began)
}

func (r *recorder) lastBegan() beganEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.began[len(r.began)-1]
}

func (r *recorder) towersCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.towers)
}

var _ game.Notifier = (*recorder)(nil)

// player is one complete in-process client stack
type player struct {
	transport *transport.Transport
	session   *session.Session
	game      *game.Game
	recorder  *recorder
	cred      *model.Credential
}

// newPlayer connects a full client stack and registers an account.
// Pushes and state changes go through a job queue drained on its own
// loop, the way the CLI assembles the stack.
func (s *E2ESuite) newPlayer(username, password string) *player {
	logger := testutil.NopLogger()
	clk := clock.New()
	store := identity.NewStore(filepath.Join(s.T().TempDir(), "identity.json"))

	cfg := transport.DefaultConfig()
	cfg.URL = s.url
	cfg.ReconnectBaseDelay = 20 * time.Millisecond
	tr := transport.New(cfg, clk, logger)

	queue := jobqueue.New()
	tr.SetDispatch(func(fn func()) { queue.Enqueue(fn) })
	s.drainInBackground(queue)

	sess := session.New(tr, store, clk, session.Config{}, logger)
	rec := &recorder{}
	g := game.New(tr, sess, clk, rec, logger)

	s.Require().NoError(tr.Connect(context.Background()))
	s.T().Cleanup(func() { _ = tr.Close() })

	cred, err := sess.Register(context.Background(), username, password)
	s.Require().NoError(err)
	s.Require().Equal(username, cred.Username)

	return &player{transport: tr, session: sess, game: g, recorder: rec, cred: cred}
}

// drainInBackground runs a drain loop for the queue until test teardown
func (s *E2ESuite) drainInBackground(queue *jobqueue.Queue) {
	stop := make(chan struct{})
	s.T().Cleanup(func() { close(stop) })
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				queue.Drain()
			}
		}
	}()
}

// hostAndJoin puts both players in a fresh room
func (s *E2ESuite) hostAndJoin(host, guest *player) model.RoomID {
	code, err := host.game.Host(context.Background())
	s.Require().NoError(err)
	s.Require().Len(code, 4)

	joined, err := guest.game.Join(context.Background(), string(code))
	s.Require().NoError(err)
	s.Require().Equal(code, joined)

	// The host hears about the new member
	s.Require().Eventually(func() bool {
		host.recorder.mu.Lock()
		defer host.recorder.mu.Unlock()
		for _, roster := range host.recorder.rosters {
			if len(roster) == 2 {
				return true
			}
		}
		return false
	}, waitFor, 10*time.Millisecond)

	return code
}

func (s *E2ESuite) TestRegisterThenLoginFresh() {
	alice := s.newPlayer("alice", "hunter22")

	// A second stack logs in to the same account by username/password
	logger := testutil.NopLogger()
	clk := clock.New()
	store := identity.NewStore(filepath.Join(s.T().TempDir(), "identity.json"))

	cfg := transport.DefaultConfig()
	cfg.URL = s.url
	tr := transport.New(cfg, clk, logger)
	s.Require().NoError(tr.Connect(context.Background()))
	defer func() { _ = tr.Close() }()

	sess := session.New(tr, store, clk, session.Config{}, logger)
	cred, err := sess.Login(context.Background(), "alice", "hunter22")
	s.Require().NoError(err)
	s.Equal(alice.cred.ID, cred.ID)

	_, err = sess.Login(context.Background(), "alice", "wrong-password")
	s.Error(err)
}

func (s *E2ESuite) TestMenuChatReachesOtherPlayers() {
	alice := s.newPlayer("alice", "hunter22")
	bobby := s.newPlayer("bobby", "hunter23")

	s.Require().NoError(alice.game.SendMessage(context.Background(), "anyone around?"))

	s.Require().Eventually(func() bool {
		return bobby.recorder.chatCount() > 0
	}, waitFor, 10*time.Millisecond)

	msg := bobby.recorder.lastChat()
	s.Equal(string(model.MainRoomID), msg.RoomID)
	s.Equal("alice", msg.Username)
	s.Equal("anyone around?", msg.Message)

	// The sender renders their own line from the acknowledgment
	s.Require().Equal(1, alice.recorder.chatCount())
	s.Equal("anyone around?", alice.recorder.lastChat().Message)
}

func (s *E2ESuite) TestRoomChatStaysInRoom() {
	alice := s.newPlayer("alice", "hunter22")
	bobby := s.newPlayer("bobby", "hunter23")
	carol := s.newPlayer("carol", "hunter24")

	code := s.hostAndJoin(alice, bobby)

	s.Require().NoError(alice.game.SendMessage(context.Background(), "ready when you are"))

	s.Require().Eventually(func() bool {
		return bobby.recorder.chatCount() > 0
	}, waitFor, 10*time.Millisecond)
	s.Equal(string(code), bobby.recorder.lastChat().RoomID)

	// Carol is in the menu and never sees room traffic
	s.Equal(0, carol.recorder.chatCount())
}

func (s *E2ESuite) TestFullMatchFlow() {
	alice := s.newPlayer("alice", "hunter22")
	bobby := s.newPlayer("bobby", "hunter23")

	code := s.hostAndJoin(alice, bobby)

	// Host starts; the guest is told to load the match scene
	s.Require().NoError(alice.game.Start(context.Background()))
	s.Require().Eventually(func() bool {
		return bobby.recorder.startingCount() > 0
	}, waitFor, 10*time.Millisecond)

	// Both report scene-ready; the second report completes the set
	s.Require().NoError(alice.game.Ready(context.Background()))
	s.Require().NoError(bobby.game.Ready(context.Background()))

	s.Require().Eventually(func() bool {
		return alice.recorder.beganCount() > 0 && bobby.recorder.beganCount() > 0
	}, waitFor, 10*time.Millisecond)

	// Base assignments are mirrored between the two perspectives
	aliceBegan := alice.recorder.lastBegan()
	bobbyBegan := bobby.recorder.lastBegan()
	s.Equal(code, aliceBegan.roomID)
	s.Equal(aliceBegan.friendlyBase, bobbyBegan.enemyBase)
	s.Equal(aliceBegan.enemyBase, bobbyBegan.friendlyBase)
	s.NotEqual(aliceBegan.friendlyBase, aliceBegan.enemyBase)

	s.True(alice.game.InMatch())
	s.Equal(model.StartingMoney, alice.game.Economy().Money)

	// Pick a hex neither base occupies
	hex := 0
	for hex == aliceBegan.friendlyBase || hex == aliceBegan.enemyBase {
		hex++
	}
	s.Require().NoError(alice.game.PlaceTower(context.Background(), hex, model.TowerGun, 90))

	// Bobby sees the tower from the opposite perspective
	s.Require().Eventually(func() bool {
		for _, t := range bobby.game.Towers() {
			if t.HexIndex == hex {
				return t.Side == model.SideEnemy && t.Type == model.TowerGun
			}
		}
		return false
	}, waitFor, 10*time.Millisecond)

	// Both now track two bases plus the gun
	s.Len(alice.game.Towers(), 3)
	s.Len(bobby.game.Towers(), 3)
}

func (s *E2ESuite) TestDisconnectNotifiesRoom() {
	alice := s.newPlayer("alice", "hunter22")
	bobby := s.newPlayer("bobby", "hunter23")

	s.hostAndJoin(alice, bobby)

	s.Require().NoError(bobby.transport.Close())

	// The host's roster shrinks back to one
	s.Require().Eventually(func() bool {
		roster := alice.game.Roster()
		return len(roster) == 1 && roster[0].Username == "alice"
	}, waitFor, 10*time.Millisecond)
}

func (s *E2ESuite) TestReconnectReestablishesAuth() {
	logger := testutil.NopLogger()
	clk := clock.New()
	store := identity.NewStore(filepath.Join(s.T().TempDir(), "identity.json"))

	cfg := transport.DefaultConfig()
	cfg.URL = s.url
	cfg.ReconnectBaseDelay = 20 * time.Millisecond
	tr := transport.New(cfg, clk, logger)

	queue := jobqueue.New()
	tr.SetDispatch(func(fn func()) { queue.Enqueue(fn) })
	s.drainInBackground(queue)

	sess := session.New(tr, store, clk, session.Config{}, logger)
	g := game.New(tr, sess, clk, game.NopNotifier{}, logger)

	// Same wiring the CLI uses: re-auth whenever the transport comes back
	var reauthed atomic.Bool
	tr.OnState(func(st transport.State) {
		if st == transport.StateReconnected {
			if err := sess.Reestablish(context.Background()); err == nil {
				reauthed.Store(true)
			}
		}
	})

	s.Require().NoError(tr.Connect(context.Background()))
	defer func() { _ = tr.Close() }()

	_, err := sess.Register(context.Background(), "alice", "hunter22")
	s.Require().NoError(err)

	// Sever every connection out from under the client
	s.server.CloseClientConnections()

	s.Require().Eventually(func() bool {
		return reauthed.Load()
	}, waitFor, 10*time.Millisecond)
	s.Equal(transport.StateReconnected, tr.State())

	// The restored session is fully usable
	code, err := g.Host(context.Background())
	s.Require().NoError(err)
	s.Len(code, 4)
}

func TestE2ESuite(t *testing.T) {
	suite.Run(t, new(E2ESuite))
}
