// Package transport manages the client's WebSocket connection: one
// bidirectional socket carrying named events, request/response
// correlation by sequence number, push handler registration, and
// bounded reconnection with exponential backoff.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hexhold/hexhold/internal/dependencies/clock"
	"github.com/hexhold/hexhold/internal/model"
	"github.com/hexhold/hexhold/internal/protocol"
)

// State is the transport lifecycle state
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	// StateReconnected is a live connection restored after a drop, so
	// watchers can tell it apart from the first connect. Requests work
	// the same as in StateConnected.
	StateReconnected
	// StateFailed is terminal: reconnection attempts were exhausted
	// and only an explicit Connect leaves it.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateReconnected:
		return "reconnected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds transport settings
type Config struct {
	URL                  string
	DialTimeout          time.Duration
	RequestTimeout       time.Duration
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
}

// DefaultConfig returns the default transport configuration
func DefaultConfig() Config {
	return Config{
		DialTimeout:          10 * time.Second,
		RequestTimeout:       10 * time.Second,
		MaxReconnectAttempts: 5,
		ReconnectBaseDelay:   500 * time.Millisecond,
		ReconnectMaxDelay:    8 * time.Second,
	}
}

// PushHandler receives an unsolicited server event's payload
type PushHandler func(data json.RawMessage)

// StateHandler observes lifecycle transitions
type StateHandler func(s State)

// Dispatch runs a callback. The consumer injects this to pull push and
// state notifications onto its own loop (typically a job queue); the
// default runs callbacks inline on the read goroutine.
type Dispatch func(fn func())

// Transport is a client connection to the game server. Request is safe
// for concurrent use; pushes and state changes are delivered through
// the configured Dispatch.
type Transport struct {
	cfg      Config
	clock    clock.Clock
	logger   *slog.Logger
	dispatch Dispatch

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	gen      int
	seq      uint64
	pending  map[uint64]chan protocol.Response
	closing  bool
	handlers map[string][]PushHandler
	watchers []StateHandler

	writeMu sync.Mutex
}

// New creates a Transport. It starts disconnected; call Connect.
func New(cfg Config, clk clock.Clock, logger *slog.Logger) *Transport {
	def := DefaultConfig()
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.MaxReconnectAttempts == 0 {
		cfg.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if cfg.ReconnectBaseDelay == 0 {
		cfg.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay == 0 {
		cfg.ReconnectMaxDelay = def.ReconnectMaxDelay
	}
	return &Transport{
		cfg:      cfg,
		clock:    clk,
		logger:   logger.With(slog.String("component", "transport")),
		dispatch: func(fn func()) { fn() },
		pending:  make(map[uint64]chan protocol.Response),
		handlers: make(map[string][]PushHandler),
	}
}

// SetDispatch installs the callback dispatcher. Must be called before
// Connect.
func (t *Transport) SetDispatch(d Dispatch) {
	if d != nil {
		t.dispatch = d
	}
}

// OnPush registers a handler for a server-pushed event
func (t *Transport) OnPush(event string, h PushHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[event] = append(t.handlers[event], h)
}

// OnState registers a lifecycle observer
func (t *Transport) OnState(h StateHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.watchers = append(t.watchers, h)
}

// State returns the current lifecycle state
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect dials the server. Valid from Disconnected or Failed; a
// successful dial moves the transport to Connected and starts the read
// loop.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateDisconnected && t.state != StateFailed {
		t.mu.Unlock()
		return fmt.Errorf("%w: connect while %s", model.ErrTransport, t.state)
	}
	t.closing = false
	notify := t.setStateLocked(StateConnecting)
	t.mu.Unlock()
	notify()

	conn, err := t.dial(ctx)
	if err != nil {
		t.mu.Lock()
		notify = t.setStateLocked(StateDisconnected)
		t.mu.Unlock()
		notify()
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.gen++
	gen := t.gen
	notify = t.setStateLocked(StateConnected)
	t.mu.Unlock()
	notify()

	go t.readLoop(conn, gen)
	return nil
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.DialTimeout)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, t.cfg.URL, nil)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", model.ErrTransport, t.cfg.URL, err)
	}
	return conn, nil
}

// Close shuts the connection down intentionally, with no reconnect.
// Outstanding requests fail with a transport error.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closing = true
	conn := t.conn
	t.conn = nil
	t.failPendingLocked()
	notify := t.setStateLocked(StateDisconnected)
	t.mu.Unlock()
	notify()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Request sends an event and waits for the correlated response. The
// wait is bounded by the configured request timeout and by ctx.
func (t *Transport) Request(ctx context.Context, event string, payload any) (protocol.Response, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return protocol.Response{}, fmt.Errorf("encoding %s request: %w", event, err)
		}
		raw = b
	}

	t.mu.Lock()
	if (t.state != StateConnected && t.state != StateReconnected) || t.conn == nil {
		t.mu.Unlock()
		return protocol.Response{}, fmt.Errorf("%w: not connected", model.ErrTransport)
	}
	conn := t.conn
	t.seq++
	seq := t.seq
	ch := make(chan protocol.Response, 1)
	t.pending[seq] = ch
	t.mu.Unlock()

	env := protocol.Envelope{Event: event, Seq: seq, Data: raw}

	t.writeMu.Lock()
	err := conn.WriteJSON(env)
	t.writeMu.Unlock()
	if err != nil {
		t.forgetPending(seq)
		return protocol.Response{}, fmt.Errorf("%w: sending %s: %v", model.ErrTransport, event, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return protocol.Response{}, fmt.Errorf("%w: connection lost awaiting %s", model.ErrTransport, event)
		}
		return resp, nil
	case <-t.clock.After(t.cfg.RequestTimeout):
		t.forgetPending(seq)
		return protocol.Response{}, fmt.Errorf("%w: no response to %s", model.ErrTimeout, event)
	case <-ctx.Done():
		t.forgetPending(seq)
		return protocol.Response{}, fmt.Errorf("%w: %s canceled: %v", model.ErrTransport, event, ctx.Err())
	}
}

func (t *Transport) forgetPending(seq uint64) {
	t.mu.Lock()
	delete(t.pending, seq)
	t.mu.Unlock()
}

// failPendingLocked closes every waiter's channel so in-flight
// Requests return a transport error
func (t *Transport) failPendingLocked() {
	for seq, ch := range t.pending {
		close(ch)
		delete(t.pending, seq)
	}
}

func (t *Transport) readLoop(conn *websocket.Conn, gen int) {
	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.handleDisconnect(conn, gen, err)
			return
		}

		if env.Ack != 0 {
			t.deliverAck(env)
			continue
		}
		t.deliverPush(env)
	}
}

func (t *Transport) deliverAck(env protocol.Envelope) {
	var resp protocol.Response
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		resp = protocol.Response{Error: fmt.Sprintf("malformed response: %v", err)}
	}

	t.mu.Lock()
	ch, ok := t.pending[env.Ack]
	delete(t.pending, env.Ack)
	t.mu.Unlock()

	if ok {
		ch <- resp
	}
	// A response nobody is waiting for was abandoned by a timeout;
	// drop it.
}

func (t *Transport) deliverPush(env protocol.Envelope) {
	t.mu.Lock()
	handlers := make([]PushHandler, len(t.handlers[env.Event]))
	copy(handlers, t.handlers[env.Event])
	t.mu.Unlock()

	for _, h := range handlers {
		h := h
		data := env.Data
		t.dispatch(func() { h(data) })
	}
}

// handleDisconnect runs when the read loop exits. Unless Close was
// called, it begins bounded reconnection.
func (t *Transport) handleDisconnect(conn *websocket.Conn, gen int, cause error) {
	_ = conn.Close()

	t.mu.Lock()
	if gen != t.gen || t.closing {
		// A newer connection took over, or this was intentional
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.failPendingLocked()
	notify := t.setStateLocked(StateReconnecting)
	t.mu.Unlock()
	notify()

	t.logger.Warn("connection lost", slog.Any("error", cause))
	go t.reconnect(gen)
}

// reconnect retries the dial with exponential backoff until it
// succeeds or attempts are exhausted.
func (t *Transport) reconnect(gen int) {
	delay := t.cfg.ReconnectBaseDelay

	for attempt := 1; attempt <= t.cfg.MaxReconnectAttempts; attempt++ {
		<-t.clock.After(delay)
		if delay *= 2; delay > t.cfg.ReconnectMaxDelay {
			delay = t.cfg.ReconnectMaxDelay
		}

		t.mu.Lock()
		if gen != t.gen || t.closing {
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()

		conn, err := t.dial(context.Background())
		if err != nil {
			t.logger.Warn("reconnect attempt failed",
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
			continue
		}

		t.mu.Lock()
		if gen != t.gen || t.closing {
			t.mu.Unlock()
			_ = conn.Close()
			return
		}
		t.conn = conn
		t.gen++
		newGen := t.gen
		notify := t.setStateLocked(StateReconnected)
		t.mu.Unlock()
		notify()

		t.logger.Info("reconnected", slog.Int("attempt", attempt))
		go t.readLoop(conn, newGen)
		return
	}

	t.mu.Lock()
	notify := func() {}
	if gen == t.gen && !t.closing {
		notify = t.setStateLocked(StateFailed)
	}
	t.mu.Unlock()
	notify()
}

// setStateLocked transitions the state and returns a closure that
// notifies watchers. Callers hold t.mu and must invoke the closure
// after unlocking, so inline dispatchers can safely call back in.
func (t *Transport) setStateLocked(s State) func() {
	if t.state == s {
		return func() {}
	}
	t.state = s

	watchers := make([]StateHandler, len(t.watchers))
	copy(watchers, t.watchers)
	return func() {
		for _, w := range watchers {
			w := w
			t.dispatch(func() { w(s) })
		}
	}
}
