package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/hexhold/hexhold/internal/client/game"
	"github.com/hexhold/hexhold/internal/client/identity"
	"github.com/hexhold/hexhold/internal/client/jobqueue"
	"github.com/hexhold/hexhold/internal/client/session"
	"github.com/hexhold/hexhold/internal/client/transport"
	"github.com/hexhold/hexhold/internal/dependencies/clock"
	"github.com/hexhold/hexhold/internal/model"
)

// drainInterval is the tick at which queued network callbacks are
// applied
const drainInterval = 50 * time.Millisecond

// Client bundles the connected client stack for one CLI invocation
type Client struct {
	Transport *transport.Transport
	Session   *session.Session
	Game      *game.Game

	queue     *jobqueue.Queue
	stopDrain chan struct{}
	closeOnce sync.Once
}

// connect dials the server and wires up session and game state
func connect(cfg *Config, notifier game.Notifier) (*Client, error) {
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	clk := clock.New()
	store := identity.NewStore(cfg.IdentityFile)

	trCfg := transport.DefaultConfig()
	trCfg.URL = cfg.ServerURL
	tr := transport.New(trCfg, clk, logger)

	// Network callbacks are queued and applied on a single drain loop,
	// never on the transport's read goroutine
	queue := jobqueue.New()
	tr.SetDispatch(func(fn func()) { queue.Enqueue(fn) })

	sess := session.New(tr, store, clk, session.Config{}, logger)
	g := game.New(tr, sess, clk, notifier, logger)

	// Re-authenticate automatically when the transport comes back;
	// give up the signed-in state when it never does
	tr.OnState(func(s transport.State) {
		switch s {
		case transport.StateReconnected:
			if err := sess.Reestablish(context.Background()); err != nil {
				logger.Warn("re-auth after reconnect failed", slog.Any("error", err))
			}
		case transport.StateFailed:
			sess.Invalidate()
			g.Reset()
			fmt.Fprintln(os.Stderr, "connection lost; sign in again once the server is reachable")
		}
	})

	if err := tr.Connect(context.Background()); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.ServerURL, err)
	}

	c := &Client{
		Transport: tr,
		Session:   sess,
		Game:      g,
		queue:     queue,
		stopDrain: make(chan struct{}),
	}
	go c.drainLoop()
	return c, nil
}

// drainLoop applies queued callbacks once per tick until Close
func (c *Client) drainLoop() {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopDrain:
			c.queue.Drain()
			return
		case <-ticker.C:
			c.queue.Drain()
		}
	}
}

// connectSignedIn connects and resumes the stored identity, failing if
// none is stored
func connectSignedIn(cfg *Config, notifier game.Notifier) (*Client, error) {
	c, err := connect(cfg, notifier)
	if err != nil {
		return nil, err
	}

	cred, err := c.Session.Resume(context.Background())
	if err != nil {
		_ = c.Transport.Close()
		return nil, err
	}
	if cred == nil {
		_ = c.Transport.Close()
		return nil, fmt.Errorf("not signed in; run 'hexhold register' or 'hexhold login' first")
	}
	return c, nil
}

// Close tears the connection and the drain loop down
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.stopDrain) })
	_ = c.Transport.Close()
}

// Me returns the signed-in credential
func (c *Client) Me() (*model.Credential, error) {
	cred := c.Session.Current()
	if cred == nil {
		return nil, fmt.Errorf("not signed in")
	}
	return cred, nil
}
