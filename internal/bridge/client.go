package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/viewctl/viewctl/internal/command"
	"github.com/viewctl/viewctl/internal/observability"
	"github.com/viewctl/viewctl/internal/protocol/session"
)

var (
	ErrViewerAddressRequired = errors.New("bridge: viewer address required")
	ErrCoordinatorRequired   = errors.New("bridge: coordinator required")
	ErrHandshakeFailed       = errors.New("bridge: viewer handshake failed")
)

type ClientConfig struct {
	Address            string
	NodeID             string
	Session            session.Config
	MaxConnectAttempts int
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Session: session.DefaultConfig(),
	}
}

// Client maintains one viewer link for a coordinator: it dials,
// handshakes, forwards readiness notices, and reconnects with backoff
// when the session drops.
type Client struct {
	cfg   ClientConfig
	coord *command.Coordinator
	rng   *rand.Rand

	mu        sync.Mutex
	sess      *Session
	seeded    bool
	lastReady bool
	lastLevel command.Level
}

func NewClient(cfg ClientConfig, coord *command.Coordinator) (*Client, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrViewerAddressRequired
	}
	if coord == nil {
		return nil, ErrCoordinatorRequired
	}
	cfg.Session = cfg.Session.WithDefaults()
	return &Client{
		cfg:   cfg,
		coord: coord,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Run dials and serves viewer sessions until the context ends or the
// connect attempt budget is exhausted.
func (c *Client) Run(ctx context.Context) error {
	var attempt int
	for {
		attempt++
		sess, first, err := c.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().
				Int("attempt", attempt).
				Str("addr", c.cfg.Address).
				Err(err).
				Msg("viewer connect failed")
			if !c.shouldRetry(attempt) {
				return err
			}
			if err := c.sleepBackoff(ctx, attempt); err != nil {
				return err
			}
			continue
		}
		attempt = 0

		c.install(sess)
		c.handleNotice(first)
		log.Info().
			Str("addr", c.cfg.Address).
			Str("node_id", c.cfg.NodeID).
			Msg("viewer session established")

		err = c.serve(ctx, sess)
		c.teardown(sess)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("viewer session ended")
		if err := c.sleepBackoff(ctx, 1); err != nil {
			return err
		}
	}
}

// Connected reports whether a live session is installed.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil
}

// Outstanding lists in-flight requests on the current session.
func (c *Client) Outstanding() []PendingRequest {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return nil
	}
	return sess.Outstanding()
}

// connect dials the viewer and waits for the opening ready-state
// notice. The notice is returned unapplied so the caller can install
// the transport first.
func (c *Client) connect(ctx context.Context) (*Session, session.NoticeEnv, error) {
	dialer := net.Dialer{Timeout: c.cfg.Session.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Address)
	if err != nil {
		return nil, session.NoticeEnv{}, err
	}

	_ = conn.SetDeadline(time.Now().Add(c.cfg.Session.HandshakeTimeout))
	reader := bufio.NewReader(conn)
	env, err := session.ReadEnvelope(reader)
	if err != nil {
		_ = conn.Close()
		return nil, session.NoticeEnv{}, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if env.Type != session.EnvelopeTypeNotice || env.Notice.Kind != session.NoticeReadyState {
		_ = conn.Close()
		return nil, session.NoticeEnv{}, fmt.Errorf("%w: first envelope %q", ErrHandshakeFailed, env.Type)
	}
	_ = conn.SetDeadline(time.Time{})

	sess := newSession(conn, reader, c.cfg.Session)
	sess.onNotice = c.handleNotice
	return sess, *env.Notice, nil
}

func (c *Client) install(sess *Session) {
	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()
	c.coord.SetTransport(sess)
	observability.RecordBridgeConnect()
	observability.SetBridgeUp(true)
}

func (c *Client) teardown(sess *Session) {
	_ = sess.Close()
	c.mu.Lock()
	c.sess = nil
	c.seeded = false
	c.lastReady = false
	c.lastLevel = 0
	c.mu.Unlock()
	c.coord.SetTransport(nil)
	c.coord.SetReady(false, 0)
	observability.SetBridgeUp(false)
}

// serve pumps the session read loop and watches for staleness.
func (c *Client) serve(ctx context.Context, sess *Session) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- sess.readLoop()
	}()

	ticker := time.NewTicker(c.cfg.Session.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = sess.Close()
			<-errCh
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-ticker.C:
			if since := sess.SinceLastSeen(); since > c.cfg.Session.SessionDeadAfter {
				_ = sess.Close()
				<-errCh
				return fmt.Errorf("%w: last envelope %s ago", ErrSessionStale, since.Round(time.Millisecond))
			}
		}
	}
}

// handleNotice forwards viewer readiness into the coordinator.
// Repeated identical ready-state notices act as heartbeats and are not
// re-applied.
func (c *Client) handleNotice(n session.NoticeEnv) {
	switch n.Kind {
	case session.NoticeReadyState:
		level := command.Level(n.Level)
		c.mu.Lock()
		changed := !c.seeded || n.Ready != c.lastReady || level != c.lastLevel
		c.seeded = true
		c.lastReady = n.Ready
		c.lastLevel = level
		c.mu.Unlock()
		if changed {
			c.coord.SetReady(n.Ready, level)
		}
	case session.NoticeLevelUpdate:
		level := command.Level(n.Level)
		c.mu.Lock()
		c.lastLevel = level
		c.mu.Unlock()
		c.coord.UpdateLevel(level)
	case session.NoticeDocumentLoaded:
		c.coord.MarkTargetLoaded()
	}
}

func (c *Client) shouldRetry(attempt int) bool {
	if c.cfg.MaxConnectAttempts <= 0 {
		return true
	}
	return attempt < c.cfg.MaxConnectAttempts
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	delay := c.cfg.Session.Backoff.NextDelay(attempt, c.rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
