package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/viewctl/viewctl/internal/command"
	"github.com/viewctl/viewctl/internal/protocol/session"
)

var (
	ErrSessionClosed   = errors.New("bridge: viewer session closed")
	ErrSessionStale    = errors.New("bridge: viewer session stale")
	ErrResponseTimeout = errors.New("bridge: viewer response timeout")
	ErrCommandRejected = errors.New("bridge: command rejected by viewer")
)

// Session is one live viewer connection. It implements the coordinator
// transport: Send initiates synchronously on the caller goroutine and
// the reply lands once the matching response envelope arrives.
type Session struct {
	conn     net.Conn
	reader   *bufio.Reader
	cfg      session.Config
	pending  *pendingReplies
	onNotice func(session.NoticeEnv)

	writeMu       sync.Mutex
	nextRequestID atomic.Uint64
	lastSeen      atomic.Int64
	closed        atomic.Bool
}

func newSession(conn net.Conn, reader *bufio.Reader, cfg session.Config) *Session {
	s := &Session{
		conn:    conn,
		reader:  reader,
		cfg:     cfg,
		pending: newPendingReplies(),
	}
	s.nextRequestID.Store(uint64(time.Now().UnixNano()))
	s.lastSeen.Store(time.Now().UnixNano())
	return s
}

// Send writes one request envelope and returns the channel carrying its
// eventual reply. Correlation ids are generated per request so repeated
// command identities never collide on the wire.
func (s *Session) Send(ctx context.Context, action string, payload json.RawMessage) (<-chan command.Reply, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}

	now := time.Now()
	corr := "req." + strconv.FormatUint(s.nextRequestID.Add(1), 10)
	respCh := s.pending.add(PendingRequest{
		CorrelationID: corr,
		Action:        action,
		SentAt:        now,
		DeadlineAt:    now.Add(s.cfg.AckTimeout),
	})

	s.writeMu.Lock()
	_ = s.conn.SetWriteDeadline(now.Add(s.cfg.WriteTimeout))
	err := session.WriteRequest(s.conn, session.RequestEnv{
		CorrelationID: corr,
		Action:        action,
		Payload:       payload,
	})
	s.writeMu.Unlock()
	if err != nil {
		s.pending.drop(corr)
		return nil, err
	}

	out := make(chan command.Reply, 1)
	go s.awaitResponse(ctx, corr, action, respCh, out)
	return out, nil
}

func (s *Session) awaitResponse(ctx context.Context, corr, action string, respCh <-chan session.ResponseEnv, out chan<- command.Reply) {
	timer := time.NewTimer(s.cfg.AckTimeout)
	defer timer.Stop()
	select {
	case resp, ok := <-respCh:
		if !ok {
			out <- command.Reply{Err: ErrSessionClosed}
			return
		}
		if resp.Status != session.AckStatusAccepted {
			out <- command.Reply{Err: fmt.Errorf("%w: action=%q code=%d message=%q", ErrCommandRejected, action, resp.Code, resp.Message)}
			return
		}
		out <- command.Reply{}
	case <-ctx.Done():
		s.pending.drop(corr)
		out <- command.Reply{Err: ctx.Err()}
	case <-timer.C:
		s.pending.drop(corr)
		out <- command.Reply{Err: fmt.Errorf("%w: action=%q correlation_id=%q", ErrResponseTimeout, action, corr)}
	}
}

// readLoop consumes envelopes until the connection fails. Responses are
// matched to pending requests; notices are forwarded via onNotice.
func (s *Session) readLoop() error {
	for {
		env, err := session.ReadEnvelope(s.reader)
		if err != nil {
			if s.closed.Load() {
				return ErrSessionClosed
			}
			return err
		}
		s.lastSeen.Store(time.Now().UnixNano())

		switch env.Type {
		case session.EnvelopeTypeResponse:
			if ok := s.pending.resolve(env.Response.CorrelationID, *env.Response); !ok {
				log.Debug().
					Str("correlation_id", env.Response.CorrelationID).
					Msg("viewer response without pending request")
			}
		case session.EnvelopeTypeNotice:
			if s.onNotice != nil {
				s.onNotice(*env.Notice)
			}
		case session.EnvelopeTypeRequest:
			log.Warn().
				Str("action", env.Request.Action).
				Msg("unexpected request envelope from viewer")
		}
	}
}

// SinceLastSeen reports how long ago the last envelope arrived.
func (s *Session) SinceLastSeen() time.Duration {
	return time.Since(time.Unix(0, s.lastSeen.Load()))
}

// Outstanding lists requests still awaiting a response.
func (s *Session) Outstanding() []PendingRequest {
	return s.pending.list()
}

func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.conn.Close()
	if n := s.pending.closeAll(); n > 0 {
		log.Warn().Int("abandoned", n).Msg("viewer session closed with outstanding requests")
	}
	return err
}
