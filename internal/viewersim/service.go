package viewersim

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/viewctl/viewctl/internal/protocol/session"
)

var ErrListenAddressRequired = errors.New("viewersim: listen address required")

const (
	readyLevelTransport = 4
	readyLevelLoaded    = 5

	codeUnknownAction uint32 = 1
	codeActionFailed  uint32 = 2
)

// ServiceConfig holds viewer simulator runtime settings.
type ServiceConfig struct {
	ListenAddress     string
	DocumentPath      string
	PageCount         int
	DocumentLoadDelay time.Duration
	Session           session.Config
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListenAddress:     "127.0.0.1:7411",
		PageCount:         12,
		DocumentLoadDelay: 150 * time.Millisecond,
		Session:           session.DefaultConfig(),
	}
}

func (c ServiceConfig) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return ErrListenAddressRequired
	}
	return nil
}

// Service accepts host sessions and answers viewer actions. Document
// state is shared across sessions so a reconnecting host observes the
// same viewer.
type Service struct {
	cfg      ServiceConfig
	registry *Registry
	state    *DocumentState

	mu sync.Mutex
	ln net.Listener
}

func New(cfg ServiceConfig) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	def := DefaultServiceConfig()
	if cfg.PageCount < 1 {
		cfg.PageCount = def.PageCount
	}
	if cfg.DocumentLoadDelay <= 0 {
		cfg.DocumentLoadDelay = def.DocumentLoadDelay
	}
	cfg.Session = cfg.Session.WithDefaults()
	return &Service{
		cfg:      cfg,
		registry: newBuiltinRegistry(),
		state:    NewDocumentState(),
	}, nil
}

// Actions lists the supported action specs.
func (s *Service) Actions() []ActionSpec {
	return s.registry.List()
}

// State exposes the simulated document.
func (s *Service) State() *DocumentState {
	return s.state
}

// Addr returns the bound listen address once Run has started.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Run listens for host sessions until the context ends.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("viewersim: listen %s: %w", s.cfg.ListenAddress, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	log.Info().
		Str("addr", ln.Addr().String()).
		Str("document", s.cfg.DocumentPath).
		Msg("viewer simulator listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		go s.serveConn(ctx, conn)
	}
}

// sessionWriter serializes envelope writes from the response path and
// the scripted notice path.
type sessionWriter struct {
	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration
}

func (w *sessionWriter) notice(n session.NoticeEnv) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
	return session.WriteNotice(w.conn, n)
}

func (w *sessionWriter) response(r session.ResponseEnv) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
	return session.WriteResponse(w.conn, r)
}

func (s *Service) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	log.Info().Str("remote", remote).Msg("host session accepted")

	w := &sessionWriter{conn: conn, timeout: s.cfg.Session.WriteTimeout}
	if err := w.notice(s.readyNotice()); err != nil {
		log.Warn().Str("remote", remote).Err(err).Msg("handshake write failed")
		return
	}
	if s.state.IsLoaded() {
		if err := w.notice(s.loadedNotice()); err != nil {
			return
		}
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.runScript(connCtx, w)

	reader := bufio.NewReader(conn)
	for {
		req, err := session.ReadRequest(reader)
		if err != nil {
			log.Debug().Str("remote", remote).Err(err).Msg("host session ended")
			return
		}
		resp := s.execute(req)
		if err := w.response(resp); err != nil {
			log.Warn().Str("remote", remote).Err(err).Msg("response write failed")
			return
		}
	}
}

// runScript loads the configured document after a delay and then
// heartbeats the current readiness state.
func (s *Service) runScript(ctx context.Context, w *sessionWriter) {
	if s.cfg.DocumentPath != "" && !s.state.IsLoaded() {
		timer := time.NewTimer(s.cfg.DocumentLoadDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.state.Load(s.cfg.DocumentPath, s.cfg.PageCount)
		log.Info().
			Str("path", s.cfg.DocumentPath).
			Int("pages", s.cfg.PageCount).
			Msg("document loaded")
		if err := w.notice(s.levelNotice()); err != nil {
			return
		}
		if err := w.notice(s.loadedNotice()); err != nil {
			return
		}
	}

	ticker := time.NewTicker(s.cfg.Session.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.notice(s.readyNotice()); err != nil {
				return
			}
		}
	}
}

func (s *Service) execute(req session.RequestEnv) session.ResponseEnv {
	resp := session.ResponseEnv{
		CorrelationID: req.CorrelationID,
		TimestampMS:   uint64(time.Now().UnixMilli()),
	}
	fn, ok := s.registry.Resolve(req.Action)
	if !ok {
		log.Warn().Str("action", req.Action).Msg("unknown viewer action")
		resp.Status = session.AckStatusRejected
		resp.Code = codeUnknownAction
		resp.Message = fmt.Sprintf("unknown action %q", req.Action)
		return resp
	}
	result, err := fn(s.state, req.Payload)
	if err != nil {
		log.Warn().Str("action", req.Action).Err(err).Msg("viewer action failed")
		resp.Status = session.AckStatusRejected
		resp.Code = codeActionFailed
		resp.Message = err.Error()
		return resp
	}
	log.Debug().Str("action", req.Action).Msg("viewer action executed")
	resp.Status = session.AckStatusAccepted
	resp.Message = "ok"
	resp.Result = result
	return resp
}

func (s *Service) currentLevel() int {
	if s.state.IsLoaded() {
		return readyLevelLoaded
	}
	return readyLevelTransport
}

func (s *Service) readyNotice() session.NoticeEnv {
	return session.NoticeEnv{
		Kind:        session.NoticeReadyState,
		Ready:       true,
		Level:       s.currentLevel(),
		TimestampMS: uint64(time.Now().UnixMilli()),
	}
}

func (s *Service) levelNotice() session.NoticeEnv {
	return session.NoticeEnv{
		Kind:        session.NoticeLevelUpdate,
		Level:       s.currentLevel(),
		TimestampMS: uint64(time.Now().UnixMilli()),
	}
}

func (s *Service) loadedNotice() session.NoticeEnv {
	return session.NoticeEnv{
		Kind:        session.NoticeDocumentLoaded,
		TimestampMS: uint64(time.Now().UnixMilli()),
	}
}
