package host

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/viewctl/viewctl/internal/auth"
	"github.com/viewctl/viewctl/internal/bridge"
	"github.com/viewctl/viewctl/internal/command"
	"github.com/viewctl/viewctl/internal/server"
)

var (
	ErrInvalidHeartbeatInterval = errors.New("host: invalid heartbeat interval")
	ErrInvalidBridgePolicy      = errors.New("host: invalid bridge policy")
)

// BridgePolicy controls host behavior when the viewer is unavailable.
type BridgePolicy string

const (
	// BridgePolicyDisabled never dials the viewer; queued commands wait
	// until something else supplies readiness.
	BridgePolicyDisabled BridgePolicy = "disabled"
	// BridgePolicyAuto dials when a viewer address is configured and
	// keeps retrying in the background.
	BridgePolicyAuto BridgePolicy = "auto"
	// BridgePolicyRequired treats bridge failure as fatal for the host.
	BridgePolicyRequired BridgePolicy = "required"
)

// ParseBridgePolicy maps a config string onto a policy. Empty input
// selects auto.
func ParseBridgePolicy(raw string) (BridgePolicy, error) {
	switch policy := BridgePolicy(strings.ToLower(strings.TrimSpace(raw))); policy {
	case "":
		return BridgePolicyAuto, nil
	case BridgePolicyDisabled, BridgePolicyAuto, BridgePolicyRequired:
		return policy, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBridgePolicy, raw)
	}
}

// Config configures the host standalone runtime.
type Config struct {
	NodeID            string
	HTTPAddr          string
	CorsOrigins       []string
	AuthToken         string
	Policy            BridgePolicy
	Bridge            bridge.ClientConfig
	HeartbeatInterval time.Duration
}

func DefaultConfig() Config {
	cfg := Config{
		NodeID:            "viewctl.host",
		HTTPAddr:          ":7400",
		Policy:            BridgePolicyAuto,
		Bridge:            bridge.DefaultClientConfig(),
		HeartbeatInterval: 5 * time.Second,
	}
	cfg.Bridge.Address = "127.0.0.1:7411"
	return cfg
}

// Service runs the coordinator, its HTTP surface, and the viewer
// bridge as one process.
type Service struct {
	cfg    Config
	coord  *command.Coordinator
	server *server.Server
	bridge *bridge.Client
}

func New(cfg Config) (*Service, error) {
	if cfg.HeartbeatInterval <= 0 {
		return nil, ErrInvalidHeartbeatInterval
	}
	if strings.TrimSpace(string(cfg.Policy)) == "" {
		cfg.Policy = BridgePolicyAuto
	}
	if _, err := ParseBridgePolicy(string(cfg.Policy)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Bridge.NodeID) == "" {
		cfg.Bridge.NodeID = cfg.NodeID
	}

	coord := command.New(command.Config{})
	srv := server.Appear(cfg.NodeID, cfg.HTTPAddr, cfg.CorsOrigins, coord)
	if token := strings.TrimSpace(cfg.AuthToken); token != "" {
		srv.SetAuth(auth.StaticToken{Token: token})
	}

	svc := &Service{cfg: cfg, coord: coord, server: srv}
	if cfg.Policy != BridgePolicyDisabled {
		client, err := bridge.NewClient(cfg.Bridge, coord)
		if err != nil {
			if cfg.Policy == BridgePolicyRequired {
				return nil, err
			}
			log.Warn().Err(err).Msg("viewer bridge disabled")
		} else {
			svc.bridge = client
			srv.SetBridge(client)
		}
	}
	return svc, nil
}

func (s *Service) Coordinator() *command.Coordinator {
	return s.coord
}

func (s *Service) Server() *server.Server {
	return s.server
}

// Bridge returns the viewer link, or nil when the policy disabled it.
func (s *Service) Bridge() *bridge.Client {
	return s.bridge
}

// Run blocks until a process signal stops the host.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Serve runs the HTTP surface and the viewer bridge until ctx ends.
// Bridge failures are fatal only under the required policy.
func (s *Service) Serve(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- s.server.Serve()
	}()

	bridgeErr := make(chan error, 1)
	if s.bridge != nil {
		go func() {
			bridgeErr <- s.bridge.Run(ctx)
		}()
	}

	log.Info().
		Str("node_id", s.cfg.NodeID).
		Str("addr", s.cfg.HTTPAddr).
		Str("policy", string(s.cfg.Policy)).
		Msg("host service started")

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("node_id", s.cfg.NodeID).Msg("host service shutdown")
			return nil
		case err := <-serverErr:
			if err != nil {
				return fmt.Errorf("host: http server failed: %w", err)
			}
			return nil
		case err := <-bridgeErr:
			if ctx.Err() != nil {
				continue
			}
			if s.cfg.Policy == BridgePolicyRequired {
				return fmt.Errorf("host: viewer bridge failed: %w", err)
			}
			log.Warn().Err(err).Msg("viewer bridge stopped")
		case <-ticker.C:
			snap := s.coord.Snapshot()
			log.Info().
				Bool("ready", snap.Ready).
				Int("level", int(snap.Level)).
				Int("queued", snap.Queued).
				Int("executing", snap.Executing).
				Bool("bridge_connected", s.bridge != nil && s.bridge.Connected()).
				Msg("host heartbeat")
		}
	}
}
