package config

import (
	"time"

	"github.com/viewctl/viewctl/internal/host"
	"github.com/viewctl/viewctl/internal/protocol/session"
	"github.com/viewctl/viewctl/internal/viewersim"
)

// HostConfig converts the on-disk coordinator shape into host runtime
// config, layering file values over the runtime defaults.
func (cfg CoordinatorConfig) HostConfig() (host.Config, error) {
	policy, err := host.ParseBridgePolicy(cfg.Bridge.Policy)
	if err != nil {
		return host.Config{}, err
	}

	out := host.DefaultConfig()
	out.NodeID = cfg.NodeID
	out.HTTPAddr = cfg.Addr
	out.CorsOrigins = cfg.CorsOrigins
	out.AuthToken = cfg.AuthToken
	out.Policy = policy
	out.Bridge.Address = cfg.Bridge.Viewer
	out.Bridge.NodeID = cfg.NodeID
	out.Bridge.MaxConnectAttempts = cfg.Bridge.MaxConnectAttempts
	applySessionOverrides(&out.Bridge.Session, cfg.Bridge.HeartbeatMS, cfg.Bridge.SessionDeadMS, cfg.Bridge.AckTimeoutMS)
	return out, nil
}

// ServiceConfig converts the on-disk viewer shape into simulator
// runtime config.
func (cfg ViewerConfig) ServiceConfig() viewersim.ServiceConfig {
	out := viewersim.DefaultServiceConfig()
	out.ListenAddress = cfg.Addr
	out.DocumentPath = cfg.Document
	if cfg.Pages > 0 {
		out.PageCount = cfg.Pages
	}
	if cfg.LoadDelayMS > 0 {
		out.DocumentLoadDelay = time.Duration(cfg.LoadDelayMS) * time.Millisecond
	}
	applySessionOverrides(&out.Session, cfg.HeartbeatMS, 0, 0)
	return out
}

func applySessionOverrides(s *session.Config, heartbeatMS, deadMS, ackMS int) {
	if heartbeatMS > 0 {
		s.HeartbeatInterval = time.Duration(heartbeatMS) * time.Millisecond
	}
	if deadMS > 0 {
		s.SessionDeadAfter = time.Duration(deadMS) * time.Millisecond
	}
	if ackMS > 0 {
		s.AckTimeout = time.Duration(ackMS) * time.Millisecond
	}
}
