package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/viewctl/viewctl/internal/host"
)

// CoordinatorConfig is the on-disk shape for the host process.
type CoordinatorConfig struct {
	NodeID      string       `toml:"node_id"`
	Addr        string       `toml:"addr"`
	CorsOrigins []string     `toml:"cors_origins"`
	AuthToken   string       `toml:"auth_token"`
	Bridge      BridgeConfig `toml:"bridge"`
}

// BridgeConfig tunes the viewer link. Durations are milliseconds so the
// TOML stays plain integers.
type BridgeConfig struct {
	Viewer             string `toml:"viewer"`
	Policy             string `toml:"policy"`
	MaxConnectAttempts int    `toml:"max_connect_attempts"`
	HeartbeatMS        int    `toml:"heartbeat_ms"`
	SessionDeadMS      int    `toml:"session_dead_ms"`
	AckTimeoutMS       int    `toml:"ack_timeout_ms"`
}

// ViewerConfig is the on-disk shape for the viewer simulator.
type ViewerConfig struct {
	Addr        string `toml:"addr"`
	Document    string `toml:"document"`
	Pages       int    `toml:"pages"`
	LoadDelayMS int    `toml:"load_delay_ms"`
	HeartbeatMS int    `toml:"heartbeat_ms"`
}

func LoadCoordinatorConfig(path string) (CoordinatorConfig, error) {
	var cfg CoordinatorConfig
	if err := loadToml(path, &cfg); err != nil {
		return CoordinatorConfig{}, err
	}
	if cfg.NodeID == "" {
		cfg.NodeID = "viewctl.host"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":7400"
	}
	if cfg.Bridge.Viewer == "" {
		cfg.Bridge.Viewer = "127.0.0.1:7411"
	}
	if err := ValidateCoordinatorConfig(cfg); err != nil {
		return CoordinatorConfig{}, err
	}
	return cfg, nil
}

func LoadViewerConfig(path string) (ViewerConfig, error) {
	var cfg ViewerConfig
	if err := loadToml(path, &cfg); err != nil {
		return ViewerConfig{}, err
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:7411"
	}
	if err := ValidateViewerConfig(cfg); err != nil {
		return ViewerConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateCoordinatorConfig(cfg CoordinatorConfig) error {
	if strings.TrimSpace(cfg.NodeID) == "" {
		return fmt.Errorf("coordinator config missing node_id")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("coordinator config missing addr")
	}
	if _, err := host.ParseBridgePolicy(cfg.Bridge.Policy); err != nil {
		return fmt.Errorf("coordinator config bridge invalid: %w", err)
	}
	if cfg.Bridge.HeartbeatMS < 0 || cfg.Bridge.SessionDeadMS < 0 || cfg.Bridge.AckTimeoutMS < 0 {
		return fmt.Errorf("coordinator config bridge timings must not be negative")
	}
	return nil
}

func ValidateViewerConfig(cfg ViewerConfig) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("viewer config missing addr")
	}
	if cfg.Pages < 0 {
		return fmt.Errorf("viewer config pages must not be negative")
	}
	if cfg.LoadDelayMS < 0 || cfg.HeartbeatMS < 0 {
		return fmt.Errorf("viewer config timings must not be negative")
	}
	return nil
}
