package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/viewctl/viewctl/internal/viewersim"
)

// viewersim config.toml key mapping onto simulator runtime settings.
// Delay keys accept either a duration string or a millisecond integer.
type fileConfig struct {
	Addr        string `toml:"addr"`
	Document    string `toml:"document"`
	Pages       int    `toml:"pages"`
	LoadDelay   string `toml:"load_delay"`
	LoadDelayMS int64  `toml:"load_delay_ms"`
	Heartbeat   string `toml:"heartbeat"`
	HeartbeatMS int64  `toml:"heartbeat_ms"`
}

// viewersim loader for TOML config with default overlay.
func loadServiceConfig(path string) (viewersim.ServiceConfig, error) {
	cfg := viewersim.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return viewersim.ServiceConfig{}, fmt.Errorf("load viewer config: %w", err)
	}

	if meta.IsDefined("addr") {
		addr := strings.TrimSpace(raw.Addr)
		if addr != "" {
			cfg.ListenAddress = addr
		}
	}

	if meta.IsDefined("document") {
		cfg.DocumentPath = strings.TrimSpace(raw.Document)
	}

	if meta.IsDefined("pages") {
		cfg.PageCount = raw.Pages
	}

	if meta.IsDefined("load_delay") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.LoadDelay))
		if err != nil {
			return viewersim.ServiceConfig{}, fmt.Errorf("parse load_delay: %w", err)
		}
		cfg.DocumentLoadDelay = d
	}

	if meta.IsDefined("load_delay_ms") {
		cfg.DocumentLoadDelay = time.Duration(raw.LoadDelayMS) * time.Millisecond
	}

	if meta.IsDefined("heartbeat") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Heartbeat))
		if err != nil {
			return viewersim.ServiceConfig{}, fmt.Errorf("parse heartbeat: %w", err)
		}
		cfg.Session.HeartbeatInterval = d
	}

	if meta.IsDefined("heartbeat_ms") {
		cfg.Session.HeartbeatInterval = time.Duration(raw.HeartbeatMS) * time.Millisecond
	}

	return cfg, nil
}
