package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/viewctl/viewctl/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServiceConfigDefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
document = "docs/spec.pdf"
pages = 6
`)

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DocumentPath != "docs/spec.pdf" {
		t.Fatalf("unexpected document: %q", cfg.DocumentPath)
	}
	if cfg.PageCount != 6 {
		t.Fatalf("unexpected pages: %d", cfg.PageCount)
	}
	if cfg.ListenAddress != "127.0.0.1:7411" {
		t.Fatalf("default addr not preserved: %q", cfg.ListenAddress)
	}
	if cfg.DocumentLoadDelay != 150*time.Millisecond {
		t.Fatalf("default load delay not preserved: %v", cfg.DocumentLoadDelay)
	}
}

func TestLoadServiceConfigDurationSpellings(t *testing.T) {
	path := writeConfig(t, `
load_delay = "75ms"
heartbeat_ms = 1200
`)

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DocumentLoadDelay != 75*time.Millisecond {
		t.Fatalf("unexpected load delay: %v", cfg.DocumentLoadDelay)
	}
	if cfg.Session.HeartbeatInterval != 1200*time.Millisecond {
		t.Fatalf("unexpected heartbeat: %v", cfg.Session.HeartbeatInterval)
	}
}

func TestLoadServiceConfigBadDuration(t *testing.T) {
	path := writeConfig(t, `
heartbeat = "abc"
`)

	if _, err := loadServiceConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadServiceConfigAcceptsCanonicalTemplate(t *testing.T) {
	template, err := config.Template("viewer")
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	path := writeConfig(t, template)

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DocumentPath != "docs/manual.pdf" || cfg.PageCount != 12 {
		t.Fatalf("unexpected template fields: %+v", cfg)
	}
	if cfg.DocumentLoadDelay != 150*time.Millisecond {
		t.Fatalf("unexpected template delay: %v", cfg.DocumentLoadDelay)
	}
	if cfg.Session.HeartbeatInterval != 5*time.Second {
		t.Fatalf("unexpected template heartbeat: %v", cfg.Session.HeartbeatInterval)
	}
}
