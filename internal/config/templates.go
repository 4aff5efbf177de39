package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "coordinator":
		return coordinatorTemplate, nil
	case "viewer":
		return viewerTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const coordinatorTemplate = `node_id = "viewctl.host"
addr = ":7400"
cors_origins = ["http://localhost:3000"]
auth_token = ""

[bridge]
viewer = "127.0.0.1:7411"
policy = "auto"
max_connect_attempts = 0
heartbeat_ms = 5000
session_dead_ms = 15000
ack_timeout_ms = 20000
`

const viewerTemplate = `addr = "127.0.0.1:7411"
document = "docs/manual.pdf"
pages = 12
load_delay_ms = 150
heartbeat_ms = 5000
`
