package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/viewctl/viewctl/internal/bridge"
	"github.com/viewctl/viewctl/internal/command"
	"github.com/viewctl/viewctl/internal/protocol/session"
	"github.com/viewctl/viewctl/internal/testutil/testlog"
	"github.com/viewctl/viewctl/internal/viewersim"
)

func fastSession() session.Config {
	cfg := session.DefaultConfig()
	cfg.ConnectTimeout = time.Second
	cfg.HandshakeTimeout = time.Second
	cfg.WriteTimeout = time.Second
	cfg.HeartbeatInterval = 20 * time.Millisecond
	cfg.SessionDeadAfter = time.Second
	cfg.AckTimeout = 2 * time.Second
	cfg.Backoff.InitialDelay = 10 * time.Millisecond
	cfg.Backoff.Multiplier = 1.0
	cfg.Backoff.MaxDelay = 20 * time.Millisecond
	cfg.Backoff.Jitter = false
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestParseBridgePolicy(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		raw     string
		want    BridgePolicy
		wantErr bool
	}{
		{raw: "", want: BridgePolicyAuto},
		{raw: "auto", want: BridgePolicyAuto},
		{raw: "  AUTO ", want: BridgePolicyAuto},
		{raw: "disabled", want: BridgePolicyDisabled},
		{raw: "Required", want: BridgePolicyRequired},
		{raw: "sometimes", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseBridgePolicy(tc.raw)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidBridgePolicy) {
				t.Fatalf("expected invalid policy error for %q, got %v", tc.raw, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseBridgePolicy(%q) = %q, %v; want %q", tc.raw, got, err, tc.want)
		}
	}
}

func TestNewValidatesConfig(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.HeartbeatInterval = 0
	if _, err := New(cfg); !errors.Is(err, ErrInvalidHeartbeatInterval) {
		t.Fatalf("expected heartbeat error, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.Policy = "sometimes"
	if _, err := New(cfg); !errors.Is(err, ErrInvalidBridgePolicy) {
		t.Fatalf("expected policy error, got %v", err)
	}
}

func TestNewRequiredPolicyNeedsViewerAddress(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.Policy = BridgePolicyRequired
	cfg.Bridge.Address = ""
	if _, err := New(cfg); !errors.Is(err, bridge.ErrViewerAddressRequired) {
		t.Fatalf("expected address error under required policy, got %v", err)
	}
}

func TestNewAutoPolicyToleratesMissingViewer(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.Bridge.Address = ""
	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("auto policy should tolerate a missing viewer: %v", err)
	}
	if svc.Bridge() != nil {
		t.Fatalf("expected no bridge without an address")
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.NodeID = "host.cancel"
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.Policy = BridgePolicyDisabled
	cfg.HeartbeatInterval = 20 * time.Millisecond
	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Serve(ctx)
	}()

	// Let at least one heartbeat tick pass before stopping.
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("serve did not stop on cancel")
	}
}

func TestServeFailsWhenRequiredBridgeExhausted(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.NodeID = "host.required"
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.Policy = BridgePolicyRequired
	cfg.Bridge.Address = "127.0.0.1:1"
	cfg.Bridge.MaxConnectAttempts = 1
	cfg.Bridge.Session = fastSession()
	cfg.HeartbeatInterval = time.Second
	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- svc.Serve(ctx)
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected bridge failure to stop a required host")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not surface the bridge failure")
	}
}

func TestServeBridgesToViewer(t *testing.T) {
	testlog.Start(t)

	simCfg := viewersim.ServiceConfig{
		ListenAddress:     "127.0.0.1:0",
		DocumentPath:      "docs/spec.pdf",
		PageCount:         4,
		DocumentLoadDelay: 10 * time.Millisecond,
		Session:           fastSession(),
	}
	sim, err := viewersim.New(simCfg)
	if err != nil {
		t.Fatalf("viewersim.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	simDone := make(chan error, 1)
	go func() {
		simDone <- sim.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-simDone
	})
	waitFor(t, "simulator listen address", func() bool { return sim.Addr() != "" })

	cfg := DefaultConfig()
	cfg.NodeID = "host.bridge"
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.Policy = BridgePolicyRequired
	cfg.Bridge.Address = sim.Addr()
	cfg.Bridge.Session = fastSession()
	cfg.HeartbeatInterval = 50 * time.Millisecond
	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	outcomes := make(chan command.Outcome, 1)
	svc.Coordinator().Enqueue(command.Command{
		Name:   "viewer.get-info",
		OnDone: func(out command.Outcome) { outcomes <- out },
	}, command.LevelTargetLoaded)

	hostDone := make(chan error, 1)
	go func() {
		hostDone <- svc.Serve(ctx)
	}()

	select {
	case out := <-outcomes:
		if !out.Success {
			t.Fatalf("expected success once the document loads, got %+v", out)
		}
	case err := <-hostDone:
		t.Fatalf("host stopped early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("queued command never completed")
	}

	waitFor(t, "bridge connected", func() bool { return svc.Bridge().Connected() })
	snap := svc.Coordinator().Snapshot()
	if !snap.Ready || !snap.TargetLoaded || snap.Completed != 1 {
		t.Fatalf("unexpected snapshot after bridge run: %+v", snap)
	}

	cancel()
	select {
	case <-hostDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("host did not stop on cancel")
	}
}
