package command

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/viewctl/viewctl/internal/testutil/testlog"
)

func TestGuardVetoSkipsTransport(t *testing.T) {
	testlog.Start(t)

	transport := newManualTransport()
	c := New(Config{Transport: transport})

	done, ch := doneChan()
	id := c.Enqueue(Command{
		ID:     "cmd.vetoed",
		Name:   "viewer.zoom",
		Guard:  func() bool { return false },
		OnDone: done,
	}, LevelImmediate)

	c.SetReady(true, LevelImmediate)
	out := waitOutcome(t, ch)
	if out.Success {
		t.Fatalf("expected vetoed outcome, got success")
	}
	if out.Error != ReasonConditionNotMet {
		t.Fatalf("expected %q, got %q", ReasonConditionNotMet, out.Error)
	}
	if got := len(transport.names()); got != 0 {
		t.Fatalf("guard veto must not touch transport, got %d sends", got)
	}
	if status := c.Status(id); status != StatusFailed {
		t.Fatalf("expected failed status, got %q", status)
	}
}

func TestExecuteNowResolvesGuardVeto(t *testing.T) {
	testlog.Start(t)

	transport := newManualTransport()
	c := New(Config{Transport: transport})

	p := c.ExecuteNow(context.Background(), Command{
		ID:    "cmd.now-veto",
		Name:  "viewer.goto-page",
		Guard: func() bool { return false },
	})

	out, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if out.Success {
		t.Fatalf("expected veto outcome, got success")
	}
	if out.Error != ReasonConditionNotMet {
		t.Fatalf("expected %q, got %q", ReasonConditionNotMet, out.Error)
	}
	if got := len(transport.names()); got != 0 {
		t.Fatalf("expected zero sends, got %d", got)
	}
}

func TestMissingTransportDistinctFromVeto(t *testing.T) {
	testlog.Start(t)

	c := New(Config{})

	var guardCalled atomic.Bool
	p := c.ExecuteNow(context.Background(), Command{
		ID:   "cmd.noport",
		Name: "viewer.ping",
		Guard: func() bool {
			guardCalled.Store(true)
			return true
		},
	})

	out, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if out.Success {
		t.Fatalf("expected failure without transport")
	}
	if out.Error != ErrTransportNotConfigured.Error() {
		t.Fatalf("expected config error, got %q", out.Error)
	}
	if out.Error == ReasonConditionNotMet {
		t.Fatalf("config error must stay distinguishable from guard veto")
	}
	if guardCalled.Load() {
		t.Fatalf("guard must not run when transport is missing")
	}
}

func TestQueuedCommandsFailWithoutTransport(t *testing.T) {
	testlog.Start(t)

	c := New(Config{})

	done, ch := doneChan()
	id := c.Enqueue(Command{ID: "cmd.q-noport", Name: "viewer.search", OnDone: done}, LevelImmediate)
	c.SetReady(true, LevelImmediate)

	out := waitOutcome(t, ch)
	if out.Success || out.Error != ErrTransportNotConfigured.Error() {
		t.Fatalf("expected config failure, got %+v", out)
	}
	if status := c.Status(id); status != StatusFailed {
		t.Fatalf("expected failed status, got %q", status)
	}
}

func TestTransportErrorStringified(t *testing.T) {
	testlog.Start(t)

	transport := newAutoTransport()
	transport.autoErr = errors.New("viewer offline")
	c := New(Config{Transport: transport})

	done, ch := doneChan()
	c.Enqueue(Command{ID: "cmd.offline", Name: "viewer.ping", OnDone: done}, LevelImmediate)
	c.SetReady(true, LevelImmediate)

	out := waitOutcome(t, ch)
	if out.Success {
		t.Fatalf("expected failure, got success")
	}
	if !strings.Contains(out.Error, "viewer offline") {
		t.Fatalf("expected stringified transport error, got %q", out.Error)
	}
}

func TestSendInitiationErrorRecorded(t *testing.T) {
	testlog.Start(t)

	transport := newManualTransport()
	transport.initErr = errors.New("session closed")
	c := New(Config{Transport: transport})

	p := c.ExecuteNow(context.Background(), Command{ID: "cmd.init-err", Name: "viewer.zoom"})
	out, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if out.Success || !strings.Contains(out.Error, "session closed") {
		t.Fatalf("expected initiation error outcome, got %+v", out)
	}
}

func TestReplyChannelClosedWithoutReply(t *testing.T) {
	testlog.Start(t)

	transport := newManualTransport()
	c := New(Config{Transport: transport})

	done, ch := doneChan()
	c.Enqueue(Command{ID: "cmd.dropped", Name: "viewer.search", OnDone: done}, LevelImmediate)
	c.SetReady(true, LevelImmediate)

	transport.mu.Lock()
	close(transport.waiting["viewer.search"])
	transport.mu.Unlock()

	out := waitOutcome(t, ch)
	if out.Success || out.Error != ErrTransportClosed.Error() {
		t.Fatalf("expected closed-transport failure, got %+v", out)
	}
}

func TestExecuteNowBypassesQueueAndReadiness(t *testing.T) {
	testlog.Start(t)

	transport := newAutoTransport()
	c := New(Config{Transport: transport})

	p := c.ExecuteNow(context.Background(), Command{ID: "cmd.now", Name: "viewer.get-info"})
	out, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if !out.Success {
		t.Fatalf("expected success regardless of readiness, got %q", out.Error)
	}
	if got := len(transport.names()); got != 1 {
		t.Fatalf("expected one dispatch, got %d", got)
	}
	if snap := c.Snapshot(); snap.Queued != 0 {
		t.Fatalf("executeNow must not enqueue, got %d queued", snap.Queued)
	}
}

func TestCallbackFiresExactlyOnceOnBothPaths(t *testing.T) {
	testlog.Start(t)

	transport := newAutoTransport()
	c := New(Config{Transport: transport})

	var successCalls, failureCalls atomic.Int32
	okCh := make(chan Outcome, 1)
	failCh := make(chan Outcome, 1)

	c.Enqueue(Command{ID: "cmd.ok", Name: "viewer.ping", OnDone: func(out Outcome) {
		successCalls.Add(1)
		okCh <- out
	}}, LevelImmediate)
	c.Enqueue(Command{ID: "cmd.fail", Name: "viewer.zoom", Guard: func() bool { return false }, OnDone: func(out Outcome) {
		failureCalls.Add(1)
		failCh <- out
	}}, LevelImmediate)

	c.SetReady(true, LevelImmediate)
	okOut := waitOutcome(t, okCh)
	failOut := waitOutcome(t, failCh)

	if !okOut.Success || failOut.Success {
		t.Fatalf("unexpected outcomes: ok=%+v fail=%+v", okOut, failOut)
	}
	time.Sleep(20 * time.Millisecond)
	if successCalls.Load() != 1 || failureCalls.Load() != 1 {
		t.Fatalf("expected exactly one callback each, got %d/%d", successCalls.Load(), failureCalls.Load())
	}
}

func TestGuardPanicDoesNotBlockSiblings(t *testing.T) {
	testlog.Start(t)

	transport := newAutoTransport()
	c := New(Config{Transport: transport})

	donePanic, chPanic := doneChan()
	doneNext, chNext := doneChan()
	c.Enqueue(Command{
		ID:     "cmd.panic",
		Name:   "viewer.zoom",
		Guard:  func() bool { panic("bad precondition") },
		OnDone: donePanic,
	}, LevelImmediate)
	c.Enqueue(Command{ID: "cmd.after", Name: "viewer.ping", OnDone: doneNext}, LevelImmediate)

	c.SetReady(true, LevelImmediate)

	outPanic := waitOutcome(t, chPanic)
	if outPanic.Success || !strings.Contains(outPanic.Error, "guard panic") {
		t.Fatalf("expected guard panic recorded as failure, got %+v", outPanic)
	}
	outNext := waitOutcome(t, chNext)
	if !outNext.Success {
		t.Fatalf("sibling must still execute, got %q", outNext.Error)
	}
}

func TestCallbackPanicDoesNotPoisonDispatch(t *testing.T) {
	testlog.Start(t)

	transport := newAutoTransport()
	c := New(Config{Transport: transport})

	doneNext, chNext := doneChan()
	c.Enqueue(Command{
		ID:     "cmd.bad-callback",
		Name:   "viewer.ping",
		OnDone: func(Outcome) { panic("observer blew up") },
	}, LevelImmediate)
	c.Enqueue(Command{ID: "cmd.healthy", Name: "viewer.zoom", OnDone: doneNext}, LevelImmediate)

	c.SetReady(true, LevelImmediate)
	outNext := waitOutcome(t, chNext)
	if !outNext.Success {
		t.Fatalf("expected healthy command to complete, got %q", outNext.Error)
	}
	if status := c.Status("cmd.bad-callback"); status != StatusCompleted {
		t.Fatalf("expected completion despite callback panic, got %q", status)
	}
}

func TestOutcomeCarriesIdentityAndTimestamp(t *testing.T) {
	testlog.Start(t)

	transport := newAutoTransport()
	c := New(Config{Transport: transport})

	before := time.Now()
	p := c.ExecuteNow(context.Background(), Command{ID: "cmd.meta", Name: "viewer.get-info"})
	out, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if out.CommandID != "cmd.meta" || out.Name != "viewer.get-info" {
		t.Fatalf("outcome identity mismatch: %+v", out)
	}
	if out.CompletedAt.Before(before) {
		t.Fatalf("completion timestamp predates execution: %v < %v", out.CompletedAt, before)
	}
}
