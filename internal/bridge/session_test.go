package bridge

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/viewctl/viewctl/internal/command"
	"github.com/viewctl/viewctl/internal/protocol/session"
	"github.com/viewctl/viewctl/internal/testutil/testlog"
)

func nowMS() uint64 {
	return uint64(time.Now().UnixMilli())
}

func startSession(t *testing.T, cfg session.Config) (*Session, net.Conn) {
	t.Helper()
	host, viewer := net.Pipe()
	sess := newSession(host, bufio.NewReader(host), cfg)
	go func() { _ = sess.readLoop() }()
	t.Cleanup(func() {
		_ = sess.Close()
		_ = viewer.Close()
	})
	return sess, viewer
}

func waitReply(t *testing.T, replies <-chan command.Reply) command.Reply {
	t.Helper()
	select {
	case reply := <-replies:
		return reply
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for reply")
	}
	return command.Reply{}
}

func TestSessionMatchesResponseByCorrelation(t *testing.T) {
	testlog.Start(t)

	sess, viewer := startSession(t, session.DefaultConfig())
	reader := bufio.NewReader(viewer)
	go func() {
		req, err := session.ReadRequest(reader)
		if err != nil {
			return
		}
		_ = session.WriteResponse(viewer, session.ResponseEnv{
			CorrelationID: req.CorrelationID,
			Status:        session.AckStatusAccepted,
			Message:       "ok",
			TimestampMS:   nowMS(),
		})
	}()

	replies, err := sess.Send(context.Background(), "viewer.ping", nil)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if reply := waitReply(t, replies); reply.Err != nil {
		t.Fatalf("expected accepted reply, got %v", reply.Err)
	}
}

func TestSessionConcurrentRepliesResolveByCorrelation(t *testing.T) {
	testlog.Start(t)

	sess, viewer := startSession(t, session.DefaultConfig())
	reader := bufio.NewReader(viewer)
	go func() {
		first, err := session.ReadRequest(reader)
		if err != nil {
			return
		}
		second, err := session.ReadRequest(reader)
		if err != nil {
			return
		}
		// Answer in reverse order: reject the second, accept the first.
		_ = session.WriteResponse(viewer, session.ResponseEnv{
			CorrelationID: second.CorrelationID,
			Status:        session.AckStatusRejected,
			Code:          7,
			Message:       "unknown action",
			TimestampMS:   nowMS(),
		})
		_ = session.WriteResponse(viewer, session.ResponseEnv{
			CorrelationID: first.CorrelationID,
			Status:        session.AckStatusAccepted,
			Message:       "ok",
			TimestampMS:   nowMS(),
		})
	}()

	repliesA, err := sess.Send(context.Background(), "viewer.zoom", nil)
	if err != nil {
		t.Fatalf("send a failed: %v", err)
	}
	repliesB, err := sess.Send(context.Background(), "viewer.bogus", nil)
	if err != nil {
		t.Fatalf("send b failed: %v", err)
	}

	replyB := waitReply(t, repliesB)
	if !errors.Is(replyB.Err, ErrCommandRejected) {
		t.Fatalf("expected rejection for second request, got %v", replyB.Err)
	}
	if !strings.Contains(replyB.Err.Error(), "unknown action") {
		t.Fatalf("rejection must carry viewer message, got %q", replyB.Err)
	}
	replyA := waitReply(t, repliesA)
	if replyA.Err != nil {
		t.Fatalf("expected first request accepted, got %v", replyA.Err)
	}
}

func TestSessionCloseFailsOutstandingRequests(t *testing.T) {
	testlog.Start(t)

	sess, viewer := startSession(t, session.DefaultConfig())
	reader := bufio.NewReader(viewer)
	consumed := make(chan struct{})
	go func() {
		_, _ = session.ReadRequest(reader)
		close(consumed)
	}()

	replies, err := sess.Send(context.Background(), "viewer.search", nil)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	<-consumed

	_ = sess.Close()
	reply := waitReply(t, replies)
	if !errors.Is(reply.Err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", reply.Err)
	}
	if _, err := sess.Send(context.Background(), "viewer.ping", nil); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected send on closed session to fail, got %v", err)
	}
}

func TestSessionResponseTimeout(t *testing.T) {
	testlog.Start(t)

	cfg := session.DefaultConfig()
	cfg.AckTimeout = 100 * time.Millisecond
	sess, viewer := startSession(t, cfg)
	reader := bufio.NewReader(viewer)
	go func() {
		_, _ = session.ReadRequest(reader)
	}()

	replies, err := sess.Send(context.Background(), "viewer.slow", nil)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	reply := waitReply(t, replies)
	if !errors.Is(reply.Err, ErrResponseTimeout) {
		t.Fatalf("expected ErrResponseTimeout, got %v", reply.Err)
	}
	if got := sess.Outstanding(); len(got) != 0 {
		t.Fatalf("timed-out request must be dropped, got %v", got)
	}
}

func TestSessionForwardsNotices(t *testing.T) {
	testlog.Start(t)

	host, viewer := net.Pipe()
	sess := newSession(host, bufio.NewReader(host), session.DefaultConfig())
	notices := make(chan session.NoticeEnv, 1)
	sess.onNotice = func(n session.NoticeEnv) { notices <- n }
	go func() { _ = sess.readLoop() }()
	t.Cleanup(func() {
		_ = sess.Close()
		_ = viewer.Close()
	})

	if err := session.WriteNotice(viewer, session.NoticeEnv{
		Kind:        session.NoticeLevelUpdate,
		Level:       5,
		TimestampMS: nowMS(),
	}); err != nil {
		t.Fatalf("write notice: %v", err)
	}

	select {
	case n := <-notices:
		if n.Kind != session.NoticeLevelUpdate || n.Level != 5 {
			t.Fatalf("unexpected notice: %+v", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for notice")
	}
}
