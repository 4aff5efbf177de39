package command

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/viewctl/viewctl/internal/observability"
)

// start runs the execution pipeline for one command already marked
// in-flight by the caller. Order is fixed: missing transport is a
// configuration failure recorded before the guard is consulted; a guard
// veto records the fixed reason without touching the transport; otherwise
// the send is initiated on this goroutine and the reply is awaited off it.
// Every path ends in exactly one finish call.
func (c *Coordinator) start(ctx context.Context, cmd Command, transport Transport, p *Pending) {
	out := seedOutcome(cmd)

	if transport == nil {
		out.Error = ErrTransportNotConfigured.Error()
		c.finish(cmd, out, p)
		return
	}

	if cmd.Guard != nil {
		allowed, guardErr := evalGuard(cmd.Guard)
		if guardErr != nil {
			out.Error = guardErr.Error()
			c.finish(cmd, out, p)
			return
		}
		if !allowed {
			out.Error = ReasonConditionNotMet
			c.finish(cmd, out, p)
			return
		}
	}

	replies, err := transport.Send(ctx, cmd.Name, cmd.Payload)
	if err != nil {
		out.Error = err.Error()
		c.finish(cmd, out, p)
		return
	}
	go c.awaitReply(cmd, out, replies, p)
}

// awaitReply turns the single transport reply into the terminal outcome.
func (c *Coordinator) awaitReply(cmd Command, out Outcome, replies <-chan Reply, p *Pending) {
	reply, ok := <-replies
	switch {
	case !ok:
		out.Error = ErrTransportClosed.Error()
	case reply.Err != nil:
		out.Error = reply.Err.Error()
	default:
		out.Success = true
	}
	c.finish(cmd, out, p)
}

// finish stores the terminal outcome, clears the in-flight marker, and then
// notifies the handle and callback outside the lock. The outcome is visible
// to status queries before either notification fires.
func (c *Coordinator) finish(cmd Command, out Outcome, p *Pending) {
	startedAt := out.CompletedAt
	out.CompletedAt = time.Now()

	c.mu.Lock()
	if n := c.inflight[cmd.ID]; n <= 1 {
		delete(c.inflight, cmd.ID)
	} else {
		c.inflight[cmd.ID] = n - 1
	}
	c.results[cmd.ID] = out
	c.mu.Unlock()

	if out.Success {
		log.Info().
			Str("command_id", cmd.ID).
			Str("name", cmd.Name).
			Dur("duration", out.CompletedAt.Sub(startedAt)).
			Msg("command executed")
	} else {
		log.Warn().
			Str("command_id", cmd.ID).
			Str("name", cmd.Name).
			Str("error", out.Error).
			Msg("command failed")
	}
	observability.RecordCommandOutcome(outcomeLabel(out), out.CompletedAt.Sub(startedAt))

	if p != nil {
		p.resolve(out)
	}
	if cmd.OnDone != nil {
		invokeCallback(cmd, out)
	}
}

// evalGuard shields the sweep path from a panicking guard predicate; a
// panic is recorded as that command's failure, not raised to the sweeper.
func evalGuard(guard func() bool) (allowed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			allowed = false
			err = fmt.Errorf("command: guard panic: %v", r)
		}
	}()
	return guard(), nil
}

// invokeCallback fires the completion callback exactly once per outcome,
// absorbing callback panics so one bad continuation cannot take down the
// dispatch goroutine.
func invokeCallback(cmd Command, out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("command_id", cmd.ID).
				Interface("panic", r).
				Msg("completion callback panicked")
		}
	}()
	cmd.OnDone(out)
}

// outcomeLabel maps one outcome onto the metrics result label.
func outcomeLabel(out Outcome) string {
	switch {
	case out.Success:
		return "success"
	case out.Error == ReasonConditionNotMet:
		return "veto"
	case out.Error == ErrTransportNotConfigured.Error():
		return "config"
	default:
		return "failure"
	}
}
