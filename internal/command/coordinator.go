package command

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/viewctl/viewctl/internal/observability"
)

// Config carries the collaborators the coordinator is constructed with.
// A nil Transport is a legitimate state: every execution fails with
// ErrTransportNotConfigured until SetTransport wires one.
type Config struct {
	Transport Transport
}

// Coordinator owns the readiness state, the pending queue, and the outcome
// store. Callers hold command identities only; internal storage is never
// shared out.
type Coordinator struct {
	mu           sync.RWMutex
	transport    Transport
	ready        bool
	level        Level
	targetLoaded bool
	entries      []queueEntry
	inflight     map[string]int
	results      map[string]Outcome
}

// queueEntry pairs one command with the release level fixed at submission.
type queueEntry struct {
	cmd Command
	min Level
}

// QueueSnapshot summarizes queue, execution, and readiness counters.
type QueueSnapshot struct {
	Queued       int   `json:"queued"`
	Executing    int   `json:"executing"`
	Completed    int   `json:"completed"`
	Failed       int   `json:"failed"`
	Ready        bool  `json:"ready"`
	Level        Level `json:"level"`
	TargetLoaded bool  `json:"target_loaded"`
}

// New returns an empty coordinator with in-memory stores.
func New(cfg Config) *Coordinator {
	return &Coordinator{
		transport: cfg.Transport,
		inflight:  make(map[string]int),
		results:   make(map[string]Outcome),
	}
}

// SetTransport swaps the transport seam; the bridge calls this on each
// (re)connect and disconnect.
func (c *Coordinator) SetTransport(t Transport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transport = t
}

// SetReady stores the transport-ready flag and readiness level together and
// sweeps when the transport became ready.
func (c *Coordinator) SetReady(ready bool, level Level) {
	c.mu.Lock()
	c.ready = ready
	c.level = level
	c.mu.Unlock()

	log.Info().Bool("ready", ready).Str("level", level.String()).Msg("readiness updated")
	if ready {
		c.Sweep()
	}
}

// UpdateLevel stores a changed readiness level without sweeping. Release is
// driven only by SetReady, MarkTargetLoaded, and explicit Sweep calls.
func (c *Coordinator) UpdateLevel(level Level) {
	c.mu.Lock()
	if c.level == level {
		c.mu.Unlock()
		return
	}
	c.level = level
	c.mu.Unlock()

	log.Debug().Str("level", level.String()).Msg("readiness level updated")
}

// MarkTargetLoaded sets the target-loaded flag and sweeps unconditionally,
// whatever the ready flag says. This is how top-tier commands become
// eligible once the document finishes loading.
func (c *Coordinator) MarkTargetLoaded() {
	c.mu.Lock()
	c.targetLoaded = true
	c.mu.Unlock()

	log.Info().Msg("target loaded")
	c.Sweep()
}

// Enqueue appends one command tagged with its release level and returns the
// normalized identity. It never executes synchronously and never rejects;
// duplicate identities are accepted as submitted.
func (c *Coordinator) Enqueue(cmd Command, min Level) string {
	cmd = normalizeCommand(cmd)
	c.mu.Lock()
	c.entries = append(c.entries, queueEntry{cmd: cmd, min: min})
	depth := len(c.entries)
	c.mu.Unlock()

	log.Debug().
		Str("command_id", cmd.ID).
		Str("name", cmd.Name).
		Str("level", min.String()).
		Msg("command enqueued")
	observability.RecordCommandEnqueued(min.String())
	observability.SetQueueDepth(depth)
	return cmd.ID
}

// EnqueueImmediate submits at the lowest named tier.
func (c *Coordinator) EnqueueImmediate(cmd Command) string {
	return c.Enqueue(cmd, LevelImmediate)
}

// EnqueueTransportReady submits at the transport-ready tier.
func (c *Coordinator) EnqueueTransportReady(cmd Command) string {
	return c.Enqueue(cmd, LevelTransportReady)
}

// EnqueueTargetLoaded submits at the top tier gated on the loaded flag.
func (c *Coordinator) EnqueueTargetLoaded(cmd Command) string {
	return c.Enqueue(cmd, LevelTargetLoaded)
}

// ExecuteNow bypasses the queue and readiness gates entirely and runs the
// command through the same execution pipeline. The returned handle resolves
// with the terminal Outcome on every path; it never rejects.
func (c *Coordinator) ExecuteNow(ctx context.Context, cmd Command) *Pending {
	cmd = normalizeCommand(cmd)
	p := newPending()
	c.mu.Lock()
	c.inflight[cmd.ID]++
	transport := c.transport
	c.mu.Unlock()

	c.start(ctx, cmd, transport, p)
	return p
}

// Sweep releases every currently eligible entry in one atomic partition and
// dispatches the released entries in insertion order. Dispatch initiates
// each transport send before moving to the next entry but does not wait for
// completions, so commands fire in order and may complete out of order.
func (c *Coordinator) Sweep() {
	c.mu.Lock()
	var released []queueEntry
	if len(c.entries) > 0 {
		var kept []queueEntry
		for _, entry := range c.entries {
			if c.eligibleLocked(entry.min) {
				c.inflight[entry.cmd.ID]++
				released = append(released, entry)
				continue
			}
			kept = append(kept, entry)
		}
		c.entries = kept
	}
	depth := len(c.entries)
	transport := c.transport
	c.mu.Unlock()

	if len(released) == 0 {
		return
	}
	log.Debug().Int("released", len(released)).Int("queued", depth).Msg("queue swept")
	observability.RecordSweep(len(released))
	observability.SetQueueDepth(depth)
	for i := range released {
		c.start(context.Background(), released[i].cmd, transport, nil)
	}
}

// eligibleLocked applies the release rule: the entry's level must be
// reached, and top-tier entries additionally wait for the loaded flag.
func (c *Coordinator) eligibleLocked(min Level) bool {
	if min > c.level {
		return false
	}
	if min >= LevelTargetLoaded && !c.targetLoaded {
		return false
	}
	return true
}

// Status classifies one identity: terminal outcomes win over the in-flight
// marker, which wins over queue membership.
func (c *Coordinator) Status(id string) Status {
	key := strings.TrimSpace(id)
	c.mu.RLock()
	defer c.mu.RUnlock()

	if out, ok := c.results[key]; ok {
		if out.Success {
			return StatusCompleted
		}
		return StatusFailed
	}
	if c.inflight[key] > 0 {
		return StatusExecuting
	}
	for i := range c.entries {
		if c.entries[i].cmd.ID == key {
			return StatusPending
		}
	}
	return StatusNotFound
}

// OutcomeByCommandID returns the stored terminal record for one identity.
func (c *Coordinator) OutcomeByCommandID(id string) (Outcome, bool) {
	key := strings.TrimSpace(id)
	c.mu.RLock()
	defer c.mu.RUnlock()
	out, ok := c.results[key]
	return out, ok
}

// Clear drops all queued entries and recorded outcomes unconditionally.
// Dropped entries never executed, so no Outcome is produced for them and
// their callbacks do not fire. Commands already in flight are untouched and
// record their outcomes when they land.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	dropped := len(c.entries)
	outcomes := len(c.results)
	c.entries = nil
	c.results = make(map[string]Outcome)
	c.mu.Unlock()

	log.Info().Int("dropped", dropped).Int("outcomes", outcomes).Msg("queue cleared")
	observability.SetQueueDepth(0)
}

// Snapshot returns aggregate queue/readiness counters as a value copy.
func (c *Coordinator) Snapshot() QueueSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := QueueSnapshot{
		Queued:       len(c.entries),
		Ready:        c.ready,
		Level:        c.level,
		TargetLoaded: c.targetLoaded,
	}
	for _, n := range c.inflight {
		snap.Executing += n
	}
	for _, out := range c.results {
		if out.Success {
			snap.Completed++
		} else {
			snap.Failed++
		}
	}
	return snap
}
