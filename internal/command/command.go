package command

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTransportNotConfigured = errors.New("command: transport not configured")
	ErrTransportClosed        = errors.New("command: transport closed before reply")
)

// ReasonConditionNotMet is the outcome error recorded when a guard vetoes execution.
const ReasonConditionNotMet = "Condition not met"

// Command is one viewer operation submitted by the host application.
//
// ID is the caller-owned identity used for status queries; identity
// uniqueness is the caller's responsibility and the queue accepts
// duplicates. Guard, when present, is evaluated at execution time and a
// false result vetoes the transport call. OnDone, when present, fires
// exactly once with the terminal Outcome on every executed path.
type Command struct {
	ID      string
	Name    string
	Payload json.RawMessage
	Guard   func() bool
	OnDone  func(Outcome)
}

// Outcome is the immutable terminal record for one executed command.
type Outcome struct {
	CommandID   string    `json:"command_id"`
	Name        string    `json:"name"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Status classifies one command identity for the query surface.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusNotFound  Status = "not-found"
)

// normalizeCommand trims identity fields and assigns a fresh id when absent.
func normalizeCommand(cmd Command) Command {
	cmd.ID = strings.TrimSpace(cmd.ID)
	cmd.Name = strings.TrimSpace(cmd.Name)
	if cmd.ID == "" {
		cmd.ID = "cmd." + uuid.NewString()
	}
	return cmd
}

// seedOutcome builds the failure-first outcome record execution starts from.
func seedOutcome(cmd Command) Outcome {
	return Outcome{
		CommandID:   cmd.ID,
		Name:        cmd.Name,
		Success:     false,
		CompletedAt: time.Now(),
	}
}
