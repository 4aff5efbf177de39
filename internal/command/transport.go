package command

import (
	"context"
	"encoding/json"
)

// Reply is the terminal result of one transport send. A nil Err means the
// viewer acknowledged the command; any other value is stringified into the
// stored Outcome.
type Reply struct {
	Err error
}

// Transport carries one command to the viewer. Send initiates the request
// synchronously on the caller's goroutine and returns a channel that yields
// exactly one Reply when the viewer answers; initiation failures are
// returned directly. Initiation order therefore matches call order even
// though completions may land out of order.
type Transport interface {
	Send(ctx context.Context, name string, payload json.RawMessage) (<-chan Reply, error)
}
