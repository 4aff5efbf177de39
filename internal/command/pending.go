package command

import (
	"context"
	"sync"
)

// Pending is the result handle for one direct execution. It resolves with a
// terminal Outcome on every path, including vetoes and transport failures;
// Wait returns a non-nil error only when the caller's context ends first.
type Pending struct {
	once sync.Once
	done chan struct{}
	out  Outcome
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve(out Outcome) {
	p.once.Do(func() {
		p.out = out
		close(p.done)
	})
}

// Done is closed once the outcome is available.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks for the terminal outcome or the caller's context.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		return p.out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Outcome returns the terminal record without blocking.
func (p *Pending) Outcome() (Outcome, bool) {
	select {
	case <-p.done:
		return p.out, true
	default:
		return Outcome{}, false
	}
}
