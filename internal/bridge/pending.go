package bridge

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viewctl/viewctl/internal/protocol/session"
)

// PendingRequest describes one request awaiting a viewer response.
type PendingRequest struct {
	CorrelationID string
	Action        string
	SentAt        time.Time
	DeadlineAt    time.Time
}

type pendingEntry struct {
	info PendingRequest
	ch   chan session.ResponseEnv
}

// pendingReplies stores outstanding requests by correlation id.
type pendingReplies struct {
	mu    sync.Mutex
	items map[string]pendingEntry
}

func newPendingReplies() *pendingReplies {
	return &pendingReplies{
		items: make(map[string]pendingEntry),
	}
}

func (p *pendingReplies) add(info PendingRequest) <-chan session.ResponseEnv {
	ch := make(chan session.ResponseEnv, 1)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[info.CorrelationID] = pendingEntry{info: info, ch: ch}
	return ch
}

func (p *pendingReplies) resolve(correlationID string, resp session.ResponseEnv) bool {
	key := strings.TrimSpace(correlationID)
	p.mu.Lock()
	entry, ok := p.items[key]
	delete(p.items, key)
	p.mu.Unlock()
	if !ok {
		return false
	}
	entry.ch <- resp
	return true
}

func (p *pendingReplies) drop(correlationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.items, strings.TrimSpace(correlationID))
}

// closeAll closes every outstanding reply channel and reports how many
// requests were abandoned.
func (p *pendingReplies) closeAll() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.items)
	for key, entry := range p.items {
		close(entry.ch)
		delete(p.items, key)
	}
	return n
}

func (p *pendingReplies) list() []PendingRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PendingRequest, 0, len(p.items))
	for _, entry := range p.items {
		out = append(out, entry.info)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CorrelationID < out[j].CorrelationID
	})
	return out
}
