package viewersim

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrActionExists      = errors.New("viewersim: action already registered")
	ErrActionNil         = errors.New("viewersim: action func is nil")
	ErrInvalidActionName = errors.New("viewersim: invalid action name")
)

// ActionSpec describes one supported viewer action.
type ActionSpec struct {
	Name        string
	Description string
}

// ActionFunc executes one action against the shared document state.
type ActionFunc func(state *DocumentState, payload json.RawMessage) (json.RawMessage, error)

type registeredAction struct {
	spec ActionSpec
	fn   ActionFunc
}

// Registry stores actions by stable name.
type Registry struct {
	mu    sync.RWMutex
	items map[string]registeredAction
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]registeredAction)}
}

// Register adds an action to the registry.
func (r *Registry) Register(spec ActionSpec, fn ActionFunc) error {
	if fn == nil {
		return ErrActionNil
	}
	name := strings.TrimSpace(spec.Name)
	if !isValidActionName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidActionName, spec.Name)
	}
	spec.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[name]; ok {
		return fmt.Errorf("%w: %q", ErrActionExists, name)
	}
	r.items[name] = registeredAction{spec: spec, fn: fn}
	return nil
}

// Resolve returns an action by name.
func (r *Registry) Resolve(name string) (ActionFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[strings.TrimSpace(name)]
	if !ok {
		return nil, false
	}
	return item.fn, true
}

// List returns deterministic spec ordering by name.
func (r *Registry) List() []ActionSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ActionSpec, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item.spec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

func isValidActionName(name string) bool {
	if name == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if i == 0 || i == len(name)-1 {
			if isSep {
				return false
			}
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
