package viewersim

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/viewctl/viewctl/internal/testutil/testlog"
)

func noopAction(_ *DocumentState, _ json.RawMessage) (json.RawMessage, error) {
	return nil, nil
}

func TestRegisterResolveAndDuplicate(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	spec := ActionSpec{Name: "viewer.rotate", Description: "Rotate the page."}

	if err := r.Register(spec, noopAction); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(spec, noopAction); !errors.Is(err, ErrActionExists) {
		t.Fatalf("expected ErrActionExists, got %v", err)
	}
	if _, ok := r.Resolve("viewer.rotate"); !ok {
		t.Fatalf("resolve failed for registered action")
	}
}

func TestRegisterRejectsInvalidNames(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	for _, name := range []string{"", ".leading", "trailing.", "double..sep", "Upper.Case"} {
		err := r.Register(ActionSpec{Name: name, Description: "bad"}, noopAction)
		if !errors.Is(err, ErrInvalidActionName) {
			t.Fatalf("name %q: expected ErrInvalidActionName, got %v", name, err)
		}
	}
	if err := r.Register(ActionSpec{Name: "viewer.ok"}, nil); !errors.Is(err, ErrActionNil) {
		t.Fatalf("expected ErrActionNil, got %v", err)
	}
}

func TestResolveMissingAction(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	if _, ok := r.Resolve("viewer.missing"); ok {
		t.Fatalf("expected missing action to return ok=false")
	}
}

func TestListSortedByName(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	_ = r.Register(ActionSpec{Name: "viewer.zoom"}, noopAction)
	_ = r.Register(ActionSpec{Name: "viewer.ping"}, noopAction)
	_ = r.Register(ActionSpec{Name: "viewer.search"}, noopAction)

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 specs, got %d", len(list))
	}
	if list[0].Name != "viewer.ping" || list[1].Name != "viewer.search" || list[2].Name != "viewer.zoom" {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestBuiltinRegistryCoversViewerActions(t *testing.T) {
	testlog.Start(t)
	r := newBuiltinRegistry()
	for _, name := range []string{"viewer.ping", "viewer.goto-page", "viewer.zoom", "viewer.search", "viewer.get-info"} {
		if _, ok := r.Resolve(name); !ok {
			t.Fatalf("builtin action %q missing", name)
		}
	}
}
