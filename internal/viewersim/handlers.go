package viewersim

import (
	"encoding/json"
	"fmt"
	"strings"
)

type gotoPagePayload struct {
	Page int `json:"page"`
}

type zoomPayload struct {
	Scale float64 `json:"scale"`
}

type searchPayload struct {
	Query string `json:"query"`
}

// newBuiltinRegistry wires the action set every simulated viewer
// supports.
func newBuiltinRegistry() *Registry {
	r := NewRegistry()
	mustRegister(r, ActionSpec{Name: "viewer.ping", Description: "Liveness probe."}, handlePing)
	mustRegister(r, ActionSpec{Name: "viewer.goto-page", Description: "Jump to a page in the loaded document."}, handleGoToPage)
	mustRegister(r, ActionSpec{Name: "viewer.zoom", Description: "Set the zoom scale."}, handleZoom)
	mustRegister(r, ActionSpec{Name: "viewer.search", Description: "Search the loaded document."}, handleSearch)
	mustRegister(r, ActionSpec{Name: "viewer.get-info", Description: "Report document state."}, handleGetInfo)
	return r
}

func mustRegister(r *Registry, spec ActionSpec, fn ActionFunc) {
	if err := r.Register(spec, fn); err != nil {
		panic(fmt.Sprintf("viewersim: builtin registration: %v", err))
	}
}

func handlePing(_ *DocumentState, _ json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`{"pong":true}`), nil
}

func handleGoToPage(state *DocumentState, payload json.RawMessage) (json.RawMessage, error) {
	var req gotoPagePayload
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, err
	}
	if err := state.GoToPage(req.Page); err != nil {
		return nil, err
	}
	return json.Marshal(state.Info())
}

func handleZoom(state *DocumentState, payload json.RawMessage) (json.RawMessage, error) {
	var req zoomPayload
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, err
	}
	if err := state.SetZoom(req.Scale); err != nil {
		return nil, err
	}
	return json.Marshal(state.Info())
}

func handleSearch(state *DocumentState, payload json.RawMessage) (json.RawMessage, error) {
	var req searchPayload
	if err := unmarshalPayload(payload, &req); err != nil {
		return nil, err
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrQueryRequired
	}
	info := state.Info()
	if !info.Loaded {
		return nil, ErrDocumentNotLoaded
	}
	// Deterministic stand-in for a real text index.
	matches := len(query) % (info.Pages + 1)
	return json.Marshal(map[string]any{
		"query":   query,
		"matches": matches,
	})
}

func handleGetInfo(state *DocumentState, _ json.RawMessage) (json.RawMessage, error) {
	return json.Marshal(state.Info())
}

func unmarshalPayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("viewersim: payload required")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("viewersim: decode payload: %w", err)
	}
	return nil
}
