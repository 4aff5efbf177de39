package viewersim

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/viewctl/viewctl/internal/testutil/testlog"
)

func TestGoToPageClampsToDocument(t *testing.T) {
	testlog.Start(t)
	state := NewDocumentState()

	if _, err := handleGoToPage(state, json.RawMessage(`{"page":3}`)); !errors.Is(err, ErrDocumentNotLoaded) {
		t.Fatalf("expected ErrDocumentNotLoaded, got %v", err)
	}

	state.Load("manual.pdf", 10)
	if _, err := handleGoToPage(state, json.RawMessage(`{"page":11}`)); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}
	if _, err := handleGoToPage(state, json.RawMessage(`{"page":0}`)); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange for page 0, got %v", err)
	}

	result, err := handleGoToPage(state, json.RawMessage(`{"page":7}`))
	if err != nil {
		t.Fatalf("goto-page failed: %v", err)
	}
	var info DocumentInfo
	if err := json.Unmarshal(result, &info); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if info.Page != 7 {
		t.Fatalf("expected page 7, got %d", info.Page)
	}
}

func TestZoomBounds(t *testing.T) {
	testlog.Start(t)
	state := NewDocumentState()

	if _, err := handleZoom(state, json.RawMessage(`{"scale":0.01}`)); !errors.Is(err, ErrZoomOutOfRange) {
		t.Fatalf("expected ErrZoomOutOfRange, got %v", err)
	}
	if _, err := handleZoom(state, json.RawMessage(`{"scale":1.5}`)); err != nil {
		t.Fatalf("zoom failed: %v", err)
	}
	if got := state.Info().Zoom; got != 1.5 {
		t.Fatalf("expected zoom 1.5, got %v", got)
	}
}

func TestSearchRequiresQueryAndDocument(t *testing.T) {
	testlog.Start(t)
	state := NewDocumentState()

	if _, err := handleSearch(state, json.RawMessage(`{"query":"  "}`)); !errors.Is(err, ErrQueryRequired) {
		t.Fatalf("expected ErrQueryRequired, got %v", err)
	}
	if _, err := handleSearch(state, json.RawMessage(`{"query":"invoice"}`)); !errors.Is(err, ErrDocumentNotLoaded) {
		t.Fatalf("expected ErrDocumentNotLoaded, got %v", err)
	}

	state.Load("manual.pdf", 10)
	result, err := handleSearch(state, json.RawMessage(`{"query":"invoice"}`))
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	var out struct {
		Query   string `json:"query"`
		Matches int    `json:"matches"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if out.Query != "invoice" || out.Matches < 0 {
		t.Fatalf("unexpected search result: %+v", out)
	}
}

func TestLoadResetsPageAndZoom(t *testing.T) {
	testlog.Start(t)
	state := NewDocumentState()
	state.Load("a.pdf", 5)
	_ = state.GoToPage(4)
	_ = state.SetZoom(2.0)

	state.Load("b.pdf", 8)
	info := state.Info()
	if info.Path != "b.pdf" || info.Page != 1 || info.Zoom != 1.0 || info.Pages != 8 {
		t.Fatalf("load must reset state, got %+v", info)
	}
}
