package viewersim

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrDocumentNotLoaded = errors.New("viewersim: document not loaded")
	ErrPageOutOfRange    = errors.New("viewersim: page out of range")
	ErrZoomOutOfRange    = errors.New("viewersim: zoom out of range")
	ErrQueryRequired     = errors.New("viewersim: query required")
)

// DocumentInfo is the externally visible document state.
type DocumentInfo struct {
	Path   string  `json:"path"`
	Pages  int     `json:"pages"`
	Page   int     `json:"page"`
	Zoom   float64 `json:"zoom"`
	Loaded bool    `json:"loaded"`
}

// DocumentState tracks the simulated document across sessions.
type DocumentState struct {
	mu   sync.RWMutex
	info DocumentInfo
}

func NewDocumentState() *DocumentState {
	return &DocumentState{
		info: DocumentInfo{Zoom: 1.0},
	}
}

// Load installs a document and resets page and zoom.
func (s *DocumentState) Load(path string, pages int) {
	if pages < 1 {
		pages = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = DocumentInfo{
		Path:   path,
		Pages:  pages,
		Page:   1,
		Zoom:   1.0,
		Loaded: true,
	}
}

func (s *DocumentState) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.Loaded
}

func (s *DocumentState) Info() DocumentInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

func (s *DocumentState) GoToPage(page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.info.Loaded {
		return ErrDocumentNotLoaded
	}
	if page < 1 || page > s.info.Pages {
		return fmt.Errorf("%w: page=%d pages=%d", ErrPageOutOfRange, page, s.info.Pages)
	}
	s.info.Page = page
	return nil
}

func (s *DocumentState) SetZoom(scale float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scale < 0.1 || scale > 10 {
		return fmt.Errorf("%w: scale=%v", ErrZoomOutOfRange, scale)
	}
	s.info.Zoom = scale
	return nil
}
