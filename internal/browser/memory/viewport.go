package memory

import (
	"sync"

	"github.com/basecamp/storefront/internal/nav"
)

// Viewport is a scrollable region. Its offset is clamped to the content
// the way a DOM element clamps scrollTop.
type Viewport struct {
	mu            sync.Mutex
	scrollTop     float64
	contentHeight float64
	height        float64
}

var _ nav.ScrollElement = (*Viewport)(nil)

// NewViewport creates a viewport of the given visible height.
func NewViewport(height float64) *Viewport {
	return &Viewport{height: height}
}

func (v *Viewport) ScrollTop() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scrollTop
}

func (v *Viewport) SetScrollTop(y float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scrollTop = v.clamp(y)
}

// ScrollHeight is the full content height, never less than the visible height.
func (v *Viewport) ScrollHeight() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return max(v.contentHeight, v.height)
}

func (v *Viewport) OffsetHeight() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.height
}

// ScrollBy moves the offset by dy, clamped.
func (v *Viewport) ScrollBy(dy float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scrollTop = v.clamp(v.scrollTop + dy)
}

// SetContentHeight sets the rendered content height and re-clamps.
func (v *Viewport) SetContentHeight(h float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.contentHeight = h
	v.scrollTop = v.clamp(v.scrollTop)
}

// SetHeight sets the visible height and re-clamps.
func (v *Viewport) SetHeight(h float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.height = h
	v.scrollTop = v.clamp(v.scrollTop)
}

func (v *Viewport) clamp(y float64) float64 {
	limit := max(v.contentHeight-v.height, 0)
	return min(max(y, 0), limit)
}
