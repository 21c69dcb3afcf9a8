// Package memory implements the browser contracts in process: a history
// stack with back/forward, a frame queue advanced by Tick, and a viewport
// that scrolls like a DOM element.
package memory

import (
	"sync"

	"github.com/basecamp/storefront/internal/nav"
)

// Entry is one position in the history stack.
type Entry struct {
	URL      string      `json:"url"`
	ID       nav.StateID `json:"id,omitempty"`
	HasState bool        `json:"has_state,omitempty"`
}

// Browser is an in-memory browser. It is safe for concurrent use;
// listeners and frame callbacks run without its lock held.
type Browser struct {
	mu        sync.Mutex
	entries   []Entry
	index     int
	listeners map[int]func(nav.PopStateEvent)
	nextSub   int
	assigned  []string
	onAssign  func(url string)

	frames   map[nav.FrameID]func()
	order    []nav.FrameID
	nextID   nav.FrameID
	viewport *Viewport
}

// New creates a browser whose only entry is startURL, carrying no state.
func New(startURL string) *Browser {
	return &Browser{
		entries:   []Entry{{URL: startURL}},
		listeners: make(map[int]func(nav.PopStateEvent)),
		frames:    make(map[nav.FrameID]func()),
		viewport:  NewViewport(0),
	}
}

var (
	_ nav.BrowserHistory = (*Browser)(nil)
	_ nav.Location       = (*Browser)(nil)
	_ nav.FrameScheduler = (*Browser)(nil)
)

// PushState drops forward entries and appends a new one.
func (b *Browser) PushState(id nav.StateID, url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries[:b.index+1], Entry{URL: url, ID: id, HasState: true})
	b.index = len(b.entries) - 1
}

// ReplaceState overwrites the live entry.
func (b *Browser) ReplaceState(id nav.StateID, url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.index] = Entry{URL: url, ID: id, HasState: true}
}

// StateID returns the live entry's identifier.
func (b *Browser) StateID() (nav.StateID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entries[b.index]
	return e.ID, e.HasState
}

// Location returns the live entry's URL.
func (b *Browser) Location() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries[b.index].URL
}

// OnPopState subscribes fn to back/forward moves.
func (b *Browser) OnPopState(fn func(nav.PopStateEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSub
	b.nextSub++
	b.listeners[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// Back moves one entry back. It reports false at the start of history.
func (b *Browser) Back() bool { return b.Go(-1) }

// Forward moves one entry forward. It reports false at the end of history.
func (b *Browser) Forward() bool { return b.Go(1) }

// Go moves delta entries and fires popstate. Out-of-range moves are ignored.
func (b *Browser) Go(delta int) bool {
	b.mu.Lock()
	target := b.index + delta
	if delta == 0 || target < 0 || target >= len(b.entries) {
		b.mu.Unlock()
		return false
	}
	b.index = target
	e := b.entries[target]
	listeners := make([]func(nav.PopStateEvent), 0, len(b.listeners))
	for i := 0; i < b.nextSub; i++ {
		if fn, ok := b.listeners[i]; ok {
			listeners = append(listeners, fn)
		}
	}
	b.mu.Unlock()

	ev := nav.PopStateEvent{ID: e.ID, HasState: e.HasState}
	for _, fn := range listeners {
		fn(ev)
	}
	return true
}

// CanGoBack reports whether Back would move.
func (b *Browser) CanGoBack() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index > 0
}

// CanGoForward reports whether Forward would move.
func (b *Browser) CanGoForward() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index < len(b.entries)-1
}

// Entries returns a copy of the history stack and the live index.
func (b *Browser) Entries() ([]Entry, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out, b.index
}

// Assign records a full navigation away from the app.
func (b *Browser) Assign(url string) {
	b.mu.Lock()
	b.assigned = append(b.assigned, url)
	hook := b.onAssign
	b.mu.Unlock()
	if hook != nil {
		hook(url)
	}
}

// OnAssign sets the callback run after every Assign.
func (b *Browser) OnAssign(fn func(url string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onAssign = fn
}

// Assigned returns every URL passed to Assign, oldest first.
func (b *Browser) Assigned() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.assigned...)
}

// RequestFrame queues fn for the next Tick.
func (b *Browser) RequestFrame(fn func()) nav.FrameID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.frames[b.nextID] = fn
	b.order = append(b.order, b.nextID)
	return b.nextID
}

// CancelFrame removes a queued callback.
func (b *Browser) CancelFrame(id nav.FrameID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.frames, id)
}

// Tick runs the callbacks queued before it was called and returns how
// many ran. Callbacks queued during the tick wait for the next one.
func (b *Browser) Tick() int {
	b.mu.Lock()
	order := b.order
	b.order = nil
	fns := make([]func(), 0, len(order))
	for _, id := range order {
		if fn, ok := b.frames[id]; ok {
			fns = append(fns, fn)
			delete(b.frames, id)
		}
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// PendingFrames returns the number of queued callbacks.
func (b *Browser) PendingFrames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Viewport returns the browser's scrollable element.
func (b *Browser) Viewport() *Viewport {
	return b.viewport
}

// Scrollable returns an accessor for the viewport.
func (b *Browser) Scrollable() nav.ScrollableFunc {
	return func() nav.ScrollElement { return b.viewport }
}
