// Package nav wraps the browser history stack. It owns the identifiers
// that correlate history entries with stored application state, snapshots
// scroll offsets before transitions, and restores them on back/forward.
package nav

// StateID identifies a browser history entry. IDs are random UUIDs so they
// stay unique across full page reloads.
type StateID string

// PopStateEvent is delivered when the user moves through history.
// HasState is false when the entry carries no identifier.
type PopStateEvent struct {
	ID       StateID
	HasState bool
}

// BrowserHistory is the platform history stack.
type BrowserHistory interface {
	PushState(id StateID, url string)
	ReplaceState(id StateID, url string)
	// StateID returns the identifier stored on the live entry.
	StateID() (StateID, bool)
	// Location returns the URL of the live entry.
	Location() string
	// OnPopState registers fn for back/forward events and returns a
	// function that removes it.
	OnPopState(fn func(PopStateEvent)) (unsubscribe func())
}

// Location performs full, non-SPA navigations.
type Location interface {
	Assign(url string)
}

// FrameID identifies a scheduled animation frame callback.
type FrameID int

// FrameScheduler runs callbacks on the next animation frame.
// RequestFrame must not invoke fn before returning.
type FrameScheduler interface {
	RequestFrame(fn func()) FrameID
	CancelFrame(id FrameID)
}

// ScrollElement is the scrollable container whose offset is tracked.
type ScrollElement interface {
	ScrollTop() float64
	SetScrollTop(y float64)
	ScrollHeight() float64
	OffsetHeight() float64
}

// ScrollableFunc returns the current scrollable element, or nil when none
// is mounted. It is re-queried on every use.
type ScrollableFunc func() ScrollElement

// Observer receives counts of degraded history operations.
type Observer interface {
	HistoryMiss(op string)
	ScrollRestore(result string)
}

type nopObserver struct{}

func (nopObserver) HistoryMiss(string)   {}
func (nopObserver) ScrollRestore(string) {}
