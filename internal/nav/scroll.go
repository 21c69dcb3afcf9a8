package nav

import (
	"io"
	"log/slog"
	"sync"
)

const (
	// MaxScrollAttempts bounds how many frames a restore waits for content.
	MaxScrollAttempts = 100
	// ScrollFudge tolerates content that settles a few pixels short.
	ScrollFudge = 16
)

// Scroll restore results reported to the Observer.
const (
	ScrollRestored  = "restored"
	ScrollExhausted = "exhausted"
	ScrollNoElement = "no_element"
)

// ScrollRestorer retries a scroll assignment once per frame until the
// element is tall enough to hold the target offset. Only one restore runs
// at a time; starting another cancels the pending one.
type ScrollRestorer struct {
	frames   FrameScheduler
	logger   *slog.Logger
	observer Observer

	mu         sync.Mutex
	generation uint64
	pending    FrameID
	hasPending bool
}

// NewScrollRestorer creates a restorer driven by frames.
func NewScrollRestorer(frames FrameScheduler, logger *slog.Logger, observer Observer) *ScrollRestorer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &ScrollRestorer{frames: frames, logger: logger, observer: observer}
}

// Restore starts a new restore sequence toward targetY.
func (r *ScrollRestorer) Restore(scrollable ScrollableFunc, targetY float64) {
	r.mu.Lock()
	if r.hasPending {
		r.frames.CancelFrame(r.pending)
		r.hasPending = false
	}
	r.generation++
	gen := r.generation
	r.mu.Unlock()

	r.schedule(gen, 1, scrollable, targetY)
}

func (r *ScrollRestorer) schedule(gen uint64, attempt int, scrollable ScrollableFunc, targetY float64) {
	id := r.frames.RequestFrame(func() {
		r.attempt(gen, attempt, scrollable, targetY)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation == gen {
		r.pending = id
		r.hasPending = true
	}
}

func (r *ScrollRestorer) attempt(gen uint64, attempt int, scrollable ScrollableFunc, targetY float64) {
	r.mu.Lock()
	if r.generation != gen {
		r.mu.Unlock()
		return
	}
	r.hasPending = false
	r.mu.Unlock()

	el := scrollable()
	if el == nil {
		r.logger.Warn("scroll restore: no scrollable element", "target", targetY)
		r.observer.ScrollRestore(ScrollNoElement)
		return
	}

	if targetY+el.OffsetHeight() <= el.ScrollHeight()+ScrollFudge {
		el.SetScrollTop(targetY)
		r.logger.Debug("scroll restored", "target", targetY, "attempts", attempt)
		r.observer.ScrollRestore(ScrollRestored)
		return
	}

	if attempt >= MaxScrollAttempts {
		r.logger.Warn("scroll restore: content never grew tall enough",
			"target", targetY, "attempts", attempt, "scroll_height", el.ScrollHeight())
		r.observer.ScrollRestore(ScrollExhausted)
		return
	}

	r.schedule(gen, attempt+1, scrollable, targetY)
}
