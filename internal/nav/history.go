package nav

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/basecamp/storefront/internal/lru"
)

// Entry is the application state stored for one history position.
type Entry[S any] struct {
	State   S
	ScrollY float64
}

// PopStateListener is invoked on back/forward with the live URL and the
// stored state for the entry, when it is still retained.
type PopStateListener[S any] func(url string, state S, found bool)

// Option configures a History.
type Option func(*options)

type options struct {
	capacity int
	logger   *slog.Logger
	observer Observer
	newID    func() StateID
}

// WithCapacity sets how many history entries keep their state.
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver sets the receiver for miss and scroll counts.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(fn func() StateID) Option {
	return func(o *options) { o.newID = fn }
}

// History correlates browser history entries with application state.
//
// The current identifier is tracked here as well as on the browser entry,
// since some browsers drop entry state across certain navigation sequences.
type History[S any] struct {
	browser    BrowserHistory
	scrollable ScrollableFunc
	store      *lru.Store[StateID, Entry[S]]
	restorer   *ScrollRestorer
	newID      func() StateID
	logger     *slog.Logger
	observer   Observer

	mu         sync.Mutex
	current    StateID
	hasCurrent bool
}

// NewHistory creates a History over browser. scrollable may return nil.
func NewHistory[S any](browser BrowserHistory, frames FrameScheduler, scrollable ScrollableFunc, opts ...Option) (*History[S], error) {
	o := options{capacity: lru.DefaultCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	if o.newID == nil {
		o.newID = func() StateID { return StateID(uuid.NewString()) }
	}
	if scrollable == nil {
		scrollable = func() ScrollElement { return nil }
	}

	store, err := lru.New[StateID, Entry[S]](o.capacity)
	if err != nil {
		return nil, fmt.Errorf("history store: %w", err)
	}

	return &History[S]{
		browser:    browser,
		scrollable: scrollable,
		store:      store,
		restorer:   NewScrollRestorer(frames, o.logger, o.observer),
		newID:      o.newID,
		logger:     o.logger,
		observer:   o.observer,
	}, nil
}

// ReplaceState replaces the live browser entry with url and associates
// state with it.
func (h *History[S]) ReplaceState(state S, url string) StateID {
	id := h.newID()
	h.browser.ReplaceState(id, url)
	h.enter(id, state)
	h.logger.Debug("history replace", "id", id, "url", url)
	return id
}

// PushState pushes a new browser entry for url and associates state with it.
func (h *History[S]) PushState(state S, url string) StateID {
	id := h.newID()
	h.browser.PushState(id, url)
	h.enter(id, state)
	h.logger.Debug("history push", "id", id, "url", url)
	return id
}

func (h *History[S]) enter(id StateID, state S) {
	h.store.Set(id, Entry[S]{State: state})
	if el := h.scrollable(); el != nil {
		el.SetScrollTop(0)
	}
	h.mu.Lock()
	h.current = id
	h.hasCurrent = true
	h.mu.Unlock()
}

// BeforeTransition records the live scroll offset on the entry about to be
// left. It must run before any DOM change that alters scroll geometry.
func (h *History[S]) BeforeTransition() {
	id, ok := h.browser.StateID()
	if !ok {
		h.logger.Debug("before transition: live entry has no state id")
		h.observer.HistoryMiss("before_transition")
		return
	}

	el := h.scrollable()
	if el == nil {
		h.logger.Debug("before transition: no scrollable element", "id", id)
		return
	}
	y := el.ScrollTop()

	updated := h.store.Update(id, func(e Entry[S]) Entry[S] {
		e.ScrollY = y
		return e
	})
	if !updated {
		h.logger.Info("before transition: no stored state", "id", id)
		h.observer.HistoryMiss("before_transition")
		return
	}
	h.logger.Debug("scroll snapshot", "id", id, "y", y)
}

// OnPopState subscribes listener to back/forward events. Stored scroll is
// restored after the listener returns.
func (h *History[S]) OnPopState(listener PopStateListener[S]) (unsubscribe func()) {
	return h.browser.OnPopState(func(ev PopStateEvent) {
		h.mu.Lock()
		h.current = ev.ID
		h.hasCurrent = ev.HasState
		h.mu.Unlock()

		var (
			entry Entry[S]
			found bool
		)
		if ev.HasState {
			entry, found = h.store.Get(ev.ID)
		} else {
			h.logger.Warn("popstate without state id")
		}
		if !found {
			h.logger.Info("popstate: no stored state", "id", ev.ID)
			h.observer.HistoryMiss("popstate")
		}

		listener(h.browser.Location(), entry.State, found)

		if found {
			h.restorer.Restore(h.scrollable, entry.ScrollY)
		}
	})
}

// CurrentStateID returns the identifier of the entry this History last
// entered, independent of what the browser reports.
func (h *History[S]) CurrentStateID() (StateID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current, h.hasCurrent
}

// Lookup returns the stored entry for id without promoting it.
func (h *History[S]) Lookup(id StateID) (Entry[S], bool) {
	return h.store.Peek(id)
}

// Retained returns the identifiers that still have stored state, oldest first.
func (h *History[S]) Retained() []StateID {
	return h.store.Keys()
}

// SetCapacity changes how many entries keep their state.
func (h *History[S]) SetCapacity(n int) error {
	return h.store.SetCapacity(n)
}
