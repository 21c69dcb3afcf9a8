// Package browse is the full-screen terminal storefront browser. It runs
// the flow core against the in-memory browser and renders pages with
// bubbletea.
package browse

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/basecamp/storefront/internal/browser/memory"
	"github.com/basecamp/storefront/internal/flow"
	"github.com/basecamp/storefront/internal/intent"
	"github.com/basecamp/storefront/internal/jet"
	"github.com/basecamp/storefront/internal/lru"
	"github.com/basecamp/storefront/internal/nav"
	"github.com/basecamp/storefront/internal/tui/recents"
)

// Observer receives flow and history events. observability.Hooks
// implements it.
type Observer interface {
	flow.Observer
	nav.Observer
}

// SessionOptions configures a Session. Jet and Browser are required.
type SessionOptions struct {
	Jet             *jet.Jet
	Browser         *memory.Browser
	HistoryCapacity int
	LoadingTimeout  time.Duration
	Logger          *slog.Logger
	Observer        Observer
	Recents         *recents.Store
}

// Session owns one browsing session: the history, the flow core bound to
// the Jet, and the queue of messages for the UI.
type Session struct {
	jet         *jet.Jet
	browser     *memory.Browser
	history     *nav.History[*intent.Page]
	core        *flow.Core
	unsubscribe func()
	recents     *recents.Store
	logger      *slog.Logger

	msgs      chan tea.Msg
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession wires a flow core to opts.Browser.
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.HistoryCapacity == 0 {
		opts.HistoryCapacity = lru.DefaultCapacity
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	histOpts := []nav.Option{
		nav.WithCapacity(opts.HistoryCapacity),
		nav.WithLogger(opts.Logger),
	}
	if opts.Observer != nil {
		histOpts = append(histOpts, nav.WithObserver(opts.Observer))
	}
	history, err := nav.NewHistory[*intent.Page](opts.Browser, opts.Browser, opts.Browser.Scrollable(), histOpts...)
	if err != nil {
		return nil, err
	}

	s := &Session{
		jet:     opts.Jet,
		browser: opts.Browser,
		history: history,
		recents: opts.Recents,
		logger:  opts.Logger,
		msgs:    make(chan tea.Msg, 16),
		done:    make(chan struct{}),
	}

	cfg := flow.Config{
		History:        history,
		Location:       opts.Browser,
		Update:         func(u flow.Update) { s.send(updateMsg{u}) },
		DidEnterPage:   s.didEnterPage,
		PresentModal:   func(p *intent.Page) { s.send(modalMsg{p}) },
		LoadingTimeout: opts.LoadingTimeout,
		Logger:         opts.Logger,
	}
	if opts.Observer != nil {
		cfg.Observer = opts.Observer
	}
	s.core, s.unsubscribe = flow.Install(opts.Jet, cfg)
	opts.Browser.OnAssign(func(url string) { s.send(leftAppMsg{url}) })
	return s, nil
}

func (s *Session) send(msg tea.Msg) {
	select {
	case s.msgs <- msg:
	case <-s.done:
	}
}

func (s *Session) didEnterPage(p *intent.Page) {
	s.jet.SetCurrentPage(p)
	if p == nil || s.recents == nil {
		return
	}
	item := recents.Item{URL: p.CanonicalURL, Title: p.Title, Kind: string(p.Kind)}
	if p.Metrics != nil {
		item.Storefront = p.Metrics.Fields["storefront"]
	}
	s.recents.Visit(item)
}

// Open routes url and performs the resulting navigation. Unroutable URLs
// are reported to the UI and return OutcomeUnsupported.
func (s *Session) Open(ctx context.Context, url string) intent.Outcome {
	route := s.jet.RouteURL(ctx, url)
	if route == nil || route.Intent == nil {
		s.logger.Info("unroutable url", "url", url)
		s.send(notFoundMsg{url})
		return intent.OutcomeUnsupported
	}
	action := route.Action
	if action == nil {
		action = &intent.FlowAction{Destination: route.Intent, PageURL: url}
	}
	return s.jet.Perform(ctx, action)
}

// Perform hands a to the Jet's action dispatcher.
func (s *Session) Perform(ctx context.Context, a intent.Action) intent.Outcome {
	return s.jet.Perform(ctx, a)
}

// Back moves one entry back, firing popstate.
func (s *Session) Back() bool { return s.browser.Back() }

// Forward moves one entry forward, firing popstate.
func (s *Session) Forward() bool { return s.browser.Forward() }

// Depth returns the live history position (1-based) and the stack size.
func (s *Session) Depth() (pos, total int) {
	entries, index := s.browser.Entries()
	return index + 1, len(entries)
}

// Location returns the live URL.
func (s *Session) Location() string {
	return s.browser.Location()
}

// Viewport returns the scrollable page region.
func (s *Session) Viewport() *memory.Viewport {
	return s.browser.Viewport()
}

// Tick runs queued frame callbacks and reports whether more are pending.
func (s *Session) Tick() bool {
	s.browser.Tick()
	return s.browser.PendingFrames() > 0
}

// SetHistoryCapacity changes how many entries keep their page.
func (s *Session) SetHistoryCapacity(n int) error {
	return s.history.SetCapacity(n)
}

// Snapshot captures the history stack for persistence.
func (s *Session) Snapshot() *memory.Session {
	return s.browser.Snapshot()
}

// Msgs is the queue of UI messages.
func (s *Session) Msgs() <-chan tea.Msg {
	return s.msgs
}

// Close detaches from popstate and releases blocked senders.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.unsubscribe()
		close(s.done)
	})
}
