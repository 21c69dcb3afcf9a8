// Package flow handles FlowActions: it turns a navigation request or a
// back/forward event into a page fetch, sequences history writes around
// it, and hands the pending page to the UI.
package flow

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/basecamp/storefront/internal/async"
	"github.com/basecamp/storefront/internal/intent"
	"github.com/basecamp/storefront/internal/jet"
	"github.com/basecamp/storefront/internal/nav"
)

// DefaultLoadingTimeout is how long a fetch may run before the UI is told
// to show a loading placeholder.
const DefaultLoadingTimeout = 500 * time.Millisecond

// FetchFunc resolves a destination to a page.
type FetchFunc func(ctx context.Context, dest intent.Intent) (*intent.Page, error)

// RouteFunc resolves a URL to a destination, or nil when unroutable.
type RouteFunc func(ctx context.Context, url string) *jet.Route

// Update is handed to the UI for every transition.
type Update struct {
	// Page settles with the page to render. Resolution happens after the
	// history write for action-driven transitions.
	Page        *async.Future[*intent.Page]
	IsFirstPage bool
	// SettledEarly is false when the fetch outlived the loading timeout
	// and a placeholder should be shown.
	SettledEarly bool
	// Seq increases with every update. Only the highest Seq seen is current.
	Seq uint64
}

// History is the part of nav.History the core drives.
type History interface {
	ReplaceState(p *intent.Page, url string) nav.StateID
	PushState(p *intent.Page, url string) nav.StateID
	BeforeTransition()
	OnPopState(listener nav.PopStateListener[*intent.Page]) (unsubscribe func())
}

// Navigation describes one completed page fetch.
type Navigation struct {
	Source       string
	Intent       intent.Kind
	Latency      time.Duration
	SettledEarly bool
	Err          error
}

// Navigation sources.
const (
	SourceAction   = "action"
	SourcePopState = "popstate"
	SourceModal    = "modal"
)

// Observer receives a record of every page fetch.
type Observer interface {
	Navigated(n Navigation)
}

type nopObserver struct{}

func (nopObserver) Navigated(Navigation) {}

// Config wires a Core to its collaborators. History, Location, Fetch and
// Route are required.
type Config struct {
	History  History
	Location nav.Location
	Fetch    FetchFunc
	Route    RouteFunc

	Update       func(Update)
	DidEnterPage func(p *intent.Page)
	PresentModal func(p *intent.Page)

	// ServerSide reports destinations that need a full browser navigation.
	// Defaults to intent.RequiresServerSide.
	ServerSide     func(intent.Intent) bool
	LoadingTimeout time.Duration
	Logger         *slog.Logger
	Observer       Observer
}

// Core is the FlowAction state machine for one session.
type Core struct {
	history        History
	location       nav.Location
	fetch          FetchFunc
	route          RouteFunc
	update         func(Update)
	didEnterPage   func(*intent.Page)
	presentModal   func(*intent.Page)
	serverSide     func(intent.Intent) bool
	loadingTimeout time.Duration
	logger         *slog.Logger
	observer       Observer

	mu          sync.Mutex
	isFirstPage bool
	seq         atomic.Uint64
	modals      sync.WaitGroup
}

// New creates a Core. The first action-driven transition replaces the
// live history entry; later ones push.
func New(cfg Config) *Core {
	c := &Core{
		history:        cfg.History,
		location:       cfg.Location,
		fetch:          cfg.Fetch,
		route:          cfg.Route,
		update:         cfg.Update,
		didEnterPage:   cfg.DidEnterPage,
		presentModal:   cfg.PresentModal,
		serverSide:     cfg.ServerSide,
		loadingTimeout: cfg.LoadingTimeout,
		logger:         cfg.Logger,
		observer:       cfg.Observer,
		isFirstPage:    true,
	}
	if c.update == nil {
		c.update = func(Update) {}
	}
	if c.didEnterPage == nil {
		c.didEnterPage = func(*intent.Page) {}
	}
	if c.presentModal == nil {
		c.presentModal = func(*intent.Page) {}
	}
	if c.serverSide == nil {
		c.serverSide = intent.RequiresServerSide
	}
	if c.loadingTimeout <= 0 {
		c.loadingTimeout = DefaultLoadingTimeout
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	return c
}

// IsFirstPage reports whether no action-driven transition has happened yet.
func (c *Core) IsFirstPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isFirstPage
}

// HandleAction performs a FlowAction. It blocks for at most the loading
// timeout; the page itself is delivered through the Update.
func (c *Core) HandleAction(ctx context.Context, action intent.FlowAction) intent.Outcome {
	dest := action.Destination
	if dest == nil {
		c.logger.Info("flow action has no destination", "title", action.Title)
		return intent.OutcomeUnsupported
	}

	c.mu.Lock()
	isFirstPage := c.isFirstPage
	c.mu.Unlock()

	if !isFirstPage && c.serverSide(dest) {
		if action.PageURL == "" {
			c.logger.Error("server-side destination has no page URL", "intent", dest.Kind())
			return intent.OutcomePerformed
		}
		c.logger.Debug("leaving app for server-side page", "url", action.PageURL)
		c.location.Assign(action.PageURL)
		return intent.OutcomePerformed
	}

	if action.IsModal() {
		c.handleModal(ctx, dest, action)
		return intent.OutcomePerformed
	}

	shouldReplace := isFirstPage
	outcome := c.fetchPage(ctx, SourceAction, dest, &action, isFirstPage)

	// Snapshot scroll on the page being left before anything can write
	// history or touch the UI.
	c.history.BeforeTransition()

	page := async.Then(outcome.Result, func(p *intent.Page) (*intent.Page, error) {
		url, err := p.RequireCanonicalURL()
		if err != nil {
			c.logger.Error("page resolved without canonical URL", "intent", dest.Kind())
			return nil, err
		}
		if shouldReplace {
			c.history.ReplaceState(p, url)
		} else {
			c.history.PushState(p, url)
		}
		c.didEnterPage(p)
		return p, nil
	})

	c.emit(page, isFirstPage, outcome.SettledEarly)

	c.mu.Lock()
	c.isFirstPage = false
	c.mu.Unlock()
	return intent.OutcomePerformed
}

func (c *Core) handleModal(ctx context.Context, dest intent.Intent, action intent.FlowAction) {
	f := c.startFetch(ctx, SourceModal, dest, &action, c.IsFirstPage())

	c.modals.Add(1)
	go func() {
		defer c.modals.Done()
		p, err := f.Await(context.WithoutCancel(ctx))
		if err != nil {
			c.logger.Error("modal page failed", "intent", dest.Kind(), "error", err)
			return
		}
		if !p.IsGeneric() {
			c.logger.Error("modal destination is not a generic page", "intent", dest.Kind(), "kind", p.Kind)
			return
		}
		c.presentModal(p)
	}()
}

// WaitModals blocks until in-flight modal presentations finish.
func (c *Core) WaitModals() {
	c.modals.Wait()
}

// HandlePopState reacts to a back/forward move. It never writes history:
// the browser has already moved.
func (c *Core) HandlePopState(ctx context.Context, url string, p *intent.Page, found bool) {
	isFirstPage := c.IsFirstPage()

	if found && p != nil {
		c.didEnterPage(p)
		c.emit(async.Resolved(p), isFirstPage, true)
		return
	}

	route := c.route(ctx, url)
	if route == nil || route.Intent == nil {
		c.logger.Warn("popstate to unroutable url", "url", url)
		c.didEnterPage(nil)
		c.emit(async.Rejected[*intent.Page](&NotFoundError{URL: url}), isFirstPage, true)
		return
	}

	retry := route.Action
	if retry == nil {
		retry = &intent.FlowAction{Destination: route.Intent, PageURL: url}
	}
	outcome := c.fetchPage(ctx, SourcePopState, route.Intent, retry, isFirstPage)
	page := async.Then(outcome.Result, func(p *intent.Page) (*intent.Page, error) {
		c.didEnterPage(p)
		return p, nil
	})
	c.emit(page, isFirstPage, outcome.SettledEarly)
}

func (c *Core) emit(page *async.Future[*intent.Page], isFirstPage, settledEarly bool) {
	c.update(Update{
		Page:         page,
		IsFirstPage:  isFirstPage,
		SettledEarly: settledEarly,
		Seq:          c.seq.Add(1),
	})
}

// fetchPage starts the fetch and races it against the loading timeout.
func (c *Core) fetchPage(ctx context.Context, source string, dest intent.Intent, action *intent.FlowAction, isFirstPage bool) async.Outcome[*intent.Page] {
	f := c.startFetch(ctx, source, dest, action, isFirstPage)
	return async.Race(ctx, f, c.loadingTimeout)
}

// startFetch runs the fetch detached from ctx cancellation; it always runs
// to the end and reports to the observer.
func (c *Core) startFetch(ctx context.Context, source string, dest intent.Intent, action *intent.FlowAction, isFirstPage bool) *async.Future[*intent.Page] {
	start := time.Now()
	return async.Go(context.WithoutCancel(ctx), func(ctx context.Context) (*intent.Page, error) {
		p, err := c.fetch(ctx, dest)
		latency := time.Since(start)
		c.observer.Navigated(Navigation{
			Source:       source,
			Intent:       dest.Kind(),
			Latency:      latency,
			SettledEarly: latency <= c.loadingTimeout,
			Err:          err,
		})
		if err != nil {
			c.logger.Error("page fetch failed", "intent", dest.Kind(), "source", source, "error", err)
			return nil, annotate(err, dest, action, isFirstPage)
		}
		c.logger.Debug("page fetched", "intent", dest.Kind(), "source", source, "duration", latency)
		return p, nil
	})
}

// Install creates a Core bound to j: Fetch and Route default to j's page
// dispatch and URL routing, the core becomes j's FlowAction handler, and
// it subscribes to back/forward events. The returned function removes the
// popstate subscription.
func Install(j *jet.Jet, cfg Config) (*Core, func()) {
	if cfg.Fetch == nil {
		cfg.Fetch = func(ctx context.Context, dest intent.Intent) (*intent.Page, error) {
			return jet.DispatchPage(ctx, j, dest)
		}
	}
	if cfg.Route == nil {
		cfg.Route = j.RouteURL
	}
	c := New(cfg)

	j.OnAction(intent.FlowActionKind, func(ctx context.Context, a intent.Action, _ jet.MetricsBehavior) intent.Outcome {
		switch fa := a.(type) {
		case intent.FlowAction:
			return c.HandleAction(ctx, fa)
		case *intent.FlowAction:
			if fa == nil {
				return intent.OutcomeUnsupported
			}
			return c.HandleAction(ctx, *fa)
		default:
			return intent.OutcomeUnsupported
		}
	})

	unsubscribe := c.history.OnPopState(func(url string, p *intent.Page, found bool) {
		c.HandlePopState(context.Background(), url, p, found)
	})
	return c, unsubscribe
}
