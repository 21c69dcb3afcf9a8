// Package jet is the intent runtime facade. It dispatches intents to
// controllers, performs actions through registered handlers, serves
// server-prefetched results once, and routes URLs to destinations.
package jet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/basecamp/storefront/internal/intent"
)

const tracerName = "github.com/basecamp/storefront/internal/jet"

// Route is the destination a URL resolves to.
type Route struct {
	Intent     intent.Intent
	Action     *intent.FlowAction
	Storefront string
	Language   string
}

// Recorder receives runtime measurements.
type Recorder interface {
	IntentDispatched(kind intent.Kind, d time.Duration, err error)
	ActionPerformed(kind intent.ActionKind, outcome intent.Outcome)
	PrefetchHit(kind intent.Kind)
}

type nopRecorder struct{}

func (nopRecorder) IntentDispatched(intent.Kind, time.Duration, error) {}
func (nopRecorder) ActionPerformed(intent.ActionKind, intent.Outcome)  {}
func (nopRecorder) PrefetchHit(intent.Kind)                           {}

// Options configures a Jet.
type Options struct {
	Logger     *slog.Logger
	Recorder   Recorder
	Prefetched *Prefetched
	Tracer     trace.Tracer
}

// Jet coordinates intent dispatch and action performance for one session.
type Jet struct {
	intents    *Dispatcher
	actions    *ActionDispatcher
	prefetched *Prefetched
	recorder   Recorder
	tracer     trace.Tracer
	logger     *slog.Logger

	mu   sync.RWMutex
	page *intent.Page
}

// New creates a Jet with empty dispatch tables.
func New(opts Options) *Jet {
	j := &Jet{
		intents:    NewDispatcher(),
		actions:    NewActionDispatcher(),
		prefetched: opts.Prefetched,
		recorder:   opts.Recorder,
		tracer:     opts.Tracer,
		logger:     opts.Logger,
	}
	if j.prefetched == nil {
		j.prefetched = NewPrefetched()
	}
	if j.recorder == nil {
		j.recorder = nopRecorder{}
	}
	if j.tracer == nil {
		j.tracer = otel.Tracer(tracerName)
	}
	if j.logger == nil {
		j.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return j
}

// Intents returns the dispatcher controllers register with.
func (j *Jet) Intents() *Dispatcher {
	return j.intents
}

// Prefetched returns the one-shot prefetch cache.
func (j *Jet) Prefetched() *Prefetched {
	return j.prefetched
}

// Dispatch resolves i, serving a prefetched result first if one exists.
func (j *Jet) Dispatch(ctx context.Context, i intent.Intent) (any, error) {
	if i == nil {
		return nil, fmt.Errorf("%w: nil", ErrNoController)
	}
	if v, ok := j.prefetched.Take(i); ok {
		j.logger.Debug("dispatch served from prefetch", "intent", i.Kind())
		j.recorder.PrefetchHit(i.Kind())
		return v, nil
	}

	ctx, span := j.tracer.Start(ctx, "jet.dispatch",
		trace.WithAttributes(attribute.String("intent.kind", string(i.Kind()))))
	defer span.End()

	start := time.Now()
	v, err := j.intents.Dispatch(ctx, i)
	j.recorder.IntentDispatched(i.Kind(), time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return v, nil
}

// DispatchPage dispatches i and requires a page result.
func DispatchPage(ctx context.Context, j *Jet, i intent.Intent) (*intent.Page, error) {
	v, err := j.Dispatch(ctx, i)
	if err != nil {
		return nil, err
	}
	page, ok := v.(*intent.Page)
	if !ok {
		return nil, fmt.Errorf("dispatch %s: got %T, want page", i.Kind(), v)
	}
	return page, nil
}

// OnAction registers the handler for kind. Registering a kind twice panics.
func (j *Jet) OnAction(kind intent.ActionKind, h ActionHandler) {
	j.actions.Register(kind, h)
}

// Perform runs a with metrics attributed to the active page.
func (j *Jet) Perform(ctx context.Context, a intent.Action) intent.Outcome {
	metrics := j.metricsBehavior()
	if !metrics.Processed {
		j.logger.Debug("perform without active page; metrics not processed")
	}
	outcome := j.actions.Perform(ctx, a, metrics)
	if a != nil {
		j.recorder.ActionPerformed(a.ActionKind(), outcome)
	}
	return outcome
}

func (j *Jet) metricsBehavior() MetricsBehavior {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.page == nil || j.page.Metrics == nil {
		return NotProcessed
	}
	m := j.page.Metrics
	return MetricsBehavior{
		Processed: true,
		PageID:    m.PageID,
		PageType:  m.PageType,
		Fields:    m.Fields,
	}
}

// SetCurrentPage records the active page. A nil page clears it.
func (j *Jet) SetCurrentPage(p *intent.Page) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.page = p
}

// CurrentPage returns the active page, if any.
func (j *Jet) CurrentPage() *intent.Page {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.page
}

// RouteURL resolves url to a destination. It returns nil when the URL is
// not routable.
func (j *Jet) RouteURL(ctx context.Context, url string) *Route {
	v, err := j.Dispatch(ctx, intent.RouteURLIntent{URL: url})
	if err != nil {
		j.logger.Info("url not routable", "url", url, "error", err)
		return nil
	}
	route, ok := v.(*Route)
	if !ok || route == nil || route.Intent == nil {
		j.logger.Info("url not routable", "url", url)
		return nil
	}
	j.logger.Debug("routed url", "url", url, "intent", route.Intent.Kind(),
		"storefront", route.Storefront, "language", route.Language)
	return route
}
