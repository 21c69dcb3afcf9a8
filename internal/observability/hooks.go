package observability

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/basecamp/storefront/internal/api"
	"github.com/basecamp/storefront/internal/flow"
	"github.com/basecamp/storefront/internal/intent"
	"github.com/basecamp/storefront/internal/jet"
	"github.com/basecamp/storefront/internal/nav"
)

var (
	_ jet.Recorder  = (*Hooks)(nil)
	_ flow.Observer = (*Hooks)(nil)
	_ nav.Observer  = (*Hooks)(nil)
	_ api.Hooks     = (*Hooks)(nil)
)

// Hooks fans runtime events out to the collector, the navigation log,
// Prometheus and the trace writer. Every sink is optional.
// Trace output depends on the verbosity level:
//   - 0: Silent (collect stats only, no output)
//   - 1: Navigations, actions and history misses
//   - 2: Everything above plus media API requests
type Hooks struct {
	mu        sync.Mutex
	level     int
	collector *SessionCollector
	writer    *TraceWriter
	metrics   *Metrics
	navLog    *NavigationLog
}

// HooksOption configures optional sinks.
type HooksOption func(*Hooks)

// WithMetrics records to m.
func WithMetrics(m *Metrics) HooksOption {
	return func(h *Hooks) { h.metrics = m }
}

// WithNavigationLog records navigations to l.
func WithNavigationLog(l *NavigationLog) HooksOption {
	return func(h *Hooks) { h.navLog = l }
}

// NewHooks creates Hooks with the given verbosity level.
// If collector is nil, session stats are not collected.
// If writer is nil, no trace output is produced.
func NewHooks(level int, collector *SessionCollector, writer *TraceWriter, opts ...HooksOption) *Hooks {
	h := &Hooks{
		level:     level,
		collector: collector,
		writer:    writer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetLevel changes the verbosity level at runtime.
func (h *Hooks) SetLevel(level int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.level = level
}

// Level returns the current verbosity level.
func (h *Hooks) Level() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

func (h *Hooks) writerAt(min int) *TraceWriter {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.level < min {
		return nil
	}
	return h.writer
}

// Navigated is called when a page fetch completes.
func (h *Hooks) Navigated(n flow.Navigation) {
	m := NavigationMetrics{
		Source:       n.Source,
		Intent:       string(n.Intent),
		Duration:     n.Latency,
		SettledEarly: n.SettledEarly,
		Error:        n.Err,
	}
	if h.collector != nil {
		h.collector.RecordNavigation(m)
	}
	if h.navLog != nil {
		h.navLog.Record(NavigationEvent{
			Source:       n.Source,
			Intent:       string(n.Intent),
			Duration:     n.Latency,
			SettledEarly: n.SettledEarly,
			Failed:       n.Err != nil,
		})
	}
	if h.metrics != nil {
		h.metrics.pageFetch.WithLabelValues(n.Source, string(n.Intent), resultLabel(n.Err)).Observe(n.Latency.Seconds())
	}
	if w := h.writerAt(1); w != nil {
		w.WriteNavigation(m)
	}
}

// IntentDispatched is called after an intent controller returns.
func (h *Hooks) IntentDispatched(kind intent.Kind, d time.Duration, err error) {
	if h.metrics != nil {
		h.metrics.intents.WithLabelValues(string(kind), resultLabel(err)).Observe(d.Seconds())
	}
}

// ActionPerformed is called after an action handler returns.
func (h *Hooks) ActionPerformed(kind intent.ActionKind, outcome intent.Outcome) {
	if h.metrics != nil {
		h.metrics.actions.WithLabelValues(string(kind), string(outcome)).Inc()
	}
	if w := h.writerAt(1); w != nil {
		w.WriteAction(string(kind), string(outcome))
	}
}

// PrefetchHit is called when an intent is answered from server-rendered data.
func (h *Hooks) PrefetchHit(kind intent.Kind) {
	if h.collector != nil {
		h.collector.RecordPrefetchHit()
	}
	if h.metrics != nil {
		h.metrics.prefetchHits.WithLabelValues(string(kind)).Inc()
	}
}

// HistoryMiss is called when a history operation finds no live entry.
func (h *Hooks) HistoryMiss(op string) {
	if h.collector != nil {
		h.collector.RecordHistoryMiss()
	}
	if h.metrics != nil {
		h.metrics.historyMisses.WithLabelValues(op).Inc()
	}
	if w := h.writerAt(1); w != nil {
		w.WriteHistoryMiss(op)
	}
}

// ScrollRestore is called when a scroll restoration finishes.
func (h *Hooks) ScrollRestore(result string) {
	if h.collector != nil {
		h.collector.RecordScrollRestore(result == nav.ScrollRestored)
	}
	if h.metrics != nil {
		h.metrics.scrollRestores.WithLabelValues(result).Inc()
	}
}

// OnRequestStart is called before a media API request is sent.
func (h *Hooks) OnRequestStart(ctx context.Context, info api.RequestInfo) context.Context {
	if w := h.writerAt(2); w != nil {
		w.WriteRequestStart(info)
	}
	return ctx
}

// OnRequestEnd is called after a media API request completes.
func (h *Hooks) OnRequestEnd(_ context.Context, info api.RequestInfo, result api.RequestResult) {
	if h.collector != nil {
		h.collector.RecordRequestFromAPI(info, result)
	}
	if h.metrics != nil {
		status := "error"
		if result.StatusCode != 0 {
			status = strconv.Itoa(result.StatusCode)
		}
		h.metrics.apiRequests.WithLabelValues(status).Inc()
		h.metrics.apiDuration.Observe(result.Duration.Seconds())
	}
	if w := h.writerAt(2); w != nil {
		w.WriteRequestEnd(info, result)
	}
}

// OnRetry is called before a retry attempt.
func (h *Hooks) OnRetry(_ context.Context, _ api.RequestInfo, attempt int, err error) {
	if h.collector != nil {
		h.collector.RecordRetry()
	}
	if w := h.writerAt(2); w != nil {
		w.WriteRetry(attempt, err)
	}
}
