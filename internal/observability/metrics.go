package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics holds the Prometheus collectors for a process. Each Metrics owns
// its registry so tests can create as many as they need.
type Metrics struct {
	Registry *prometheus.Registry

	actions        *prometheus.CounterVec
	pageFetch      *prometheus.HistogramVec
	intents        *prometheus.HistogramVec
	historyMisses  *prometheus.CounterVec
	scrollRestores *prometheus.CounterVec
	prefetchHits   *prometheus.CounterVec
	apiRequests    *prometheus.CounterVec
	apiDuration    prometheus.Histogram
}

// NewMetrics creates and registers the storefront collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Actions performed by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		pageFetch: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "page_fetch_seconds",
				Help:      "Page fetch latency by source and result",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"source", "intent", "result"},
		),
		intents: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "intent_dispatch_seconds",
				Help:      "Intent controller latency by kind and result",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"intent", "result"},
		),
		historyMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_misses_total",
				Help:      "History operations that found no live entry",
			},
			[]string{"op"},
		),
		scrollRestores: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scroll_restores_total",
				Help:      "Scroll restorations by result",
			},
			[]string{"result"},
		),
		prefetchHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "prefetch_hits_total",
				Help:      "Intents answered from server-rendered data",
			},
			[]string{"intent"},
		),
		apiRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Media API requests by status code",
			},
			[]string{"status"},
		),
		apiDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Media API request latency",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
			},
		),
	}

	m.Registry.MustRegister(
		m.actions,
		m.pageFetch,
		m.intents,
		m.historyMisses,
		m.scrollRestores,
		m.prefetchHits,
		m.apiRequests,
		m.apiDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
