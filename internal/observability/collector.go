// Package observability provides metrics collection and tracing for
// storefront navigation sessions.
package observability

import (
	"sync"
	"time"

	"github.com/basecamp/storefront/internal/api"
	"github.com/basecamp/storefront/internal/flow"
)

// RequestMetrics holds timing and status information for a single media API request.
type RequestMetrics struct {
	Method     string
	URL        string
	Attempt    int
	StatusCode int
	Duration   time.Duration
	Retryable  bool
	Error      error
}

// NavigationMetrics holds timing information for one page fetch.
type NavigationMetrics struct {
	Source       string // "action", "popstate" or "modal"
	Intent       string
	Duration     time.Duration
	SettledEarly bool
	Error        error
}

// SessionMetrics aggregates metrics for an entire browsing session.
type SessionMetrics struct {
	StartTime        time.Time
	EndTime          time.Time
	TotalNavigations int
	FailedNavs       int
	LateNavs         int
	PrefetchHits     int
	HistoryMisses    int
	ScrollRestores   int
	ScrollAbandons   int
	TotalRequests    int
	TotalRetries     int
	TotalLatency     time.Duration
}

// SessionCollector accumulates metrics across a session.
// It is safe for concurrent use and uses counters instead of unbounded slices.
type SessionCollector struct {
	mu sync.Mutex

	startTime        time.Time
	totalNavigations int
	failedNavs       int
	lateNavs         int
	prefetchHits     int
	historyMisses    int
	scrollRestores   int
	scrollAbandons   int
	totalRequests    int
	totalRetries     int
	totalLatency     time.Duration
}

// NewSessionCollector creates a new SessionCollector.
func NewSessionCollector() *SessionCollector {
	return &SessionCollector{
		startTime: time.Now(),
	}
}

// RecordNavigation records a completed page fetch.
func (c *SessionCollector) RecordNavigation(m NavigationMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalNavigations++
	c.totalLatency += m.Duration
	if m.Error != nil {
		c.failedNavs++
	}
	if !m.SettledEarly {
		c.lateNavs++
	}
}

// RecordNavigationFromFlow records metrics from a flow navigation.
func (c *SessionCollector) RecordNavigationFromFlow(n flow.Navigation) {
	c.RecordNavigation(NavigationMetrics{
		Source:       n.Source,
		Intent:       string(n.Intent),
		Duration:     n.Latency,
		SettledEarly: n.SettledEarly,
		Error:        n.Err,
	})
}

// RecordRequest records metrics for a media API request.
func (c *SessionCollector) RecordRequest(_ RequestMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

// RecordRequestFromAPI records metrics from API client types.
func (c *SessionCollector) RecordRequestFromAPI(info api.RequestInfo, result api.RequestResult) {
	c.RecordRequest(RequestMetrics{
		Method:     info.Method,
		URL:        info.URL,
		Attempt:    info.Attempt,
		StatusCode: result.StatusCode,
		Duration:   result.Duration,
		Retryable:  result.Retryable,
		Error:      result.Error,
	})
}

// RecordRetry records a retry event.
func (c *SessionCollector) RecordRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
}

// RecordPrefetchHit records a page served from server-rendered data.
func (c *SessionCollector) RecordPrefetchHit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefetchHits++
}

// RecordHistoryMiss records a history operation that found no live entry.
func (c *SessionCollector) RecordHistoryMiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.historyMisses++
}

// RecordScrollRestore records the result of a scroll restoration.
func (c *SessionCollector) RecordScrollRestore(restored bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if restored {
		c.scrollRestores++
	} else {
		c.scrollAbandons++
	}
}

// Summary returns aggregated metrics for the session.
func (c *SessionCollector) Summary() SessionMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	return SessionMetrics{
		StartTime:        c.startTime,
		EndTime:          time.Now(),
		TotalNavigations: c.totalNavigations,
		FailedNavs:       c.failedNavs,
		LateNavs:         c.lateNavs,
		PrefetchHits:     c.prefetchHits,
		HistoryMisses:    c.historyMisses,
		ScrollRestores:   c.scrollRestores,
		ScrollAbandons:   c.scrollAbandons,
		TotalRequests:    c.totalRequests,
		TotalRetries:     c.totalRetries,
		TotalLatency:     c.totalLatency,
	}
}

// Reset clears all collected metrics and resets the start time.
func (c *SessionCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.totalNavigations = 0
	c.failedNavs = 0
	c.lateNavs = 0
	c.prefetchHits = 0
	c.historyMisses = 0
	c.scrollRestores = 0
	c.scrollAbandons = 0
	c.totalRequests = 0
	c.totalRetries = 0
	c.totalLatency = 0
}
