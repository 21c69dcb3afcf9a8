package observability

import (
	"slices"
	"sync"
	"time"
)

const maxNavLog = 20

// NavigationEvent records one page fetch for status display.
type NavigationEvent struct {
	Timestamp    time.Time
	Source       string
	Intent       string
	Duration     time.Duration
	SettledEarly bool
	Failed       bool
}

// NavigationSummary is a point-in-time snapshot of recent navigations.
type NavigationSummary struct {
	Count      int
	P50Latency time.Duration
	ErrorRate  float64
	// Apdex scores early settles as satisfied, late ones as tolerating and
	// failures as frustrated.
	Apdex float64
}

// NavigationLog keeps the last twenty navigations.
type NavigationLog struct {
	mu     sync.RWMutex
	events []NavigationEvent
}

// NewNavigationLog creates an empty log.
func NewNavigationLog() *NavigationLog {
	return &NavigationLog{}
}

// Record appends e, dropping the oldest event when full.
func (l *NavigationLog) Record(e NavigationEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if len(l.events) >= maxNavLog {
		l.events = l.events[1:]
	}
	l.events = append(l.events, e)
}

// Events returns a copy of the log, oldest first.
func (l *NavigationLog) Events() []NavigationEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.events)
}

// Summary computes latency and quality over the logged navigations.
func (l *NavigationLog) Summary() NavigationSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	summary := NavigationSummary{Count: len(l.events), Apdex: 1.0}
	if len(l.events) == 0 {
		return summary
	}

	var latencies []time.Duration
	var errors int
	var score float64
	for _, e := range l.events {
		switch {
		case e.Failed:
			errors++
		case e.SettledEarly:
			latencies = append(latencies, e.Duration)
			score += 1.0
		default:
			latencies = append(latencies, e.Duration)
			score += 0.5
		}
	}

	if len(latencies) > 0 {
		slices.Sort(latencies)
		summary.P50Latency = latencies[len(latencies)/2]
	}
	summary.ErrorRate = float64(errors) / float64(len(l.events))
	summary.Apdex = score / float64(len(l.events))
	return summary
}
