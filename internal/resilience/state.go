package resilience

import (
	"time"
)

// StateVersion is the current state schema version.
const StateVersion = 1

// State is the breaker state shared by every storefront process that talks
// to the media API. Breakers are keyed by API origin.
type State struct {
	Version   int                      `json:"version"`
	Breakers  map[string]*BreakerState `json:"breakers"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// BreakerState tracks one circuit.
type BreakerState struct {
	// State is "closed", "open" or "half_open".
	State string `json:"state"`

	// Failures counts consecutive failures while closed.
	Failures int `json:"failures"`

	// Successes counts consecutive successes while half-open.
	Successes int `json:"successes"`

	// Probes counts requests in flight while half-open.
	Probes int `json:"probes,omitempty"`

	// LastProbeAt detects probes left behind by a crashed process.
	LastProbeAt time.Time `json:"last_probe_at"`

	LastFailureAt time.Time `json:"last_failure_at"`
	OpenedAt      time.Time `json:"opened_at"`
}

// Circuit states.
const (
	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half_open"
)

func (b *BreakerState) IsClosed() bool   { return b.State == "" || b.State == CircuitClosed }
func (b *BreakerState) IsOpen() bool     { return b.State == CircuitOpen }
func (b *BreakerState) IsHalfOpen() bool { return b.State == CircuitHalfOpen }

// NewState returns an empty state.
func NewState() *State {
	return &State{
		Version:   StateVersion,
		Breakers:  make(map[string]*BreakerState),
		UpdatedAt: time.Now(),
	}
}

// Breaker returns the state for key, creating a closed one if needed.
func (s *State) Breaker(key string) *BreakerState {
	if s.Breakers == nil {
		s.Breakers = make(map[string]*BreakerState)
	}
	b, ok := s.Breakers[key]
	if !ok {
		b = &BreakerState{State: CircuitClosed}
		s.Breakers[key] = b
	}
	return b
}
