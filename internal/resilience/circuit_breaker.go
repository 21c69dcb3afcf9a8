package resilience

import (
	"time"
)

// Config tunes a circuit breaker. Zero fields take defaults.
type Config struct {
	// FailureThreshold is the consecutive failures that open the circuit.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is the consecutive half-open successes that close it.
	// Default: 2
	SuccessThreshold int

	// OpenTimeout is how long the circuit stays open before probing.
	// Default: 30 seconds
	OpenTimeout time.Duration

	// MaxProbes caps requests in flight while half-open.
	// Default: 1
	MaxProbes int
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.MaxProbes <= 0 {
		c.MaxProbes = 1
	}
	return c
}

// CircuitBreaker fails media API requests fast after repeated failures.
// Storage errors fail open.
type CircuitBreaker struct {
	key    string
	config Config
	store  *Store
	now    func() time.Time
}

// NewCircuitBreaker creates a breaker for key, usually the API origin.
func NewCircuitBreaker(store *Store, key string, config Config) *CircuitBreaker {
	return &CircuitBreaker{
		key:    key,
		config: config.withDefaults(),
		store:  store,
		now:    time.Now,
	}
}

// Allow reports whether a request may go out. Half-open circuits reserve a
// probe slot for the caller.
func (cb *CircuitBreaker) Allow() (bool, error) {
	state, err := cb.store.Load()
	if err != nil {
		return true, nil
	}
	if b := state.Breaker(cb.key); b.IsClosed() {
		return true, nil
	}

	var allowed bool
	now := cb.now()
	err = cb.store.Update(func(s *State) error {
		b := s.Breaker(cb.key)
		switch {
		case b.IsClosed():
			allowed = true
			return nil
		case b.IsOpen():
			if now.Sub(b.OpenedAt) < cb.config.OpenTimeout {
				return nil
			}
			b.State = CircuitHalfOpen
			b.Successes = 0
			b.Failures = 0
			b.Probes = 0
		}

		// Probes older than OpenTimeout belong to processes that died.
		if b.Probes >= cb.config.MaxProbes && !b.LastProbeAt.IsZero() && now.Sub(b.LastProbeAt) >= cb.config.OpenTimeout {
			b.Probes = 0
		}
		if b.Probes >= cb.config.MaxProbes {
			return nil
		}
		b.Probes++
		b.LastProbeAt = now
		s.UpdatedAt = now
		allowed = true
		return nil
	})
	if err != nil {
		return true, nil
	}
	return allowed, nil
}

// RecordSuccess records a request the API answered.
func (cb *CircuitBreaker) RecordSuccess() error {
	return cb.store.Update(func(s *State) error {
		b := s.Breaker(cb.key)
		switch {
		case b.IsHalfOpen():
			if b.Probes > 0 {
				b.Probes--
			}
			b.Successes++
			if b.Successes >= cb.config.SuccessThreshold {
				*b = BreakerState{State: CircuitClosed, LastFailureAt: b.LastFailureAt}
			}
		case b.IsClosed():
			b.Failures = 0
		}
		s.UpdatedAt = cb.now()
		return nil
	})
}

// RecordFailure records a request that failed for server or network reasons.
func (cb *CircuitBreaker) RecordFailure() error {
	return cb.store.Update(func(s *State) error {
		b := s.Breaker(cb.key)
		now := cb.now()
		b.LastFailureAt = now

		switch {
		case b.IsClosed():
			b.Failures++
			if b.Failures >= cb.config.FailureThreshold {
				b.State = CircuitOpen
				b.OpenedAt = now
			}
		case b.IsHalfOpen():
			b.State = CircuitOpen
			b.OpenedAt = now
			b.Successes = 0
			b.Probes = 0
			b.LastProbeAt = time.Time{}
		}
		s.UpdatedAt = now
		return nil
	})
}

// State returns the circuit state, reporting an expired open circuit as
// half-open.
func (cb *CircuitBreaker) State() (string, error) {
	state, err := cb.store.Load()
	if err != nil {
		return CircuitClosed, err
	}
	b := state.Breaker(cb.key)
	if b.IsOpen() && cb.now().Sub(b.OpenedAt) >= cb.config.OpenTimeout {
		return CircuitHalfOpen, nil
	}
	if b.State == "" {
		return CircuitClosed, nil
	}
	return b.State, nil
}

// RetryAt returns when an open circuit starts probing again. It is zero
// unless the circuit is open.
func (cb *CircuitBreaker) RetryAt() time.Time {
	state, err := cb.store.Load()
	if err != nil {
		return time.Time{}
	}
	b := state.Breaker(cb.key)
	if !b.IsOpen() {
		return time.Time{}
	}
	return b.OpenedAt.Add(cb.config.OpenTimeout)
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() error {
	return cb.store.Update(func(s *State) error {
		*s.Breaker(cb.key) = BreakerState{State: CircuitClosed}
		s.UpdatedAt = cb.now()
		return nil
	})
}
