// Package lru provides a fixed-capacity least-recently-used store.
//
// Reads promote an entry to most-recently-used. Eviction is silent: an
// evicted entry is simply gone and callers must treat a miss as normal.
package lru

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultCapacity is the capacity used for browser history state.
const DefaultCapacity = 10

// ErrInvalidCapacity is returned for a negative capacity.
var ErrInvalidCapacity = errors.New("lru: capacity must be zero or positive")

// Store is a bounded key/value store safe for concurrent use.
type Store[K comparable, V any] struct {
	mu       sync.Mutex
	items    *simplelru.LRU[K, V]
	capacity int
}

// New creates a store holding at most capacity entries. A capacity of zero
// yields a store that retains nothing.
func New[K comparable, V any](capacity int) (*Store[K, V], error) {
	if capacity < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	// simplelru rejects a zero size at construction but accepts one on resize.
	items, err := simplelru.NewLRU[K, V](max(capacity, 1), nil)
	if err != nil {
		return nil, err
	}
	items.Resize(capacity)
	return &Store[K, V]{items: items, capacity: capacity}, nil
}

// Get returns the value for key and promotes it to most-recently-used.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Get(key)
}

// Peek returns the value for key without touching its recency.
func (s *Store[K, V]) Peek(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Peek(key)
}

// Set inserts or overwrites key, then evicts least-recently-used entries
// until the store is within capacity. Overwriting also promotes the key.
func (s *Store[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capacity == 0 {
		return
	}
	s.items.Add(key, value)
}

// Update applies fn to the stored value for key, if present, and stores
// the result. It reports whether the key was found.
func (s *Store[K, V]) Update(key K, fn func(V) V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items.Get(key)
	if !ok {
		return false
	}
	s.items.Add(key, fn(v))
	return true
}

// SetCapacity changes the capacity and prunes immediately.
func (s *Store[K, V]) SetCapacity(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCapacity, n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items.Resize(n)
	s.capacity = n
	return nil
}

// Capacity returns the current capacity.
func (s *Store[K, V]) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

// Len returns the number of stored entries.
func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Len()
}

// Keys returns the stored keys from least to most recently used.
func (s *Store[K, V]) Keys() []K {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Keys()
}
