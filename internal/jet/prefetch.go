package jet

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/basecamp/storefront/internal/intent"
)

// PrefetchedIntent is an intent and its page, resolved during server
// rendering and handed to the client.
type PrefetchedIntent struct {
	Intent intent.Envelope `json:"intent"`
	Page   *intent.Page    `json:"page"`
}

// Prefetched is a one-shot cache of intent results. Each value is returned
// at most once.
type Prefetched struct {
	mu     sync.Mutex
	values map[string]any
}

// NewPrefetched creates an empty cache.
func NewPrefetched() *Prefetched {
	return &Prefetched{values: make(map[string]any)}
}

// Key returns the stable cache key for i. Two structurally identical
// intents share a key.
func Key(i intent.Intent) (string, error) {
	if i == nil {
		return "", fmt.Errorf("prefetch key: nil intent")
	}
	h, err := hashstructure.Hash(i, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("prefetch key %s: %w", i.Kind(), err)
	}
	return fmt.Sprintf("%s:%x", i.Kind(), h), nil
}

// Add stores v for i, replacing any earlier value.
func (p *Prefetched) Add(i intent.Intent, v any) error {
	key, err := Key(i)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = v
	return nil
}

// Take returns and removes the value for i.
func (p *Prefetched) Take(i intent.Intent) (any, bool) {
	key, err := Key(i)
	if err != nil {
		return nil, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[key]
	if ok {
		delete(p.values, key)
	}
	return v, ok
}

// Len returns the number of unconsumed values.
func (p *Prefetched) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.values)
}

// LoadJSON adds the pairs in a serialized []PrefetchedIntent.
func (p *Prefetched) LoadJSON(data []byte) error {
	var pairs []PrefetchedIntent
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("decode prefetched intents: %w", err)
	}
	for _, pair := range pairs {
		i, err := pair.Intent.Unwrap()
		if err != nil {
			return err
		}
		if err := p.Add(i, pair.Page); err != nil {
			return err
		}
	}
	return nil
}
