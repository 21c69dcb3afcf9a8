// Package recents remembers the pages a user visited, per storefront.
package recents

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// DefaultMaxItems is how many pages each storefront keeps.
const DefaultMaxItems = 10

// Item is a visited page.
type Item struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Kind       string    `json:"kind"`
	Storefront string    `json:"storefront"`
	VisitedAt  time.Time `json:"visited_at"`
}

// Store keeps the most recently visited pages, newest first.
type Store struct {
	mu        sync.RWMutex
	items     map[string][]Item // keyed by storefront
	maxItems  int
	path      string
	lastError error
}

// NewStore creates a store persisted at <cacheDir>/recents.json.
func NewStore(cacheDir string) *Store {
	s := &Store{
		items:    make(map[string][]Item),
		maxItems: DefaultMaxItems,
		path:     filepath.Join(cacheDir, "recents.json"),
	}
	s.load()
	return s
}

// Visit records item as the newest visit in its storefront. Revisiting a
// URL moves it to the front.
func (s *Store) Visit(item Item) {
	if item.VisitedAt.IsZero() {
		item.VisitedAt = time.Now()
	}

	s.mu.Lock()
	items := slices.DeleteFunc(slices.Clone(s.items[item.Storefront]), func(e Item) bool {
		return e.URL == item.URL
	})
	items = append([]Item{item}, items...)
	if len(items) > s.maxItems {
		items = items[:s.maxItems]
	}
	s.items[item.Storefront] = items
	snapshot := s.copyItems()
	s.mu.Unlock()

	s.saveSnapshot(snapshot)
}

// Get returns the visits for storefront, newest first. An empty storefront
// returns every visit, newest first.
func (s *Store) Get(storefront string) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if storefront != "" {
		return slices.Clone(s.items[storefront])
	}
	var all []Item
	for _, items := range s.items {
		all = append(all, items...)
	}
	slices.SortStableFunc(all, func(a, b Item) int {
		return b.VisitedAt.Compare(a.VisitedAt)
	})
	return all
}

// Clear forgets the visits for storefront.
func (s *Store) Clear(storefront string) {
	s.mu.Lock()
	delete(s.items, storefront)
	snapshot := s.copyItems()
	s.mu.Unlock()
	s.saveSnapshot(snapshot)
}

// ClearAll forgets every visit.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.items = make(map[string][]Item)
	snapshot := s.copyItems()
	s.mu.Unlock()
	s.saveSnapshot(snapshot)
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// must be called with lock held
func (s *Store) copyItems() map[string][]Item {
	result := make(map[string][]Item, len(s.items))
	for k, v := range s.items {
		result[k] = slices.Clone(v)
	}
	return result
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path) //nolint:gosec // G304: Path is from trusted config
	if err != nil {
		return
	}

	var items map[string][]Item
	if err := json.Unmarshal(data, &items); err != nil || items == nil {
		return
	}
	s.items = items
}

// saveSnapshot writes items to disk. Recents are non-critical, so errors
// are kept for LastError instead of returned.
func (s *Store) saveSnapshot(items map[string][]Item) {
	err := func() error {
		if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
			return err
		}
		data, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(s.path, data, 0600)
	}()

	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
}

// LastError returns the error from the most recent save, if any.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}
