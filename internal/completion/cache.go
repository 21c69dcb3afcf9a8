// Package completion provides tab completion for storefront URLs. It keeps
// a file-based cache of page links so shell completions never wait on a
// page source.
package completion

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CachedLink is a page URL seen on a tab page.
type CachedLink struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Storefront string `json:"storefront"`
}

// Cache stores completion data with metadata for staleness detection.
type Cache struct {
	Links          []CachedLink `json:"links,omitempty"`
	LinksUpdatedAt time.Time    `json:"links_updated_at,omitempty"`
	Version        int          `json:"version"`
}

const (
	// CacheVersion is the current cache schema version.
	CacheVersion = 1

	// DefaultMaxAge is the default cache staleness threshold.
	DefaultMaxAge = time.Hour

	// CacheFileName is the cache file name inside the cache dir.
	CacheFileName = "completion.json"
)

// Store handles reading and writing the completion cache.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a new cache store.
// If dir is empty, it uses the default location (~/.cache/storefront/).
func NewStore(dir string) *Store {
	if dir == "" {
		dir = defaultCacheDir()
	}
	return &Store{dir: dir}
}

// defaultCacheDir matches the default in internal/config.
func defaultCacheDir() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "storefront")
}

// Dir returns the cache directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the full path to the cache file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, CacheFileName)
}

// Load reads the cache from disk.
// Returns an empty cache if the file doesn't exist or is invalid.
func (s *Store) Load() (*Cache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadUnsafe()
}

// loadUnsafe reads the cache without locking (caller must hold lock).
func (s *Store) loadUnsafe() (*Cache, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return &Cache{Version: CacheVersion}, nil
		}
		return nil, err
	}

	var cache Cache
	if err := json.Unmarshal(data, &cache); err != nil || cache.Version != CacheVersion {
		return &Cache{Version: CacheVersion}, nil //nolint:nilerr // corrupted or old caches read as empty
	}
	return &cache, nil
}

// saveUnsafe writes the cache without locking (caller must hold lock).
func (s *Store) saveUnsafe(cache *Cache) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}

	cache.Version = CacheVersion

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := s.Path() + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.Path())
}

// UpdateLinks replaces the cached links.
func (s *Store) UpdateLinks(links []CachedLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache := &Cache{Links: links, LinksUpdatedAt: time.Now()}
	return s.saveUnsafe(cache)
}

// IsStale reports whether the links are missing or older than maxAge.
func (s *Store) IsStale(maxAge time.Duration) bool {
	cache, err := s.Load()
	if err != nil || cache.LinksUpdatedAt.IsZero() {
		return true
	}
	return time.Since(cache.LinksUpdatedAt) > maxAge
}

// Clear removes the cache file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.Path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Links returns cached links, or nil if the cache is empty or missing.
func (s *Store) Links() []CachedLink {
	cache, err := s.Load()
	if err != nil {
		return nil
	}
	return cache.Links
}
