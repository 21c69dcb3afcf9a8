package completion

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadMissingReturnsEmpty(t *testing.T) {
	store := NewStore(t.TempDir())

	cache, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, cache.Links)
	assert.Equal(t, CacheVersion, cache.Version)
	assert.True(t, store.IsStale(DefaultMaxAge))
}

func TestStoreUpdateLinks(t *testing.T) {
	store := NewStore(t.TempDir())
	links := []CachedLink{{URL: "/us/app/chess-club/id1", Title: "Chess Club", Storefront: "us"}}

	require.NoError(t, store.UpdateLinks(links))
	assert.Equal(t, links, store.Links())
	assert.False(t, store.IsStale(DefaultMaxAge))
	assert.True(t, store.IsStale(-time.Second))
}

func TestStoreCorruptedCacheReadsEmpty(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, os.WriteFile(store.Path(), []byte("{nope"), 0600))

	cache, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, cache.Links)
}

func TestStoreClear(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Clear(), "clearing a missing cache is fine")

	require.NoError(t, store.UpdateLinks([]CachedLink{{URL: "/us/today"}}))
	require.NoError(t, store.Clear())
	assert.Nil(t, store.Links())
}

func TestNewStoreDefaultDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")
	assert.Equal(t, "/tmp/xdg-cache/storefront", NewStore("").Dir())
}
