package recents

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func visit(url, title, storefront string) Item {
	return Item{URL: url, Title: title, Kind: "product", Storefront: storefront}
}

func TestStore_VisitAndGet(t *testing.T) {
	store := NewStore(t.TempDir())

	store.Visit(visit("/us/app/chess-club/id1", "Chess Club", "us"))

	items := store.Get("us")
	require.Len(t, items, 1)
	assert.Equal(t, "/us/app/chess-club/id1", items[0].URL)
	assert.Equal(t, "Chess Club", items[0].Title)
	assert.False(t, items[0].VisitedAt.IsZero())
}

func TestStore_RevisitMovesToFront(t *testing.T) {
	store := NewStore(t.TempDir())

	store.Visit(visit("/us/today", "Today", "us"))
	store.Visit(visit("/us/games", "Games", "us"))
	store.Visit(visit("/us/today", "Today (updated)", "us"))

	items := store.Get("us")
	require.Len(t, items, 2, "should deduplicate by URL")
	assert.Equal(t, "Today (updated)", items[0].Title)
	assert.Equal(t, "Games", items[1].Title)
}

func TestStore_MaxItems(t *testing.T) {
	store := NewStore(t.TempDir())

	for i := 0; i < DefaultMaxItems+5; i++ {
		store.Visit(visit(fmt.Sprintf("/us/app/id%d", i), "", "us"))
	}

	items := store.Get("us")
	require.Len(t, items, DefaultMaxItems)
	assert.Equal(t, fmt.Sprintf("/us/app/id%d", DefaultMaxItems+4), items[0].URL)
}

func TestStore_SeparateStorefronts(t *testing.T) {
	store := NewStore(t.TempDir())
	base := time.Now()

	us := visit("/us/today", "Today", "us")
	us.VisitedAt = base
	fr := visit("/fr/today", "Aujourd'hui", "fr")
	fr.VisitedAt = base.Add(time.Minute)
	store.Visit(us)
	store.Visit(fr)

	assert.Len(t, store.Get("us"), 1)
	assert.Len(t, store.Get("fr"), 1)

	all := store.Get("")
	require.Len(t, all, 2)
	assert.Equal(t, "fr", all[0].Storefront, "newest first across storefronts")
}

func TestStore_Clear(t *testing.T) {
	store := NewStore(t.TempDir())
	store.Visit(visit("/us/today", "Today", "us"))
	store.Visit(visit("/fr/today", "Aujourd'hui", "fr"))

	store.Clear("us")
	assert.Empty(t, store.Get("us"))
	assert.Len(t, store.Get("fr"), 1)

	store.ClearAll()
	assert.Empty(t, store.Get(""))
}

func TestStore_Persistence(t *testing.T) {
	dir := t.TempDir()

	NewStore(dir).Visit(visit("/us/room/id200", "Games for Thinkers", "us"))

	items := NewStore(dir).Get("us")
	require.Len(t, items, 1)
	assert.Equal(t, "Games for Thinkers", items[0].Title)

	_, err := os.Stat(filepath.Join(dir, "recents.json"))
	assert.NoError(t, err)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	store := NewStore(t.TempDir())
	store.Visit(visit("/us/today", "Original", "us"))

	items := store.Get("us")
	items[0].Title = "Modified"

	assert.Equal(t, "Original", store.Get("us")[0].Title)
}

func TestStore_LastError(t *testing.T) {
	store := NewStore(t.TempDir())
	assert.NoError(t, store.LastError())

	store.Visit(visit("/us/today", "Today", "us"))
	assert.NoError(t, store.LastError())

	blocked := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocked, nil, 0600))
	broken := NewStore(filepath.Join(blocked, "sub"))
	broken.Visit(visit("/us/today", "Today", "us"))
	assert.Error(t, broken.LastError())
}

func TestStore_HandlesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recents.json"), []byte("not valid json"), 0600))

	assert.Empty(t, NewStore(dir).Get(""), "should start fresh on corrupt file")
}
