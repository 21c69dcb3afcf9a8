package catalog

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basecamp/storefront/internal/intent"
	"github.com/basecamp/storefront/internal/jet"
	"github.com/basecamp/storefront/internal/output"
	"github.com/basecamp/storefront/internal/routing"
)

var us = intent.Locale{Storefront: "us", Language: "en-US"}

func newRouter(t *testing.T) *routing.Router {
	t.Helper()
	r, err := routing.New(nil, "us")
	require.NoError(t, err)
	return r
}

func newFixture(t *testing.T, opts ...FixtureOption) *FixtureSource {
	t.Helper()
	c, err := LoadCatalog("")
	require.NoError(t, err)
	s, err := NewFixtureSource(c, newRouter(t), opts...)
	require.NoError(t, err)
	return s
}

func titles(items []intent.Lockup) []string {
	out := make([]string, len(items))
	for i, l := range items {
		out[i] = l.Title
	}
	return out
}

func TestFixtureGrouping(t *testing.T) {
	p, err := newFixture(t).Page(context.Background(), intent.GroupingPageIntent{Locale: us, Name: "today"})
	require.NoError(t, err)

	assert.Equal(t, intent.PageGrouping, p.Kind)
	assert.Equal(t, "Today", p.Title)
	assert.Equal(t, "/us/today", p.CanonicalURL)
	require.Len(t, p.Shelves, 2)
	assert.Equal(t, []string{"Chess Club", "Listmaker"}, titles(p.Shelves[0].Items))

	rooms := p.Shelves[1].Items
	require.Len(t, rooms, 3)
	assert.True(t, rooms[0].Action.IsModal(), "generic rooms open modally")
	assert.False(t, rooms[1].Action.IsModal())
	assert.Equal(t, intent.RoomPageIntent{Locale: us, ID: "id200"}, rooms[0].Action.Destination)

	require.NotNil(t, p.Metrics)
	assert.Equal(t, "today", p.Metrics.PageID)
	assert.Equal(t, "us", p.Metrics.Fields["storefront"])
}

func TestFixtureProduct(t *testing.T) {
	p, err := newFixture(t).Page(context.Background(), intent.ProductPageIntent{Locale: us, ID: "id1"})
	require.NoError(t, err)

	assert.Equal(t, intent.PageProduct, p.Kind)
	assert.Equal(t, "Chess Club", p.Title)
	assert.Equal(t, "/us/app/chess-club/id1", p.CanonicalURL)
	assert.Contains(t, p.Description, "Daily puzzles")
	require.Len(t, p.Shelves, 2)
	assert.Equal(t, "Developer", p.Shelves[0].Title)
	assert.Equal(t, "/us/developer/knight-moves/id100", p.Shelves[0].Items[0].Action.PageURL)
	assert.Equal(t, "More by Knight Moves Ltd", p.Shelves[1].Title)
	assert.Equal(t, []string{"Go Board"}, titles(p.Shelves[1].Items))
}

func TestFixtureDeveloper(t *testing.T) {
	p, err := newFixture(t).Page(context.Background(), intent.DeveloperPageIntent{Locale: us, ID: "id102"})
	require.NoError(t, err)

	assert.Equal(t, intent.PageDeveloper, p.Kind)
	assert.Equal(t, "/us/developer/starlight-arcade/id102", p.CanonicalURL)
	assert.Equal(t, []string{"Comet Chase", "Pixel Pinball"}, titles(p.Shelves[0].Items))
}

func TestFixtureSearch(t *testing.T) {
	s := newFixture(t)
	search := func(term string) *intent.Page {
		t.Helper()
		p, err := s.Page(context.Background(), intent.SearchResultsPageIntent{Locale: us, Term: term})
		require.NoError(t, err)
		return p
	}

	p := search("CHESS")
	assert.Equal(t, intent.PageSearch, p.Kind)
	assert.Equal(t, "/us/search?term=CHESS", p.CanonicalURL)
	require.Len(t, p.Shelves, 1)
	assert.Equal(t, []string{"Chess Club"}, titles(p.Shelves[0].Items))

	p = search("knight")
	require.Len(t, p.Shelves, 2)
	assert.Equal(t, []string{"Chess Club", "Go Board"}, titles(p.Shelves[0].Items))
	assert.Equal(t, []string{"Knight Moves Ltd"}, titles(p.Shelves[1].Items))

	assert.Empty(t, search("   ").Shelves)
	assert.Empty(t, search("zzz").Shelves)
}

func TestFixtureRoomLayouts(t *testing.T) {
	s := newFixture(t)

	generic, err := s.Page(context.Background(), intent.RoomPageIntent{Locale: us, ID: "id200"})
	require.NoError(t, err)
	assert.True(t, generic.IsGeneric())

	room, err := s.Page(context.Background(), intent.RoomPageIntent{Locale: us, ID: "id201"})
	require.NoError(t, err)
	assert.Equal(t, intent.PageRoom, room.Kind)
	assert.False(t, room.IsGeneric())
}

func TestFixtureAccount(t *testing.T) {
	p, err := newFixture(t).Page(context.Background(), intent.AccountPageIntent{Locale: us})
	require.NoError(t, err)
	assert.Equal(t, "/us/account", p.CanonicalURL)
	assert.Contains(t, p.Description, "US")
}

func TestFixtureNotFound(t *testing.T) {
	s := newFixture(t)
	for _, i := range []intent.Intent{
		intent.GroupingPageIntent{Locale: us, Name: "movies"},
		intent.ProductPageIntent{Locale: us, ID: "id999"},
		intent.DeveloperPageIntent{Locale: us, ID: "id999"},
		intent.RoomPageIntent{Locale: us, ID: "id999"},
	} {
		t.Run(string(i.Kind()), func(t *testing.T) {
			_, err := s.Page(context.Background(), i)
			require.Error(t, err)
			assert.Equal(t, http.StatusNotFound, output.AsError(err).StatusCode())
		})
	}
}

func TestFixtureUnknownStorefront(t *testing.T) {
	_, err := newFixture(t).Page(context.Background(), intent.ProductPageIntent{Locale: intent.Locale{Storefront: "zz"}, ID: "id1"})
	assert.Error(t, err)
}

func TestFixtureLatencyHonorsContext(t *testing.T) {
	s := newFixture(t, WithLatency(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Page(ctx, intent.ProductPageIntent{Locale: us, ID: "id1"})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestFixtureLinksRouteBack(t *testing.T) {
	s := newFixture(t)
	r := newRouter(t)

	for _, tab := range routing.Tabs {
		p, err := s.Page(context.Background(), intent.GroupingPageIntent{Locale: us, Name: tab})
		require.NoError(t, err)
		for _, l := range p.Links() {
			route, err := r.Route(l.Action.PageURL)
			require.NoError(t, err, l.Action.PageURL)
			assert.Equal(t, l.Action.Destination, route.Intent, l.Action.PageURL)

			dest, err := s.Page(context.Background(), l.Action.Destination)
			require.NoError(t, err)
			assert.NotEmpty(t, dest.CanonicalURL)
		}
	}
}

func TestParseCatalogValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown developer", "apps:\n  - id: id1\n    developer: id9\n"},
		{"unknown app in room", "rooms:\n  - id: id1\n    apps: [id2]\n"},
		{"unknown room in grouping", "groupings:\n  - name: today\n    shelves:\n      - rooms: [id3]\n"},
		{"bad layout", "rooms:\n  - id: id1\n    layout: carousel\n"},
		{"not yaml", "apps: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestRegister(t *testing.T) {
	j := jet.New(jet.Options{})
	Register(j.Intents(), newFixture(t))

	p, err := jet.DispatchPage(context.Background(), j, intent.ProductPageIntent{Locale: us, ID: "id3"})
	require.NoError(t, err)
	assert.Equal(t, "Listmaker", p.Title)

	_, err = jet.DispatchPage(context.Background(), j, intent.ProductPageIntent{Locale: us, ID: "id404"})
	assert.Equal(t, output.CodeNotFound, output.AsError(err).Code)

	assert.ElementsMatch(t, PageKinds, j.Intents().Kinds())
}
