package browse

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basecamp/storefront/internal/browser/memory"
	"github.com/basecamp/storefront/internal/catalog"
	"github.com/basecamp/storefront/internal/flow"
	"github.com/basecamp/storefront/internal/intent"
	"github.com/basecamp/storefront/internal/jet"
	"github.com/basecamp/storefront/internal/routing"
	"github.com/basecamp/storefront/internal/tui"
	"github.com/basecamp/storefront/internal/tui/recents"
	"github.com/basecamp/storefront/internal/tui/theme"
)

type fixture struct {
	session *Session
	jet     *jet.Jet
	recents *recents.Store
	model   Model
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	router, err := routing.New(nil, "us")
	require.NoError(t, err)
	c, err := catalog.LoadCatalog("")
	require.NoError(t, err)
	src, err := catalog.NewFixtureSource(c, router)
	require.NoError(t, err)

	j := jet.New(jet.Options{})
	router.Register(j.Intents())
	catalog.Register(j.Intents(), src)

	store := recents.NewStore(t.TempDir())
	s, err := NewSession(SessionOptions{
		Jet:            j,
		Browser:        memory.New("/us/today"),
		LoadingTimeout: time.Second,
		Recents:        store,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	m := New(context.Background(), s, Options{
		StartURL:   "/us/today",
		Styles:     tui.NewStylesWithTheme(theme.NoColor()),
		Storefront: "us",
	})
	m = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 40})
	return &fixture{session: s, jet: j, recents: store, model: m}
}

func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model
}

func (f *fixture) next(t *testing.T) tea.Msg {
	t.Helper()
	select {
	case msg := <-f.session.Msgs():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a session message")
		return nil
	}
}

// settle feeds the next update through the model and resolves its page.
func (f *fixture) settle(t *testing.T) {
	t.Helper()
	u, ok := f.next(t).(updateMsg)
	require.True(t, ok, "expected an update")
	f.model = step(t, f.model, u)
	f.model = step(t, f.model, f.model.await(u.Update)())
}

func (f *fixture) open(t *testing.T, url string) {
	t.Helper()
	require.Equal(t, intent.OutcomePerformed, f.session.Open(context.Background(), url))
	f.settle(t)
}

func TestOpenRendersPage(t *testing.T) {
	f := newFixture(t)
	f.open(t, "/us/today")

	require.NotNil(t, f.model.Page())
	assert.Equal(t, "Today", f.model.Page().Title)
	assert.False(t, f.model.Loading())

	view := f.model.View()
	assert.Contains(t, view, "Today")
	assert.Contains(t, view, "Chess Club")
	assert.Contains(t, view, "1/1")

	assert.Equal(t, "Today", f.jet.CurrentPage().Title)
	items := f.recents.Get("us")
	require.Len(t, items, 1)
	assert.Equal(t, "/us/today", items[0].URL)
}

func TestStalePageIsDropped(t *testing.T) {
	f := newFixture(t)
	f.open(t, "/us/today")

	f.model = step(t, f.model, updateMsg{flow.Update{Seq: f.model.latestSeq + 1}})
	f.model = step(t, f.model, pageMsg{seq: f.model.latestSeq - 1, page: &intent.Page{Title: "Stale"}})

	assert.Equal(t, "Today", f.model.Page().Title)
}

func TestLateUpdateDoesNotRewindSeq(t *testing.T) {
	f := newFixture(t)
	f.open(t, "/us/today")
	base := f.model.latestSeq

	f.model = step(t, f.model, updateMsg{flow.Update{Seq: base + 2}})
	require.True(t, f.model.Loading())

	// The popstate update for an earlier navigation arrives second.
	f.model = step(t, f.model, updateMsg{flow.Update{Seq: base + 1, SettledEarly: true}})
	assert.Equal(t, base+2, f.model.latestSeq)
	assert.True(t, f.model.Loading(), "a late update must not clear the spinner")

	f.model = step(t, f.model, pageMsg{seq: base + 1, page: &intent.Page{Title: "Stale"}})
	assert.Equal(t, "Today", f.model.Page().Title)

	f.model = step(t, f.model, pageMsg{seq: base + 2, page: &intent.Page{Title: "Fresh"}})
	assert.Equal(t, "Fresh", f.model.Page().Title)
}

func TestEnterFollowsSelectedLockupAndBackRestores(t *testing.T) {
	f := newFixture(t)
	f.open(t, "/us/today")

	f.model = step(t, f.model, tea.KeyMsg{Type: tea.KeyDown})
	lockup := f.model.lockups[f.model.selected]
	assert.Equal(t, "Listmaker", lockup.Title)

	_, cmd := f.model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	go cmd()
	f.settle(t)
	assert.Equal(t, "Listmaker", f.model.Page().Title)
	pos, total := f.session.Depth()
	assert.Equal(t, 2, pos)
	assert.Equal(t, 2, total)

	go f.session.Back()
	f.settle(t)
	assert.Equal(t, "Today", f.model.Page().Title)
	pos, total = f.session.Depth()
	assert.Equal(t, 1, pos)
	assert.Equal(t, 2, total)
}

func TestModalLockupPresentsOverlay(t *testing.T) {
	f := newFixture(t)
	f.open(t, "/us/today")

	var room intent.Lockup
	for _, l := range f.model.lockups {
		if l.Action.IsModal() {
			room = l
			break
		}
	}
	require.True(t, room.Action.IsModal(), "today has a modal room")

	assert.Equal(t, intent.OutcomePerformed, f.session.Perform(context.Background(), room.Action))
	msg, ok := f.next(t).(modalMsg)
	require.True(t, ok, "expected a modal")
	f.model = step(t, f.model, msg)
	require.NotNil(t, f.model.Modal())
	assert.Contains(t, f.model.View(), "esc to close")

	f.model = step(t, f.model, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, f.model.Modal())
	assert.Equal(t, "Today", f.model.Page().Title)
	pos, total := f.session.Depth()
	assert.Equal(t, 1, pos, "modals never touch history")
	assert.Equal(t, 1, total)
}

func TestUnroutableURLShowsNotFound(t *testing.T) {
	f := newFixture(t)
	f.open(t, "/us/today")

	assert.Equal(t, intent.OutcomeUnsupported, f.session.Open(context.Background(), "/nowhere/at/all"))
	f.model = step(t, f.model, f.next(t))

	assert.Error(t, f.model.Err())
	assert.Contains(t, f.model.View(), "Page not found")
}

func TestSearchInputOpensSearchURL(t *testing.T) {
	f := newFixture(t)
	f.open(t, "/us/today")

	f.model = step(t, f.model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	assert.Equal(t, inputSearch, f.model.mode)
	for _, r := range "chess" {
		f.model = step(t, f.model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	_, cmd := f.model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	go cmd()
	f.settle(t)

	require.NotNil(t, f.model.Page())
	assert.Equal(t, intent.PageSearch, f.model.Page().Kind)
	assert.Equal(t, "/us/search?term=chess", f.session.Location())
}

func TestFrameTickStopsWhenIdle(t *testing.T) {
	f := newFixture(t)
	f.model.ticking = true
	next, cmd := f.model.Update(frameMsg{})
	assert.Nil(t, cmd)
	assert.False(t, next.(Model).ticking)
}
