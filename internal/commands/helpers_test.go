package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/basecamp/storefront/internal/appctx"
	"github.com/basecamp/storefront/internal/browser/memory"
	"github.com/basecamp/storefront/internal/completion"
	"github.com/basecamp/storefront/internal/config"
	"github.com/basecamp/storefront/internal/intent"
	"github.com/basecamp/storefront/internal/resilience"
	"github.com/basecamp/storefront/internal/tui"
	"github.com/basecamp/storefront/internal/tui/recents"
)

func TestStartURL(t *testing.T) {
	assert.Equal(t, "/gb/games", startURL("gb", "games", ""))
	assert.Equal(t, "/us/search?term=chess+club", startURL("us", "today", "chess club"))
}

func TestPageSummary(t *testing.T) {
	p := &intent.Page{Title: "Today"}
	assert.Equal(t, "Today", pageSummary(p))

	p.Shelves = []intent.Shelf{{Items: []intent.Lockup{{Title: "A"}}}}
	assert.Equal(t, "Today (1 link)", pageSummary(p))

	p.Shelves = append(p.Shelves, intent.Shelf{Items: []intent.Lockup{{Title: "B"}, {Title: "C"}}})
	assert.Equal(t, "Today (3 links)", pageSummary(p))
}

func TestLinkBreadcrumbsSkipsLinksWithoutURL(t *testing.T) {
	p := &intent.Page{Shelves: []intent.Shelf{{Items: []intent.Lockup{
		{Title: "No URL"},
		{Title: "One", Action: intent.FlowAction{PageURL: "/us/app/id1"}},
		{Title: "Two", Action: intent.FlowAction{PageURL: "/us/app/id2"}},
		{Title: "Three", Action: intent.FlowAction{PageURL: "/us/app/id3"}},
		{Title: "Four", Action: intent.FlowAction{PageURL: "/us/app/id4"}},
	}}}}

	crumbs := linkBreadcrumbs(p)
	assert.Len(t, crumbs, 3)
	assert.Equal(t, "One", crumbs[0].Description)
	assert.Equal(t, `storefront page "/us/app/id1"`, crumbs[0].Cmd)
}

func TestBuildHistory(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	saved := &memory.Session{
		Entries: []memory.Entry{{URL: "/us/today"}, {URL: "/us/games"}, {URL: "/us/apps"}},
		Index:   1,
		SavedAt: now.Add(-time.Minute),
	}
	visits := []recents.Item{{URL: "/us/games", Title: "Games", Storefront: "us", VisitedAt: now.Add(-3 * time.Minute)}}

	got := buildHistory(saved, visits, now)
	assert.Len(t, got.Session, 3)
	assert.False(t, got.Session[0].Current)
	assert.True(t, got.Session[1].Current)
	if assert.NotNil(t, got.SavedAt) {
		assert.Equal(t, saved.SavedAt, *got.SavedAt)
	}
	assert.Equal(t, "3 minutes ago", got.Recents[0].Ago)
}

func TestBuildHistoryWithoutSession(t *testing.T) {
	got := buildHistory(nil, nil, time.Now())
	assert.NotNil(t, got.Session)
	assert.NotNil(t, got.Recents)
	assert.Nil(t, got.SavedAt)
}

func TestSummarizeChecks(t *testing.T) {
	result := summarizeChecks([]Check{
		{Status: checkPass}, {Status: checkPass}, {Status: checkWarn}, {Status: checkSkip},
	})
	assert.Equal(t, "2 passed, 1 warning, 1 skipped", result.Summary())

	result = summarizeChecks([]Check{{Status: checkPass}, {Status: checkSkip}})
	assert.Equal(t, "All 1 checks passed, 1 skipped", result.Summary())
}

func TestDoctorBreadcrumbsDeduplicate(t *testing.T) {
	crumbs := buildDoctorBreadcrumbs([]Check{
		{Name: "Token", Status: checkFail},
		{Name: "Global config", Status: checkFail},
		{Name: "Cache directory", Status: checkFail},
		{Name: "Credential storage", Status: checkWarn},
	})
	assert.Len(t, crumbs, 2)
	assert.Equal(t, "storefront auth token set", crumbs[0].Cmd)
	assert.Equal(t, "storefront config show", crumbs[1].Cmd)
}

func TestCheckBreaker(t *testing.T) {
	cfg := config.Default()
	cfg.PageSource = config.SourceAPI
	cb := resilience.NewCircuitBreaker(resilience.NewStore(t.TempDir()), cfg.APIURL, resilience.Config{FailureThreshold: 1})
	app := &appctx.App{Config: cfg, Breaker: cb}

	assert.Equal(t, checkPass, checkBreaker(app).Status)

	_ = cb.RecordFailure()
	check := checkBreaker(app)
	assert.Equal(t, checkFail, check.Status)
	assert.Contains(t, check.Message, "from now")
	assert.NotEmpty(t, check.Hint)
}

func TestPickerItems(t *testing.T) {
	visits := make([]recents.Item, maxPickerRecents+2)
	for i := range visits {
		visits[i] = recents.Item{URL: "/us/app/x/id" + string(rune('a'+i)), Storefront: "us"}
	}
	visits[0].Title = "Chess Club"

	recent, cached := pickerItems(visits, []completion.CachedLink{
		{URL: "/gb/games", Title: "Games", Storefront: "gb"},
	})

	assert.Len(t, recent, maxPickerRecents)
	assert.Equal(t, "Chess Club", recent[0].Title)
	assert.Equal(t, visits[1].URL, recent[1].Title, "untitled pages fall back to their URL")
	assert.Equal(t, []tui.PickerItem{{ID: "/gb/games", Title: "Games", Description: "gb"}}, cached)
}
