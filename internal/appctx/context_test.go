package appctx

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basecamp/storefront/internal/catalog"
	"github.com/basecamp/storefront/internal/config"
	"github.com/basecamp/storefront/internal/intent"
	"github.com/basecamp/storefront/internal/jet"
	"github.com/basecamp/storefront/internal/observability"
	"github.com/basecamp/storefront/internal/output"
)

func newApp(t *testing.T) *App {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	app, err := NewApp(config.Default())
	require.NoError(t, err)
	return app
}

func TestNewApp(t *testing.T) {
	app := newApp(t)

	assert.NotNil(t, app.Auth)
	assert.NotNil(t, app.Output)
	assert.NotNil(t, app.Router)
	assert.NotNil(t, app.Collector)
	assert.NotNil(t, app.Hooks)
	assert.NotNil(t, app.Metrics)
	assert.NotNil(t, app.NavLog)
	assert.IsType(t, &catalog.FixtureSource{}, app.Source)
	assert.Nil(t, app.Breaker)
}

func TestNewAppAPISource(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg := config.Default()
	cfg.PageSource = config.SourceAPI

	app, err := NewApp(cfg)
	require.NoError(t, err)
	assert.IsType(t, &catalog.APISource{}, app.Source)
	assert.NotNil(t, app.Breaker)
}

func TestNewAppUnknownStorefront(t *testing.T) {
	cfg := config.Default()
	cfg.Storefront = "zz"

	_, err := NewApp(cfg)
	require.Error(t, err)
	assert.Equal(t, output.CodeUsage, output.AsError(err).Code)
}

func TestNewAppBadCatalogPath(t *testing.T) {
	cfg := config.Default()
	cfg.CatalogPath = "/does/not/exist.yaml"

	_, err := NewApp(cfg)
	require.Error(t, err)
	assert.NotEmpty(t, output.AsError(err).Hint)
}

func TestNewJetDispatchesPages(t *testing.T) {
	app := newApp(t)
	j := app.NewJet(nil)

	route := j.RouteURL(context.Background(), "/us/app/chess-club/id1")
	require.NotNil(t, route)
	p, err := jet.DispatchPage(context.Background(), j, route.Intent)
	require.NoError(t, err)
	assert.Equal(t, "Chess Club", p.Title)
}

func TestNewJetRecordsPrefetchHits(t *testing.T) {
	app := newApp(t)
	prefetched := jet.NewPrefetched()
	dest := intent.GroupingPageIntent{Locale: intent.Locale{Storefront: "us", Language: "en-US"}, Name: "today"}
	require.NoError(t, prefetched.Add(dest, &intent.Page{Title: "From server"}))

	j := app.NewJet(prefetched)
	p, err := jet.DispatchPage(context.Background(), j, dest)
	require.NoError(t, err)
	assert.Equal(t, "From server", p.Title)
	assert.Equal(t, 1, app.Collector.Summary().PrefetchHits)
}

func TestWithAppAndFromContext(t *testing.T) {
	app := newApp(t)
	ctx := WithApp(context.Background(), app)
	assert.Same(t, app, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}

func TestApplyFlagsVerbose(t *testing.T) {
	t.Setenv(DebugEnv, "")
	app := newApp(t)
	app.Flags.Verbose = 2
	app.ApplyFlags()
	assert.Equal(t, 2, app.Hooks.Level())
}

func TestVerboseLevelFromEnv(t *testing.T) {
	tests := []struct {
		env   string
		flags int
		want  int
	}{
		{"", 0, 0},
		{"1", 0, 1},
		{"1", 2, 2},
		{"true", 0, 2},
		{"nonsense", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv(DebugEnv, tt.env)
			app := &App{Flags: GlobalFlags{Verbose: tt.flags}}
			assert.Equal(t, tt.want, app.verboseLevel())
		})
	}
}

func TestOverrides(t *testing.T) {
	f := GlobalFlags{Source: "api", Storefront: "gb", Language: "en-GB", Verbose: 1}
	o := f.Overrides()
	assert.Equal(t, "api", o.PageSource)
	assert.Equal(t, "gb", o.Storefront)
	assert.Equal(t, "en-GB", o.Language)
	assert.True(t, o.Verbose)
}

func TestIsInteractiveMachineModes(t *testing.T) {
	for _, flags := range []GlobalFlags{{JSON: true}, {Quiet: true}, {JQ: ".title"}} {
		app := &App{Flags: flags}
		assert.False(t, app.IsInteractive())
	}
}

func TestPrintStats(t *testing.T) {
	app := &App{}
	var buf bytes.Buffer
	start := time.Now()
	app.printStats(&buf, &observability.SessionMetrics{
		StartTime:        start,
		EndTime:          start.Add(250 * time.Millisecond),
		TotalNavigations: 3,
		TotalRequests:    1,
		PrefetchHits:     1,
		FailedNavs:       1,
	})
	assert.Equal(t, "\nStats: 250ms | 3 navigations | 1 request | 1 prefetched | 1 failed\n", buf.String())
}

func TestOKIncludesStats(t *testing.T) {
	app := newApp(t)
	var buf bytes.Buffer
	app.Output = output.New(output.Options{Format: output.FormatJSON, Writer: &buf})
	app.Flags.Stats = true

	require.NoError(t, app.OK(map[string]string{"title": "Today"}))
	assert.Contains(t, buf.String(), `"stats"`)
	assert.Contains(t, buf.String(), `"title": "Today"`)
}
