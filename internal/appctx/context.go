// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/basecamp/storefront/internal/api"
	"github.com/basecamp/storefront/internal/auth"
	"github.com/basecamp/storefront/internal/catalog"
	"github.com/basecamp/storefront/internal/config"
	"github.com/basecamp/storefront/internal/jet"
	"github.com/basecamp/storefront/internal/observability"
	"github.com/basecamp/storefront/internal/output"
	"github.com/basecamp/storefront/internal/resilience"
	"github.com/basecamp/storefront/internal/routing"
)

// DebugEnv raises the trace level like repeated -v flags.
const DebugEnv = "STOREFRONT_DEBUG"

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config *config.Config
	Auth   *auth.Manager
	Output *output.Writer
	Logger *slog.Logger
	// Stdout receives command output. ApplyFlags rebuilds Output on it.
	Stdout io.Writer

	// Storefront
	Router *routing.Router
	Source catalog.Source
	// Breaker gates media API requests. Nil for the fixture source.
	Breaker *resilience.CircuitBreaker

	// Observability
	Collector *observability.SessionCollector
	Hooks     *observability.Hooks
	Metrics   *observability.Metrics
	NavLog    *observability.NavigationLog

	// Flags holds the global flag values
	Flags GlobalFlags
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON   bool
	Quiet  bool
	Styled bool
	JQ     string

	// Storefront flags
	Source      string
	CatalogPath string
	Storefront  string
	Language    string

	// Behavior flags
	Verbose  int // 0=off, 1=navigations, 2=navigations+requests (stacks with -v -v or -vv)
	Stats    bool
	CacheDir string
}

// Overrides converts the flags that shadow config keys.
func (f GlobalFlags) Overrides() config.FlagOverrides {
	return config.FlagOverrides{
		PageSource:  f.Source,
		CatalogPath: f.CatalogPath,
		Storefront:  f.Storefront,
		Language:    f.Language,
		CacheDir:    f.CacheDir,
		Verbose:     f.Verbose > 0,
	}
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config) (*App, error) {
	logger := newLogger(os.Stderr, cfg.Verbose)

	// The collector always runs to gather stats; hooks control trace
	// verbosity. ApplyFlags sets the actual level from -v flags.
	collector := observability.NewSessionCollector()
	metrics := observability.NewMetrics()
	navLog := observability.NewNavigationLog()
	hooks := observability.NewHooks(0, collector, observability.NewTraceWriter(),
		observability.WithMetrics(metrics),
		observability.WithNavigationLog(navLog))

	router, err := routing.New(nil, cfg.Storefront)
	if err != nil {
		return nil, output.ErrUsageHint(err.Error(), "Check the storefront setting with: storefront config show")
	}

	authMgr := auth.NewManager(cfg)
	var breaker *resilience.CircuitBreaker
	if cfg.PageSource == config.SourceAPI {
		store := resilience.NewStore(filepath.Join(cfg.CacheDir, resilience.DirName))
		breaker = resilience.NewCircuitBreaker(store, config.NormalizeBaseURL(cfg.APIURL), resilience.Config{})
	}
	source, err := newSource(cfg, router, authMgr, breaker, hooks, logger)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:    cfg,
		Auth:      authMgr,
		Logger:    logger,
		Stdout:    os.Stdout,
		Router:    router,
		Source:    source,
		Breaker:   breaker,
		Collector: collector,
		Hooks:     hooks,
		Metrics:   metrics,
		NavLog:    navLog,
		Output: output.New(output.Options{
			Format: output.FormatAuto,
			Writer: os.Stdout,
		}),
	}, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newSource(cfg *config.Config, router *routing.Router, tokens api.TokenSource, breaker *resilience.CircuitBreaker, hooks *observability.Hooks, logger *slog.Logger) (catalog.Source, error) {
	switch cfg.PageSource {
	case config.SourceAPI:
		client := api.NewClient(config.NormalizeBaseURL(cfg.APIURL), tokens,
			api.WithHooks(hooks),
			api.WithLogger(logger),
			api.WithBreaker(breaker))
		return catalog.NewAPISource(client, router), nil
	default:
		c, err := catalog.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, output.ErrUsageHint(err.Error(), "Check catalog_path, or unset it to use the built-in catalog")
		}
		src, err := catalog.NewFixtureSource(c, router, catalog.WithLatency(cfg.FixtureLatency))
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}

// NewJet creates a Jet with the router and page source registered and the
// app's hooks recording dispatches.
func (a *App) NewJet(prefetched *jet.Prefetched) *jet.Jet {
	j := jet.New(jet.Options{
		Logger:     a.Logger,
		Recorder:   a.Hooks,
		Prefetched: prefetched,
		Tracer:     observability.Tracer(),
	})
	a.Router.Register(j.Intents())
	catalog.Register(j.Intents(), a.Source)
	return j
}

// ApplyFlags applies global flag values to the app configuration.
func (a *App) ApplyFlags() {
	format := output.FormatAuto
	switch {
	case a.Flags.Quiet:
		format = output.FormatQuiet
	case a.Flags.JSON:
		format = output.FormatJSON
	case a.Flags.Styled:
		format = output.FormatStyled
	}
	if a.Stdout == nil {
		a.Stdout = os.Stdout
	}
	a.Output = output.New(output.Options{
		Format:  format,
		Writer:  a.Stdout,
		JQ:      a.Flags.JQ,
		Verbose: a.Flags.Verbose > 0,
	})

	a.Hooks.SetLevel(a.verboseLevel())
	if a.verboseLevel() > 0 {
		a.Logger = newLogger(os.Stderr, true)
	}
}

// verboseLevel combines -v flags with STOREFRONT_DEBUG, which can be "1",
// "2", or "true" (treated as 2).
func (a *App) verboseLevel() int {
	level := a.Flags.Verbose
	if debugEnv := os.Getenv(DebugEnv); debugEnv != "" {
		if n, err := strconv.Atoi(debugEnv); err == nil {
			level = max(level, n)
		} else if debugEnv == "true" {
			level = 2
		}
	}
	return level
}

// OK outputs a success response, including stats if --stats is set.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	if a.Flags.Stats && a.Collector != nil {
		opts = append(opts, output.WithMeta("stats", a.Collector.Summary()))
	}
	return a.Output.OK(data, opts...)
}

// Err outputs an error response, printing stats to stderr if --stats is set.
func (a *App) Err(err error) error {
	if outputErr := a.Output.Err(err); outputErr != nil {
		return outputErr
	}
	if a.Flags.Stats && a.Collector != nil && !a.isMachineOutput() {
		stats := a.Collector.Summary()
		a.printStats(os.Stderr, &stats)
	}
	return nil
}

func (a *App) isMachineOutput() bool {
	return a.Flags.Quiet || a.Flags.JQ != ""
}

// printStats writes a compact stats line.
func (a *App) printStats(w io.Writer, stats *observability.SessionMetrics) {
	if stats == nil {
		return
	}

	var parts []string

	duration := stats.EndTime.Sub(stats.StartTime)
	if duration < time.Second {
		parts = append(parts, fmt.Sprintf("%dms", duration.Milliseconds()))
	} else {
		parts = append(parts, fmt.Sprintf("%.1fs", duration.Seconds()))
	}

	parts = appendCount(parts, stats.TotalNavigations, "navigation", "navigations")
	parts = appendCount(parts, stats.TotalRequests, "request", "requests")
	parts = appendCount(parts, stats.TotalRetries, "retry", "retries")
	if stats.PrefetchHits > 0 {
		parts = append(parts, fmt.Sprintf("%d prefetched", stats.PrefetchHits))
	}
	if stats.FailedNavs > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", stats.FailedNavs))
	}

	fmt.Fprintf(w, "\nStats: %s\n", strings.Join(parts, " | "))
}

func appendCount(parts []string, n int, one, many string) []string {
	switch {
	case n == 1:
		return append(parts, "1 "+one)
	case n > 1:
		return append(parts, fmt.Sprintf("%d %s", n, many))
	}
	return parts
}

// IsInteractive returns true if the terminal supports interactive TUI.
func (a *App) IsInteractive() bool {
	if a.Flags.JSON || a.Flags.Quiet || a.Flags.JQ != "" {
		return false
	}
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
