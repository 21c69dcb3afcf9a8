package commands

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/basecamp/storefront/internal/appctx"
	"github.com/basecamp/storefront/internal/browser/memory"
	"github.com/basecamp/storefront/internal/completion"
	"github.com/basecamp/storefront/internal/config"
	"github.com/basecamp/storefront/internal/output"
	"github.com/basecamp/storefront/internal/routing"
	"github.com/basecamp/storefront/internal/tui"
	"github.com/basecamp/storefront/internal/tui/browse"
	"github.com/basecamp/storefront/internal/tui/recents"
)

// browseLogFile collects log output while the browser owns the screen.
const browseLogFile = "browse.log"

// NewBrowseCmd creates the browse command.
func NewBrowseCmd() *cobra.Command {
	var resume, pick bool

	cmd := &cobra.Command{
		Use:   "browse [url]",
		Short: "Browse the storefront in the terminal",
		Long: `Open a full-screen storefront browser.

Without a URL you are asked for a storefront, a tab and an optional search.
Use --resume to pick up the history saved when the last session quit, or
--pick to choose among recent and cached pages.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completion.NewCompleter(nil).URLCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}
			if !app.IsInteractive() {
				return output.ErrUsageHint("browse needs an interactive terminal",
					"Use storefront page <url> --json for machine output")
			}
			if pick && len(args) > 0 {
				return output.ErrUsage("--pick and a URL cannot be combined")
			}

			store := memory.NewSessionStore(app.Config.CacheDir)
			b, err := startBrowser(app, store, args, resume, pick)
			if err != nil {
				return err
			}
			if b == nil {
				return nil
			}
			return runBrowser(cmd.Context(), app, b, store)
		},
	}

	cmd.Flags().BoolVar(&resume, "resume", false, "Resume the last saved session")
	cmd.Flags().BoolVar(&pick, "pick", false, "Pick the start page from recent and cached pages")

	return cmd
}

// startBrowser decides where the session starts. It returns nil when the
// user cancels the start page prompt.
func startBrowser(app *appctx.App, store *memory.SessionStore, args []string, resume, pick bool) (*memory.Browser, error) {
	if resume {
		saved, err := store.Load()
		if err != nil {
			return nil, err
		}
		if saved != nil {
			b, err := memory.Restore(saved)
			if err == nil {
				return b, nil
			}
			app.Logger.Warn("discarding saved session", "error", err)
		}
	}

	if len(args) > 0 {
		return memory.New(args[0]), nil
	}

	if pick {
		start, err := pickStartPage(app.Config.CacheDir)
		if err != nil || start == "" {
			return nil, err
		}
		return memory.New(start), nil
	}

	start, err := askStartPage(app.Router)
	if errors.Is(err, huh.ErrUserAborted) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return memory.New(start), nil
}

// askStartPage builds a start URL from the storefront, tab and search the
// user picks.
func askStartPage(router *routing.Router) (string, error) {
	ids := storefrontIDs(router)
	langs := router.Storefronts()
	storefronts := make([]tui.SelectOption, len(ids))
	for i, id := range ids {
		storefronts[i] = tui.SelectOption{Value: id, Label: id + " (" + langs[id] + ")"}
	}
	tabs := make([]tui.SelectOption, len(routing.Tabs))
	for i, tab := range routing.Tabs {
		tabs[i] = tui.SelectOption{Value: tab, Label: tab}
	}

	sf, tab, term, err := tui.StartPage(storefronts, tabs)
	if err != nil {
		return "", err
	}
	return startURL(sf, tab, term), nil
}

// maxPickerRecents caps the recent pages listed above cached links.
const maxPickerRecents = 10

func pickStartPage(cacheDir string) (string, error) {
	recent, links := pickerItems(recents.NewStore(cacheDir).Get(""), completion.NewStore(cacheDir).Links())
	if len(recent)+len(links) == 0 {
		return "", output.ErrUsageHint("No pages to pick from yet",
			"Run storefront completion refresh, or browse a URL first")
	}

	item, err := tui.NewPicker(links,
		tui.WithPickerTitle("Start browsing at"),
		tui.WithRecentItems(recent),
	).Run()
	if err != nil || item == nil {
		return "", err
	}
	return item.ID, nil
}

// pickerItems turns recents and cached links into picker rows.
func pickerItems(visits []recents.Item, links []completion.CachedLink) (recent, cached []tui.PickerItem) {
	for _, v := range visits {
		if len(recent) == maxPickerRecents {
			break
		}
		recent = append(recent, tui.PickerItem{ID: v.URL, Title: cmp.Or(v.Title, v.URL), Description: v.Storefront})
	}
	for _, l := range links {
		cached = append(cached, tui.PickerItem{ID: l.URL, Title: cmp.Or(l.Title, l.URL), Description: l.Storefront})
	}
	return recent, cached
}

func startURL(storefront, tab, term string) string {
	if term != "" {
		return "/" + storefront + "/search?term=" + url.QueryEscape(term)
	}
	return "/" + storefront + "/" + tab
}

func runBrowser(ctx context.Context, app *appctx.App, b *memory.Browser, store *memory.SessionStore) error {
	logger, closeLog, err := browseLogger(app.Config.CacheDir, app.Config.Verbose)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Stderr traces would draw over the screen.
	level := app.Hooks.Level()
	app.Hooks.SetLevel(0)
	defer app.Hooks.SetLevel(level)

	session, err := browse.NewSession(browse.SessionOptions{
		Jet:             app.NewJet(nil),
		Browser:         b,
		HistoryCapacity: app.Config.HistoryCapacity,
		LoadingTimeout:  app.Config.LoadingTimeout,
		Logger:          logger,
		Observer:        app.Hooks,
		Recents:         recents.NewStore(app.Config.CacheDir),
	})
	if err != nil {
		return err
	}
	defer session.Close()

	watchConfig(ctx, app, session, logger)
	completion.NewRefresher(completion.NewStore(app.Config.CacheDir), app.NewJet(nil)).
		RefreshIfStale(completion.DefaultMaxAge, storefrontIDs(app.Router))

	model := browse.New(ctx, session, browse.Options{
		StartURL:   b.Location(),
		Styles:     tui.NewStyles(),
		NavLog:     app.NavLog,
		Storefront: app.Config.Storefront,
	})
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}

	if err := store.Save(session.Snapshot()); err != nil {
		logger.Warn("session not saved", "error", err)
	}
	return nil
}

// watchConfig applies history_capacity edits to the running session.
func watchConfig(ctx context.Context, app *appctx.App, session *browse.Session, logger *slog.Logger) {
	w, err := config.NewWatcher(app.Flags.Overrides(), logger)
	if err != nil {
		logger.Debug("config watch disabled", "error", err)
		return
	}
	go func() {
		defer w.Close()
		w.Run(ctx, func(cfg *config.Config) {
			if cfg.HistoryCapacity == app.Config.HistoryCapacity {
				return
			}
			if err := session.SetHistoryCapacity(cfg.HistoryCapacity); err != nil {
				logger.Warn("history capacity not applied", "error", err)
				return
			}
			logger.Info("history capacity changed", "capacity", cfg.HistoryCapacity)
			app.Config.HistoryCapacity = cfg.HistoryCapacity
		})
	}()
}

// browseLogger writes to a file in the cache dir so log lines never draw
// over the full-screen UI.
func browseLogger(cacheDir string, verbose bool) (*slog.Logger, func(), error) {
	if err := os.MkdirAll(cacheDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("create cache dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(cacheDir, browseLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { _ = f.Close() }, nil
}
