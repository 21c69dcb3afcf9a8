package commands

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/basecamp/storefront/internal/appctx"
	"github.com/basecamp/storefront/internal/browser/memory"
	"github.com/basecamp/storefront/internal/output"
	"github.com/basecamp/storefront/internal/tui/recents"
)

// HistoryEntry is one position in the saved browsing session.
type HistoryEntry struct {
	URL     string `json:"url"`
	Current bool   `json:"current,omitempty"`
}

// RecentPage is a recently visited page.
type RecentPage struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Kind       string    `json:"kind,omitempty"`
	Storefront string    `json:"storefront"`
	VisitedAt  time.Time `json:"visited_at"`
	Ago        string    `json:"ago"`
}

// HistoryResult is the output of the history command.
type HistoryResult struct {
	Session []HistoryEntry `json:"session"`
	SavedAt *time.Time     `json:"saved_at,omitempty"`
	Recents []RecentPage   `json:"recents"`
}

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	var forget bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the saved browsing session and recent pages",
		Long: `Show the history stack saved when browse last quit, and the pages
visited most recently. Recents are limited to --storefront when it is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			sessions := memory.NewSessionStore(app.Config.CacheDir)
			visits := recents.NewStore(app.Config.CacheDir)

			if forget {
				return clearHistory(app, sessions, visits)
			}

			saved, err := sessions.Load()
			if err != nil {
				return err
			}
			result := buildHistory(saved, visits.Get(app.Flags.Storefront), time.Now())

			summary := fmt.Sprintf("%d pages in session, %d recent", len(result.Session), len(result.Recents))
			return app.OK(result,
				output.WithSummary(summary),
				output.WithBreadcrumbs(
					output.Breadcrumb{
						Action:      "resume",
						Cmd:         "storefront browse --resume",
						Description: "Resume the saved session",
					},
					output.Breadcrumb{
						Action:      "clear",
						Cmd:         "storefront history --clear",
						Description: "Forget history",
					},
				),
			)
		},
	}

	cmd.Flags().BoolVar(&forget, "clear", false, "Forget the saved session and recent pages")

	return cmd
}

func buildHistory(saved *memory.Session, visits []recents.Item, now time.Time) HistoryResult {
	result := HistoryResult{
		Session: []HistoryEntry{},
		Recents: make([]RecentPage, 0, len(visits)),
	}
	if saved != nil {
		for i, e := range saved.Entries {
			result.Session = append(result.Session, HistoryEntry{URL: e.URL, Current: i == saved.Index})
		}
		if !saved.SavedAt.IsZero() {
			savedAt := saved.SavedAt
			result.SavedAt = &savedAt
		}
	}
	for _, v := range visits {
		result.Recents = append(result.Recents, RecentPage{
			URL:        v.URL,
			Title:      v.Title,
			Kind:       v.Kind,
			Storefront: v.Storefront,
			VisitedAt:  v.VisitedAt,
			Ago:        humanize.RelTime(v.VisitedAt, now, "ago", "from now"),
		})
	}
	return result
}

func clearHistory(app *appctx.App, sessions *memory.SessionStore, visits *recents.Store) error {
	if err := sessions.Clear(); err != nil {
		return err
	}
	if sf := app.Flags.Storefront; sf != "" {
		visits.Clear(sf)
	} else {
		visits.ClearAll()
	}
	if err := visits.LastError(); err != nil {
		return err
	}
	return app.OK(map[string]string{"status": "cleared"}, output.WithSummary("History cleared"))
}
