package commands

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/basecamp/storefront/internal/appctx"
	"github.com/basecamp/storefront/internal/completion"
	"github.com/basecamp/storefront/internal/intent"
	"github.com/basecamp/storefront/internal/jet"
	"github.com/basecamp/storefront/internal/output"
	"github.com/basecamp/storefront/internal/tui"
)

// NewPageCmd creates the page command.
func NewPageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "page <url>",
		Short: "Fetch the page a URL routes to",
		Long: `Route a storefront URL and dispatch its page intent.

Examples:
  storefront page /us/today
  storefront page /us/app/chess-club/id1 --jq '.shelves[].title'`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.NewCompleter(nil).URLCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			url := args[0]
			j := app.NewJet(nil)
			route := j.RouteURL(cmd.Context(), url)
			if route == nil {
				return output.ErrUnroutable(url, nil)
			}

			fetch := func() (*intent.Page, error) {
				return jet.DispatchPage(cmd.Context(), j, route.Intent)
			}
			var (
				p   *intent.Page
				err error
			)
			if app.IsInteractive() {
				p, err = tui.Run(tui.NewSpinner("Loading "+url, tui.NewStyles(), tea.WithOutput(os.Stderr)), "", fetch)
			} else {
				p, err = fetch()
			}
			if err != nil {
				return err
			}

			return app.OK(p,
				output.WithSummary(pageSummary(p)),
				output.WithBreadcrumbs(linkBreadcrumbs(p)...),
			)
		},
	}
}

func pageSummary(p *intent.Page) string {
	links := len(p.Links())
	switch links {
	case 0:
		return p.Title
	case 1:
		return fmt.Sprintf("%s (1 link)", p.Title)
	default:
		return fmt.Sprintf("%s (%d links)", p.Title, links)
	}
}

// linkBreadcrumbs suggests following the first few links on p.
func linkBreadcrumbs(p *intent.Page) []output.Breadcrumb {
	const maxCrumbs = 3
	var crumbs []output.Breadcrumb
	for _, l := range p.Links() {
		if l.Action.PageURL == "" {
			continue
		}
		crumbs = append(crumbs, output.Breadcrumb{
			Action:      "page",
			Cmd:         fmt.Sprintf("storefront page %q", l.Action.PageURL),
			Description: l.Title,
		})
		if len(crumbs) == maxCrumbs {
			break
		}
	}
	return crumbs
}
