package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basecamp/storefront/internal/appctx"
	"github.com/basecamp/storefront/internal/completion"
	"github.com/basecamp/storefront/internal/intent"
	"github.com/basecamp/storefront/internal/output"
)

// RouteResult describes where a URL leads.
type RouteResult struct {
	URL        string             `json:"url"`
	Kind       intent.Kind        `json:"kind"`
	Storefront string             `json:"storefront"`
	Language   string             `json:"language"`
	ServerSide bool               `json:"server_side,omitempty"`
	Intent     intent.Envelope    `json:"intent"`
	Action     *intent.FlowAction `json:"action,omitempty"`
}

// NewRouteCmd creates the route command.
func NewRouteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route <url>",
		Short: "Show the intent a URL routes to",
		Long: `Resolve a storefront URL to its intent without fetching the page.

Examples:
  storefront route /us/app/chess-club/id1
  storefront route "/gb/search?term=chess" --json`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.NewCompleter(nil).URLCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			url := args[0]
			route := app.NewJet(nil).RouteURL(cmd.Context(), url)
			if route == nil {
				return output.ErrUnroutable(url, nil)
			}

			env, err := intent.Wrap(route.Intent)
			if err != nil {
				return err
			}
			result := RouteResult{
				URL:        url,
				Kind:       route.Intent.Kind(),
				Storefront: route.Storefront,
				Language:   route.Language,
				ServerSide: intent.RequiresServerSide(route.Intent),
				Intent:     env,
				Action:     route.Action,
			}

			return app.OK(result,
				output.WithSummary(fmt.Sprintf("%s routes to %s (%s, %s)", url, result.Kind, result.Storefront, result.Language)),
				output.WithBreadcrumbs(
					output.Breadcrumb{
						Action:      "page",
						Cmd:         fmt.Sprintf("storefront page %q", url),
						Description: "Fetch the page",
					},
					output.Breadcrumb{
						Action:      "browse",
						Cmd:         fmt.Sprintf("storefront browse %q", url),
						Description: "Open it in the browser",
					},
				),
			)
		},
	}
}
