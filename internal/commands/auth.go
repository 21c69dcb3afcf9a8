package commands

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/basecamp/storefront/internal/appctx"
	"github.com/basecamp/storefront/internal/auth"
	"github.com/basecamp/storefront/internal/output"
	"github.com/basecamp/storefront/internal/tui"
)

// NewAuthCmd creates the auth command group.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the media API token",
		Long:  "Manage the bearer token used when pages come from the media API (source: api).",
	}

	cmd.AddCommand(
		newAuthStatusCmd(),
		newAuthTokenCmd(),
	)

	return cmd
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long:  "Display whether a media API token is available and where it comes from.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			st := app.Auth.Status()
			switch {
			case !st.Authenticated:
				return app.OK(map[string]any{
					"authenticated": false,
					"origin":        st.Origin,
				}, output.WithSummary("Not authenticated"),
					output.WithBreadcrumbs(output.Breadcrumb{
						Action:      "set",
						Cmd:         "storefront auth token set",
						Description: "Store a token",
					}))
			case st.Source == auth.TokenEnv:
				return app.OK(map[string]any{
					"authenticated": true,
					"origin":        st.Origin,
					"source":        st.Source,
				}, output.WithSummary("Authenticated via "+auth.TokenEnv+" env var"))
			}
			return app.OK(map[string]any{
				"authenticated": true,
				"origin":        st.Origin,
				"source":        st.Source,
				"stored_at":     st.SavedAt,
			}, output.WithSummary(fmt.Sprintf("Authenticated (%s, saved %s)", st.Source, humanize.Time(st.SavedAt))))
		},
	}
}

func newAuthTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print, set or clear the API token",
		Long: `Print the current token to stdout for use with other tools.

If STOREFRONT_TOKEN is set, it is returned directly.

Examples:
  storefront auth token set
  curl -H "Authorization: Bearer $(storefront auth token)" ...
  storefront auth token clear`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			token, err := app.Auth.AccessToken(cmd.Context())
			if err != nil {
				return err
			}

			// Raw token by default so it works in shell substitution.
			if app.Flags.JSON {
				return app.OK(map[string]string{"token": token})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.AddCommand(
		newAuthTokenSetCmd(),
		newAuthTokenClearCmd(),
	)

	return cmd
}

func newAuthTokenSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [token]",
		Short: "Store a token",
		Long:  "Store a media API token in the system keyring, or a private file when no keyring is available. Without an argument you are prompted for it.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			var token string
			switch {
			case len(args) == 1:
				token = args[0]
			case app.IsInteractive():
				var err error
				token, err = tui.SecretInput("Media API token")
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				if err != nil {
					return err
				}
			default:
				return output.ErrUsage("Token required: storefront auth token set <token>")
			}

			if err := app.Auth.SetToken(token); err != nil {
				return err
			}
			return app.OK(map[string]string{
				"status": "stored",
				"origin": app.Auth.Origin(),
			}, output.WithSummary("Token stored for "+app.Auth.Origin()))
		},
	}
}

func newAuthTokenClearCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			if !force && app.IsInteractive() {
				ok, err := tui.Confirm("Remove the token for "+app.Auth.Origin()+"?", false)
				if err != nil && !errors.Is(err, huh.ErrUserAborted) {
					return err
				}
				if !ok {
					return nil
				}
			}

			if err := app.Auth.Logout(); err != nil {
				return err
			}
			return app.OK(map[string]string{
				"status": "cleared",
			}, output.WithSummary("Token removed"))
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation")

	return cmd
}
