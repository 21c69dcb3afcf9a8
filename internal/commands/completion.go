package commands

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/basecamp/storefront/internal/appctx"
	"github.com/basecamp/storefront/internal/completion"
	"github.com/basecamp/storefront/internal/output"
)

// NewCompletionCmd creates the completion command group.
func NewCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [shell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for storefront.

To load completions:

Bash:
  $ source <(storefront completion bash)

Zsh:
  $ storefront completion zsh > "${fpath[1]}/_storefront"

Fish:
  $ storefront completion fish | source

PowerShell:
  PS> storefront completion powershell | Out-String | Invoke-Expression

URL arguments complete from recently visited pages and from links cached by
"storefront completion refresh".
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompletion(cmd, args[0])
		},
	}

	cmd.AddCommand(
		newCompletionRefreshCmd(),
		newCompletionStatusCmd(),
	)

	return cmd
}

func runCompletion(cmd *cobra.Command, shell string) error {
	root := cmd.Root()
	out := cmd.OutOrStdout()
	switch shell {
	case "bash":
		return root.GenBashCompletionV2(out, true)
	case "zsh":
		return root.GenZshCompletion(out)
	case "fish":
		return root.GenFishCompletion(out, true)
	case "powershell":
		return root.GenPowerShellCompletionWithDesc(out)
	default:
		return fmt.Errorf("unknown shell: %s", shell)
	}
}

func newCompletionRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the completion cache",
		Long: `Load the tab pages of every storefront and cache their links for URL
completion.

If you set cache_dir in a config file, completions won't find it.
Set STOREFRONT_CACHE_DIR in your environment instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			store := completion.NewStore(app.Config.CacheDir)
			refresher := completion.NewRefresher(store, app.NewJet(nil))
			result := refresher.RefreshAll(cmd.Context(), sortedStorefronts(app))
			if result.Pages == 0 && result.Err != nil {
				return fmt.Errorf("refresh failed: %w", result.Err)
			}

			data := map[string]any{
				"pages":      result.Pages,
				"links":      result.Links,
				"cache_path": store.Path(),
			}
			summary := fmt.Sprintf("Cached %d links from %d pages", result.Links, result.Pages)
			if result.Err != nil {
				data["error"] = result.Err.Error()
				summary += " (some pages failed)"
			}
			return app.OK(data, output.WithSummary(summary))
		},
	}
}

func newCompletionStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show completion cache status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			store := completion.NewStore(app.Config.CacheDir)
			cache, err := store.Load()
			if err != nil {
				return err
			}

			status := "fresh"
			age := "never"
			switch {
			case cache.LinksUpdatedAt.IsZero():
				status = "empty"
			case store.IsStale(completion.DefaultMaxAge):
				status = "stale"
			}
			if !cache.LinksUpdatedAt.IsZero() {
				age = humanize.RelTime(cache.LinksUpdatedAt, time.Now(), "ago", "from now")
			}

			return app.OK(map[string]any{
				"links":      len(cache.Links),
				"updated_at": cache.LinksUpdatedAt,
				"age":        age,
				"status":     status,
				"cache_path": store.Path(),
			}, output.WithSummary(fmt.Sprintf("%d links (%s)", len(cache.Links), status)))
		},
	}
}
