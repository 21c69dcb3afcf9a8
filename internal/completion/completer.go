package completion

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/basecamp/storefront/internal/appctx"
	"github.com/basecamp/storefront/internal/config"
	"github.com/basecamp/storefront/internal/routing"
	"github.com/basecamp/storefront/internal/tui/recents"
)

// CacheDirFunc returns the cache directory to use for completion.
// Takes the command to allow checking both context and flags at completion time.
type CacheDirFunc func(cmd *cobra.Command) string

// DefaultCacheDirFunc returns the cache directory by checking (in order):
// 1. --cache-dir flag on the root command
// 2. App config from context (set by PersistentPreRunE)
// 3. STOREFRONT_CACHE_DIR environment variable
// 4. Default cache directory
//
// PersistentPreRunE doesn't run during __complete, so cache_dir from a
// config file is not honored here.
func DefaultCacheDirFunc(cmd *cobra.Command) string {
	if root := cmd.Root(); root != nil {
		if flag := root.PersistentFlags().Lookup("cache-dir"); flag != nil && flag.Changed {
			return flag.Value.String()
		}
	}
	if app := appctx.FromContext(cmd.Context()); app != nil {
		return app.Config.CacheDir
	}
	if v := os.Getenv(config.EnvPrefix + "CACHE_DIR"); v != "" {
		return v
	}
	return ""
}

// Completer provides tab completion functions for the storefront CLI.
// It reads from file-based caches and never initializes the full App.
type Completer struct {
	getCacheDir CacheDirFunc
}

// NewCompleter creates a new Completer.
// If getCacheDir is nil, DefaultCacheDirFunc is used.
func NewCompleter(getCacheDir CacheDirFunc) *Completer {
	if getCacheDir == nil {
		getCacheDir = DefaultCacheDirFunc
	}
	return &Completer{getCacheDir: getCacheDir}
}

func (c *Completer) store(cmd *cobra.Command) *Store {
	return NewStore(c.getCacheDir(cmd))
}

// URLCompletion completes storefront URLs. Candidates are ranked:
// recently visited pages, then cached links, then tab pages.
func (c *Completer) URLCompletion() cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		store := c.store(cmd)
		seen := make(map[string]bool)
		var completions []cobra.Completion
		add := func(url, desc string) {
			if seen[url] || !matches(url, desc, toComplete) {
				return
			}
			seen[url] = true
			completions = append(completions, cobra.CompletionWithDesc(url, desc))
		}

		for _, item := range recents.NewStore(store.Dir()).Get("") {
			add(item.URL, item.Title)
		}
		for _, l := range store.Links() {
			add(l.URL, l.Title)
		}
		for _, sf := range StorefrontIDs() {
			for _, tab := range routing.Tabs {
				add("/"+sf+"/"+tab, tab)
			}
		}

		return completions, cobra.ShellCompDirectiveNoFileComp
	}
}

// StorefrontCompletion completes storefront IDs.
func (c *Completer) StorefrontCompletion() cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
		var completions []cobra.Completion
		for _, sf := range routing.DefaultStorefronts {
			if !strings.HasPrefix(sf.ID, strings.ToLower(toComplete)) {
				continue
			}
			completions = append(completions, cobra.CompletionWithDesc(sf.ID, sf.Languages[0].String()))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	}
}

// StorefrontIDs returns the default storefront IDs in declaration order.
func StorefrontIDs() []string {
	ids := make([]string, len(routing.DefaultStorefronts))
	for i, sf := range routing.DefaultStorefronts {
		ids[i] = sf.ID
	}
	return ids
}

// matches reports whether url starts with toComplete, or the title
// contains it.
func matches(url, title, toComplete string) bool {
	if toComplete == "" || strings.HasPrefix(url, toComplete) {
		return true
	}
	return strings.Contains(strings.ToLower(title), strings.ToLower(toComplete))
}
