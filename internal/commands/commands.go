// Package commands implements the CLI commands.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basecamp/storefront/internal/appctx"
	"github.com/basecamp/storefront/internal/output"
)

// CommandInfo describes a CLI command.
type CommandInfo struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Actions     []string `json:"actions,omitempty"`
}

// CommandCategory groups commands by category.
type CommandCategory struct {
	Name     string        `json:"name"`
	Commands []CommandInfo `json:"commands"`
}

// commandCategories returns all command categories for the catalog.
func commandCategories() []CommandCategory {
	return []CommandCategory{
		{
			Name: "Storefront",
			Commands: []CommandInfo{
				{Name: "browse", Category: "storefront", Description: "Browse the storefront in the terminal"},
				{Name: "route", Category: "storefront", Description: "Show the intent a URL routes to"},
				{Name: "page", Category: "storefront", Description: "Fetch the page a URL routes to"},
				{Name: "serve", Category: "storefront", Description: "Serve server-rendered pages"},
				{Name: "history", Category: "storefront", Description: "Show the saved session and recent pages"},
			},
		},
		{
			Name: "Settings",
			Commands: []CommandInfo{
				{Name: "auth", Category: "settings", Description: "Manage the media API token", Actions: []string{"status", "token", "token set", "token clear"}},
				{Name: "config", Category: "settings", Description: "Manage configuration", Actions: []string{"show", "set", "unset"}},
			},
		},
		{
			Name: "Additional Commands",
			Commands: []CommandInfo{
				{Name: "commands", Category: "additional", Description: "List all commands"},
				{Name: "doctor", Category: "additional", Description: "Check configuration and diagnose issues"},
				{Name: "completion", Category: "additional", Description: "Generate shell completions", Actions: []string{"refresh", "status"}},
				{Name: "version", Category: "additional", Description: "Show version"},
			},
		},
	}
}

// CatalogCommandNames returns all command names from the catalog.
func CatalogCommandNames() []string {
	var names []string
	for _, cat := range commandCategories() {
		for _, cmd := range cat.Commands {
			names = append(names, cmd.Name)
		}
	}
	return names
}

// NewCommandsCmd creates the commands listing command.
func NewCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "commands",
		Aliases: []string{"cmds"},
		Short:   "List all available commands",
		Long:    "List all available storefront commands organized by category.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			return app.OK(commandCategories(),
				output.WithSummary("All available storefront commands"),
				output.WithBreadcrumbs(
					output.Breadcrumb{
						Action:      "help",
						Cmd:         "storefront --help",
						Description: "View help",
					},
				),
			)
		},
	}
}

// Register adds every command to root.
func Register(root *cobra.Command) {
	root.AddCommand(
		NewBrowseCmd(),
		NewRouteCmd(),
		NewPageCmd(),
		NewServeCmd(),
		NewHistoryCmd(),
		NewAuthCmd(),
		NewConfigCmd(),
		NewCommandsCmd(),
		NewDoctorCmd(),
		NewCompletionCmd(),
		NewVersionCmd(),
	)
}
