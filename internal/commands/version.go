package commands

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/basecamp/storefront/internal/output"
	"github.com/basecamp/storefront/internal/version"
)

// VersionInfo is the output of the version command.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

// NewVersionCmd creates the version command. It runs without app setup so
// it works even when configuration is broken.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := output.FormatAuto
			if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
				format = output.FormatJSON
			}
			w := output.New(output.Options{Format: format, Writer: cmd.OutOrStdout()})
			return w.OK(VersionInfo{
				Version: version.Version,
				Commit:  version.Commit,
				Date:    version.Date,
				Go:      runtime.Version(),
			}, output.WithSummary(version.Full()))
		},
	}
}
