// Package cli assembles the storefront command tree.
package cli

import (
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/basecamp/storefront/internal/appctx"
	"github.com/basecamp/storefront/internal/commands"
	"github.com/basecamp/storefront/internal/completion"
	"github.com/basecamp/storefront/internal/config"
	"github.com/basecamp/storefront/internal/output"
	"github.com/basecamp/storefront/internal/version"
)

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:           "storefront",
		Short:         "Browse, route and serve the storefront",
		Long:          "storefront routes storefront URLs to pages, renders them on a server, and browses them in the terminal.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip setup for help and version commands
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.Load(flags.Overrides())
			if err != nil {
				return output.ErrUsage(err.Error())
			}

			app, err := appctx.NewApp(cfg)
			if err != nil {
				return err
			}
			app.Flags = flags
			app.Stdout = cmd.OutOrStdout()
			app.ApplyFlags()

			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
	}

	// Allow flags anywhere in the command line
	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)

	// Config keys are snake_case; accept them as flag spellings too.
	cmd.SetGlobalNormalizationFunc(normalizeFlagName)
	cmd.SetFlagErrorFunc(flagError)

	// Output format flags
	cmd.PersistentFlags().BoolVarP(&flags.JSON, "json", "j", false, "Output as JSON")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	cmd.PersistentFlags().BoolVar(&flags.Styled, "styled", false, "Force styled output (ANSI colors)")
	cmd.PersistentFlags().StringVar(&flags.JQ, "jq", "", "Filter the data with a jq expression")

	// Storefront flags
	cmd.PersistentFlags().StringVar(&flags.Source, "source", "", "Page source (fixture or api)")
	cmd.PersistentFlags().StringVar(&flags.CatalogPath, "catalog", "", "Fixture catalog YAML file")
	cmd.PersistentFlags().StringVarP(&flags.Storefront, "storefront", "s", "", "Default storefront (e.g. us, gb)")
	cmd.PersistentFlags().StringVar(&flags.Language, "language", "", "Preferred language (e.g. en-GB)")

	// Behavior flags
	cmd.PersistentFlags().CountVarP(&flags.Verbose, "verbose", "v", "Verbose output (-v for navigations, -vv for requests)")
	cmd.PersistentFlags().BoolVar(&flags.Stats, "stats", false, "Show session statistics")
	cmd.PersistentFlags().StringVar(&flags.CacheDir, "cache-dir", "", "Cache directory")

	_ = cmd.RegisterFlagCompletionFunc("source", cobra.FixedCompletions(
		[]string{config.SourceFixture, config.SourceAPI}, cobra.ShellCompDirectiveNoFileComp))
	_ = cmd.RegisterFlagCompletionFunc("storefront", completion.NewCompleter(nil).StorefrontCompletion())

	return cmd
}

// Execute runs the root command.
func Execute() {
	cmd := NewRootCmd()
	commands.Register(cmd)

	// Use ExecuteC to get the executed command (for correct context access)
	executedCmd, err := cmd.ExecuteC()
	if err != nil {
		err = transformCobraError(err)
		apiErr := output.AsError(err)

		if app := appctx.FromContext(executedCmd.Context()); app != nil {
			_ = app.Err(err)
			os.Exit(apiErr.ExitCode())
		}

		// Fallback: the app is not available, e.g. config failed to load
		pf := cmd.PersistentFlags()
		format := output.FormatAuto
		quiet, _ := pf.GetBool("quiet")
		styled, _ := pf.GetBool("styled")
		jsonFlag, _ := pf.GetBool("json")
		switch {
		case quiet:
			format = output.FormatQuiet
		case jsonFlag:
			format = output.FormatJSON
		case styled:
			format = output.FormatStyled
		}

		writer := output.New(output.Options{Format: format, Writer: os.Stdout})
		_ = writer.Err(err)
		os.Exit(apiErr.ExitCode())
	}
}

func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

var (
	shorthandFlag  = regexp.MustCompile(`unknown shorthand flag: '.' in (-\w)`)
	negativeNumber = regexp.MustCompile(`unknown shorthand flag: '\d' in -\d`)
)

// flagError reports a flag parse failure as a usage error. Values that
// start with a dash, like negative numbers, must follow --.
func flagError(_ *cobra.Command, err error) error {
	e := output.AsError(transformCobraError(err))
	if e.Code != output.CodeUsage {
		e = output.ErrUsage(err.Error())
	}
	if e.Hint == "" && negativeNumber.MatchString(err.Error()) {
		e.Hint = "Pass negative values after --, e.g. storefront config set history_capacity -- -1"
	}
	return e
}

// transformCobraError turns cobra's parse errors into usage errors.
func transformCobraError(err error) error {
	msg := err.Error()

	if flag, ok := strings.CutPrefix(msg, "flag needs an argument: "); ok {
		return output.ErrUsage(flag + " requires a value")
	}
	if flag, ok := strings.CutPrefix(msg, "unknown flag: "); ok {
		return output.ErrUsage("Unknown option: " + flag)
	}
	if strings.HasPrefix(msg, "unknown shorthand flag: ") {
		if matches := shorthandFlag.FindStringSubmatch(msg); len(matches) > 1 {
			return output.ErrUsage("Unknown option: " + matches[1])
		}
	}
	if strings.HasPrefix(msg, "unknown command ") {
		return output.ErrUsageHint(msg, "Run storefront --help for the command list")
	}
	if strings.Contains(msg, "invalid argument") ||
		strings.Contains(msg, "arg(s), received") ||
		strings.Contains(msg, "requires at least") {
		return output.ErrUsage(msg)
	}
	return err
}
