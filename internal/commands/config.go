package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/basecamp/storefront/internal/appctx"
	"github.com/basecamp/storefront/internal/config"
	"github.com/basecamp/storefront/internal/hostutil"
	"github.com/basecamp/storefront/internal/output"
)

// configKeys are the keys config files may set.
var configKeys = []string{
	"api_url",
	"cache_dir",
	"catalog_path",
	"fixture_latency",
	"history_capacity",
	"language",
	"listen_addr",
	"loading_timeout",
	"otel_endpoint",
	"source",
	"storefront",
	"verbose",
}

// NewConfigCmd creates the config command for managing configuration.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage storefront configuration.

Configuration is loaded from multiple sources with the following precedence:
  flags > env > local > global > defaults

Config locations:
  - Global: ~/.config/storefront/config.json
  - Local:  .storefront/config.json

Environment variables use the STOREFRONT_ prefix, e.g. STOREFRONT_HISTORY_CAPACITY.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetCmd(),
		newConfigUnsetCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  "Display the current effective configuration with source information.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}
}

// configValues renders every key of cfg as a string.
func configValues(cfg *config.Config) map[string]string {
	return map[string]string{
		"api_url":          cfg.APIURL,
		"cache_dir":        cfg.CacheDir,
		"catalog_path":     cfg.CatalogPath,
		"fixture_latency":  cfg.FixtureLatency.String(),
		"history_capacity": strconv.Itoa(cfg.HistoryCapacity),
		"language":         cfg.Language,
		"listen_addr":      cfg.ListenAddr,
		"loading_timeout":  cfg.LoadingTimeout.String(),
		"otel_endpoint":    cfg.OTELEndpoint,
		"source":           cfg.PageSource,
		"storefront":       cfg.Storefront,
		"verbose":          strconv.FormatBool(cfg.Verbose),
	}
}

func runConfigShow(cmd *cobra.Command) error {
	app := appctx.FromContext(cmd.Context())
	if app == nil {
		return fmt.Errorf("app not initialized")
	}

	configData := make(map[string]any)
	for key, value := range configValues(app.Config) {
		// Unset optional strings are noise.
		if value == "" {
			continue
		}
		configData[key] = map[string]string{
			"value":  value,
			"source": string(app.Config.SourceOf(key)),
		}
	}

	return app.OK(configData,
		output.WithSummary("Effective configuration"),
		output.WithBreadcrumbs(
			output.Breadcrumb{
				Action:      "set",
				Cmd:         "storefront config set <key> <value>",
				Description: "Set config value",
			},
		),
	)
}

// parseConfigValue validates value for key and returns it in the type the
// config file stores.
func parseConfigValue(key, value string) (any, error) {
	switch key {
	case "api_url":
		u, err := hostutil.ParseAPIURL(value)
		if err != nil {
			return nil, output.ErrUsage("api_url: " + err.Error())
		}
		return u, nil
	case "history_capacity":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return nil, output.ErrUsage("history_capacity must be a non-negative integer")
		}
		return n, nil
	case "loading_timeout", "fixture_latency":
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			return nil, output.ErrUsage(fmt.Sprintf("%s must be a duration like 500ms", key))
		}
		if key == "loading_timeout" && d == 0 {
			return nil, output.ErrUsage("loading_timeout must be positive")
		}
		return value, nil
	case "verbose":
		b, ok := parseBoolFlag(value)
		if !ok {
			return nil, output.ErrUsage("verbose must be true/false (or 1/0)")
		}
		return b, nil
	case "source":
		if value != config.SourceFixture && value != config.SourceAPI {
			return nil, output.ErrUsage(fmt.Sprintf("source must be %s or %s", config.SourceFixture, config.SourceAPI))
		}
		return value, nil
	default:
		return value, nil
	}
}

func parseBoolFlag(value string) (bool, bool) {
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// configFile returns the config file a set or unset writes to.
func configFile(global bool) (path, scope string) {
	if global {
		return config.GlobalConfigPath(), "global"
	}
	return filepath.Join(".storefront", "config.json"), "local"
}

func validKey(key string) error {
	if slices.Contains(configKeys, key) {
		return nil
	}
	return output.ErrUsage(fmt.Sprintf("Invalid config key %q. Valid keys: %s", key, strings.Join(configKeys, ", ")))
}

func newConfigSetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the local or global config file.

Valid keys: ` + strings.Join(configKeys, ", ") + `

A running browse session picks up history_capacity changes immediately.
Values starting with a dash go after --.`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: configKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			key, value := args[0], args[1]
			if err := validKey(key); err != nil {
				return err
			}
			if key == "api_url" && !global {
				return output.ErrUsageHint("api_url can only be set globally", "Add --global")
			}
			parsed, err := parseConfigValue(key, value)
			if err != nil {
				return err
			}

			configPath, scope := configFile(global)
			configData, err := readConfigFile(configPath)
			if err != nil {
				return err
			}
			configData[key] = parsed
			if err := writeConfigFile(configPath, configData); err != nil {
				return err
			}

			return app.OK(map[string]any{
				"key":    key,
				"value":  value,
				"scope":  scope,
				"path":   configPath,
				"status": "set",
			},
				output.WithSummary(fmt.Sprintf("Set %s = %s (%s)", key, value, scope)),
				output.WithBreadcrumbs(
					output.Breadcrumb{
						Action:      "show",
						Cmd:         "storefront config show",
						Description: "View config",
					},
				),
			)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Set in global config (~/.config/storefront/)")

	return cmd
}

func newConfigUnsetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:       "unset <key>",
		Short:     "Remove a configuration value",
		Long:      "Remove a configuration value from the local or global config file.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: configKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			key := args[0]
			if err := validKey(key); err != nil {
				return err
			}

			configPath, scope := configFile(global)
			configData, err := readConfigFile(configPath)
			if err != nil {
				return err
			}
			if _, ok := configData[key]; !ok {
				return app.OK(map[string]any{
					"key":    key,
					"scope":  scope,
					"status": "not_set",
				}, output.WithSummary(fmt.Sprintf("%s is not set (%s)", key, scope)))
			}
			delete(configData, key)
			if err := writeConfigFile(configPath, configData); err != nil {
				return err
			}

			return app.OK(map[string]any{
				"key":    key,
				"scope":  scope,
				"path":   configPath,
				"status": "unset",
			}, output.WithSummary(fmt.Sprintf("Unset %s (%s)", key, scope)))
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Remove from global config")

	return cmd
}

// readConfigFile loads a config file, or an empty map when it doesn't
// exist. A malformed file starts fresh.
func readConfigFile(path string) (map[string]any, error) {
	configData := make(map[string]any)
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config location
	if err != nil {
		if os.IsNotExist(err) {
			return configData, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	_ = json.Unmarshal(data, &configData)
	return configData, nil
}

func writeConfigFile(path string, configData map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(configData, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := atomicWriteFile(path, append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// atomicWriteFile writes data to a file atomically using temp+rename.
// Files are always created with 0600 permissions (owner read/write only).
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Windows can't rename over an existing file.
	err = os.Rename(tmpPath, path)
	if err != nil && runtime.GOOS == "windows" {
		_ = os.Remove(path)
		return os.Rename(tmpPath, path)
	}
	return err
}
