package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/basecamp/storefront/internal/appctx"
	"github.com/basecamp/storefront/internal/auth"
	"github.com/basecamp/storefront/internal/config"
	"github.com/basecamp/storefront/internal/jet"
	"github.com/basecamp/storefront/internal/output"
	"github.com/basecamp/storefront/internal/resilience"
	"github.com/basecamp/storefront/internal/version"
)

// Check statuses.
const (
	checkPass = "pass"
	checkFail = "fail"
	checkWarn = "warn"
	checkSkip = "skip"
)

// Check represents a single diagnostic check result.
type Check struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// DoctorResult holds the complete diagnostic results.
type DoctorResult struct {
	Checks  []Check `json:"checks"`
	Passed  int     `json:"passed"`
	Failed  int     `json:"failed"`
	Warned  int     `json:"warned"`
	Skipped int     `json:"skipped"`
}

// Summary returns a human-readable summary of the results.
func (r *DoctorResult) Summary() string {
	if r.Failed == 0 && r.Warned == 0 && r.Passed > 0 {
		if r.Skipped > 0 {
			return fmt.Sprintf("All %d checks passed, %d skipped", r.Passed, r.Skipped)
		}
		return fmt.Sprintf("All %d checks passed", r.Passed)
	}
	var parts []string
	if r.Passed > 0 {
		parts = append(parts, fmt.Sprintf("%d passed", r.Passed))
	}
	if r.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", r.Failed))
	}
	if r.Warned > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", r.Warned, pluralize(r.Warned, "warning", "warnings")))
	}
	if r.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", r.Skipped))
	}
	return strings.Join(parts, ", ")
}

// NewDoctorCmd creates the doctor command.
func NewDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and diagnose issues",
		Long: `Run diagnostic checks on configuration, the page source and local state.

The doctor command checks:
  - Configuration files (existence and validity)
  - The page source (every storefront's first tab loads)
  - The media API token, when source is api
  - Credential storage
  - Cache directory health`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			checks := runDoctorChecks(cmd.Context(), app)
			result := summarizeChecks(checks)

			opts := []output.ResponseOption{output.WithSummary(result.Summary())}
			if breadcrumbs := buildDoctorBreadcrumbs(checks); len(breadcrumbs) > 0 {
				opts = append(opts, output.WithBreadcrumbs(breadcrumbs...))
			}
			return app.OK(result, opts...)
		},
	}
}

// runDoctorChecks executes all diagnostic checks.
func runDoctorChecks(ctx context.Context, app *appctx.App) []Check {
	checks := []Check{checkVersion()}
	checks = append(checks,
		validateConfigFile(config.GlobalConfigPath(), "Global config"),
		validateConfigFile(config.LocalConfigPath(), "Local config"),
	)
	checks = append(checks,
		checkPageSource(ctx, app),
		checkToken(app),
		checkBreaker(app),
		checkCredentialStore(app),
		checkCacheDir(app.Config.CacheDir),
	)
	return checks
}

func checkVersion() Check {
	msg := version.Full()
	if version.IsDev() {
		msg += " (" + runtime.Version() + ")"
	}
	return Check{Name: "Version", Status: checkPass, Message: msg}
}

func validateConfigFile(path, name string) Check {
	if path == "" {
		return Check{Name: name, Status: checkSkip, Message: "Working directory unknown"}
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config location
	if os.IsNotExist(err) {
		return Check{Name: name, Status: checkSkip, Message: "Not present (" + path + ")"}
	}
	if err != nil {
		return Check{Name: name, Status: checkFail, Message: err.Error()}
	}
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		return Check{
			Name:    name,
			Status:  checkFail,
			Message: "Invalid JSON: " + err.Error(),
			Hint:    "Fix or remove " + path,
		}
	}
	return Check{Name: name, Status: checkPass, Message: fmt.Sprintf("%s (%d %s)", path, len(v), pluralize(len(v), "key", "keys"))}
}

// checkPageSource loads the first tab of every storefront.
func checkPageSource(ctx context.Context, app *appctx.App) Check {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	j := app.NewJet(nil)
	ids := sortedStorefronts(app)
	var failed []string
	for _, sf := range ids {
		url := "/" + sf
		route := j.RouteURL(ctx, url)
		if route == nil {
			failed = append(failed, sf)
			continue
		}
		if _, err := jet.DispatchPage(ctx, j, route.Intent); err != nil {
			failed = append(failed, sf)
		}
	}

	name := "Page source (" + app.Config.PageSource + ")"
	if len(failed) > 0 {
		return Check{
			Name:    name,
			Status:  checkFail,
			Message: fmt.Sprintf("%d of %d storefronts failed: %s", len(failed), len(ids), strings.Join(failed, ", ")),
			Hint:    "Run storefront page /" + failed[0] + " for details",
		}
	}
	return Check{Name: name, Status: checkPass, Message: fmt.Sprintf("%d storefronts load", len(ids))}
}

func checkToken(app *appctx.App) Check {
	if app.Config.PageSource != config.SourceAPI {
		return Check{Name: "Token", Status: checkSkip, Message: "Not needed for source " + app.Config.PageSource}
	}
	if os.Getenv(auth.TokenEnv) != "" {
		return Check{Name: "Token", Status: checkPass, Message: "From " + auth.TokenEnv}
	}
	if !app.Auth.IsAuthenticated() {
		return Check{
			Name:    "Token",
			Status:  checkFail,
			Message: "No token for " + app.Auth.Origin(),
			Hint:    "Run: storefront auth token set",
		}
	}
	return Check{Name: "Token", Status: checkPass, Message: "Stored for " + app.Auth.Origin()}
}

func checkBreaker(app *appctx.App) Check {
	if app.Breaker == nil {
		return Check{Name: "Media API circuit", Status: checkSkip, Message: "Not needed for source " + app.Config.PageSource}
	}
	state, err := app.Breaker.State()
	if err != nil {
		return Check{Name: "Media API circuit", Status: checkWarn, Message: err.Error()}
	}
	switch state {
	case resilience.CircuitOpen:
		return Check{
			Name:    "Media API circuit",
			Status:  checkFail,
			Message: "Open after repeated failures, probing again " + humanize.Time(app.Breaker.RetryAt()),
			Hint:    "Check api_url and the service status",
		}
	case resilience.CircuitHalfOpen:
		return Check{Name: "Media API circuit", Status: checkWarn, Message: "Recovering"}
	default:
		return Check{Name: "Media API circuit", Status: checkPass, Message: "Closed"}
	}
}

func checkCredentialStore(app *appctx.App) Check {
	if app.Auth.Backend() == auth.BackendKeyring {
		return Check{Name: "Credential storage", Status: checkPass, Message: "System keyring"}
	}
	return Check{
		Name:    "Credential storage",
		Status:  checkWarn,
		Message: "Plaintext file in " + config.GlobalConfigDir(),
		Hint:    "A system keyring keeps tokens off disk",
	}
}

func checkCacheDir(dir string) Check {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Check{Name: "Cache directory", Status: checkFail, Message: err.Error(), Hint: "Set cache_dir to a writable directory"}
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return Check{Name: "Cache directory", Status: checkFail, Message: dir + " is not writable", Hint: "Set cache_dir to a writable directory"}
	}
	probe.Close()
	_ = os.Remove(probe.Name())

	entries, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	return Check{Name: "Cache directory", Status: checkPass, Message: fmt.Sprintf("%s (%d %s)", dir, len(entries), pluralize(len(entries), "file", "files"))}
}

// summarizeChecks counts results by status.
func summarizeChecks(checks []Check) *DoctorResult {
	result := &DoctorResult{Checks: checks}
	for _, c := range checks {
		switch c.Status {
		case checkPass:
			result.Passed++
		case checkFail:
			result.Failed++
		case checkWarn:
			result.Warned++
		case checkSkip:
			result.Skipped++
		}
	}
	return result
}

// buildDoctorBreadcrumbs suggests next steps for failures.
func buildDoctorBreadcrumbs(checks []Check) []output.Breadcrumb {
	seen := make(map[string]bool)
	var breadcrumbs []output.Breadcrumb
	add := func(b output.Breadcrumb) {
		if !seen[b.Cmd] {
			seen[b.Cmd] = true
			breadcrumbs = append(breadcrumbs, b)
		}
	}

	for _, c := range checks {
		if c.Status != checkFail {
			continue
		}
		switch {
		case c.Name == "Token":
			add(output.Breadcrumb{Action: "token", Cmd: "storefront auth token set", Description: "Store a token"})
		case strings.HasPrefix(c.Name, "Page source"), strings.HasSuffix(c.Name, "config"), c.Name == "Cache directory":
			add(output.Breadcrumb{Action: "config", Cmd: "storefront config show", Description: "Review configuration"})
		}
	}
	return breadcrumbs
}

// pluralize returns singular or plural form based on count.
func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
