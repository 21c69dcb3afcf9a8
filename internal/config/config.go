// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/basecamp/storefront/internal/hostutil"
)

// Page sources.
const (
	SourceFixture = "fixture"
	SourceAPI     = "api"
)

// Config holds the resolved configuration.
type Config struct {
	// Page source settings
	APIURL         string        `json:"api_url"`
	PageSource     string        `json:"source"`
	CatalogPath    string        `json:"catalog_path,omitempty"`
	FixtureLatency time.Duration `json:"fixture_latency,omitempty"`

	// Storefront settings
	Storefront string `json:"storefront"`
	Language   string `json:"language,omitempty"`

	// Navigation settings
	HistoryCapacity int           `json:"history_capacity"`
	LoadingTimeout  time.Duration `json:"loading_timeout"`

	// Server settings
	ListenAddr   string `json:"listen_addr"`
	OTELEndpoint string `json:"otel_endpoint,omitempty"`

	CacheDir string `json:"cache_dir"`
	Verbose  bool   `json:"verbose,omitempty"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `json:"-"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceGlobal  Source = "global"
	SourceLocal   Source = "local"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// FlagOverrides holds command-line flag values.
type FlagOverrides struct {
	PageSource  string
	CatalogPath string
	Storefront  string
	Language    string
	CacheDir    string
	ListenAddr  string
	Verbose     bool
}

// Default returns the default configuration.
func Default() *Config {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}

	return &Config{
		APIURL:          "https://api.storefront.example.com",
		PageSource:      SourceFixture,
		Storefront:      "us",
		HistoryCapacity: 10,
		LoadingTimeout:  500 * time.Millisecond,
		ListenAddr:      "127.0.0.1:8080",
		CacheDir:        filepath.Join(cacheDir, "storefront"),
		Sources:         make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > local > global > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	loadFromFile(cfg, GlobalConfigPath(), SourceGlobal)
	loadFromFile(cfg, LocalConfigPath(), SourceLocal)

	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	ApplyOverrides(cfg, overrides)

	return cfg, cfg.Validate()
}

// Validate reports values no component can run with.
func (cfg *Config) Validate() error {
	switch cfg.PageSource {
	case SourceFixture, SourceAPI:
	default:
		return fmt.Errorf("source must be %q or %q, got %q", SourceFixture, SourceAPI, cfg.PageSource)
	}
	if cfg.HistoryCapacity < 0 {
		return fmt.Errorf("history_capacity must not be negative, got %d", cfg.HistoryCapacity)
	}
	if cfg.LoadingTimeout <= 0 {
		return fmt.Errorf("loading_timeout must be positive, got %s", cfg.LoadingTimeout)
	}
	return nil
}

func loadFromFile(cfg *Config, path string, source Source) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return // File doesn't exist, skip
	}

	var fileCfg map[string]any
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	// api_url controls where the media API token is sent. A local config
	// in a cloned directory must not redirect it.
	if v, ok := fileCfg["api_url"].(string); ok && v != "" {
		if source == SourceLocal {
			fmt.Fprintf(os.Stderr, "warning: ignoring api_url %q from local config at %s (authority keys are not trusted from local config)\n", v, path)
		} else {
			cfg.APIURL = v
			cfg.Sources["api_url"] = string(source)
		}
	}

	setString := func(key string, dst *string) {
		if v, ok := fileCfg[key].(string); ok && v != "" {
			*dst = v
			cfg.Sources[key] = string(source)
		}
	}
	setString("source", &cfg.PageSource)
	setString("catalog_path", &cfg.CatalogPath)
	setString("storefront", &cfg.Storefront)
	setString("language", &cfg.Language)
	setString("listen_addr", &cfg.ListenAddr)
	setString("otel_endpoint", &cfg.OTELEndpoint)
	setString("cache_dir", &cfg.CacheDir)

	if v, ok := fileCfg["history_capacity"].(float64); ok && v == float64(int(v)) {
		cfg.HistoryCapacity = int(v)
		cfg.Sources["history_capacity"] = string(source)
	}
	setDuration := func(key string, dst *time.Duration) {
		v, ok := fileCfg[key].(string)
		if !ok {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: ignoring %s %q in %s: %v\n", key, v, path, err)
			return
		}
		*dst = d
		cfg.Sources[key] = string(source)
	}
	setDuration("loading_timeout", &cfg.LoadingTimeout)
	setDuration("fixture_latency", &cfg.FixtureLatency)

	if v, ok := fileCfg["verbose"].(bool); ok {
		cfg.Verbose = v
		cfg.Sources["verbose"] = string(source)
	}
}

// envConfig mirrors the environment layer. Pointers stay nil for unset
// variables so only present ones override.
type envConfig struct {
	APIURL          *string        `env:"API_URL"`
	PageSource      *string        `env:"SOURCE"`
	CatalogPath     *string        `env:"CATALOG_PATH"`
	FixtureLatency  *time.Duration `env:"FIXTURE_LATENCY"`
	Storefront      *string        `env:"STOREFRONT"`
	Language        *string        `env:"LANGUAGE"`
	HistoryCapacity *int           `env:"HISTORY_CAPACITY"`
	LoadingTimeout  *time.Duration `env:"LOADING_TIMEOUT"`
	ListenAddr      *string        `env:"LISTEN_ADDR"`
	OTELEndpoint    *string        `env:"OTEL_ENDPOINT"`
	CacheDir        *string        `env:"CACHE_DIR"`
}

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "STOREFRONT_"

// LoadFromEnv loads configuration from STOREFRONT_* environment variables.
func LoadFromEnv(cfg *Config) error {
	var e envConfig
	if err := env.ParseWithOptions(&e, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	str := func(key string, v *string, dst *string) {
		if v != nil && *v != "" {
			*dst = *v
			cfg.Sources[key] = string(SourceEnv)
		}
	}
	str("api_url", e.APIURL, &cfg.APIURL)
	str("source", e.PageSource, &cfg.PageSource)
	str("catalog_path", e.CatalogPath, &cfg.CatalogPath)
	str("storefront", e.Storefront, &cfg.Storefront)
	str("language", e.Language, &cfg.Language)
	str("listen_addr", e.ListenAddr, &cfg.ListenAddr)
	str("otel_endpoint", e.OTELEndpoint, &cfg.OTELEndpoint)
	str("cache_dir", e.CacheDir, &cfg.CacheDir)

	if e.HistoryCapacity != nil {
		cfg.HistoryCapacity = *e.HistoryCapacity
		cfg.Sources["history_capacity"] = string(SourceEnv)
	}
	if e.LoadingTimeout != nil {
		cfg.LoadingTimeout = *e.LoadingTimeout
		cfg.Sources["loading_timeout"] = string(SourceEnv)
	}
	if e.FixtureLatency != nil {
		cfg.FixtureLatency = *e.FixtureLatency
		cfg.Sources["fixture_latency"] = string(SourceEnv)
	}
	return nil
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	set := func(key, v string, dst *string) {
		if v != "" {
			*dst = v
			cfg.Sources[key] = string(SourceFlag)
		}
	}
	set("source", o.PageSource, &cfg.PageSource)
	set("catalog_path", o.CatalogPath, &cfg.CatalogPath)
	set("storefront", o.Storefront, &cfg.Storefront)
	set("language", o.Language, &cfg.Language)
	set("cache_dir", o.CacheDir, &cfg.CacheDir)
	set("listen_addr", o.ListenAddr, &cfg.ListenAddr)
	if o.Verbose {
		cfg.Verbose = true
		cfg.Sources["verbose"] = string(SourceFlag)
	}
}

// SourceOf returns where key's value came from.
func (cfg *Config) SourceOf(key string) Source {
	if s, ok := cfg.Sources[key]; ok {
		return Source(s)
	}
	return SourceDefault
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "storefront")
}

// GlobalConfigPath returns the global config file path.
func GlobalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}

// LocalConfigPath returns the config file in the working directory, or ""
// when the working directory can't be determined.
func LocalConfigPath() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, ".storefront", "config.json")
}

// NormalizeBaseURL gives a configured API address a scheme and drops any
// trailing slash.
func NormalizeBaseURL(url string) string {
	return hostutil.Normalize(url)
}
