package config

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path string, v map[string]any) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// isolate points the global and local config locations at temp dirs.
func isolate(t *testing.T) (global, local string) {
	t.Helper()
	home := t.TempDir()
	work := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Chdir(work)
	for _, k := range []string{"API_URL", "SOURCE", "CATALOG_PATH", "STOREFRONT", "LANGUAGE", "HISTORY_CAPACITY", "LOADING_TIMEOUT", "LISTEN_ADDR", "CACHE_DIR"} {
		t.Setenv(EnvPrefix+k, "")
	}
	return GlobalConfigPath(), LocalConfigPath()
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, SourceFixture, cfg.PageSource)
	assert.Equal(t, "us", cfg.Storefront)
	assert.Equal(t, 10, cfg.HistoryCapacity)
	assert.Equal(t, 500*time.Millisecond, cfg.LoadingTimeout)
	assert.NotNil(t, cfg.Sources)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, map[string]any{
		"api_url":          "http://media.test",
		"source":           "api",
		"storefront":       "fr",
		"language":         "en-GB",
		"history_capacity": 3,
		"loading_timeout":  "250ms",
		"fixture_latency":  "1s",
		"verbose":          true,
	})

	cfg := Default()
	loadFromFile(cfg, path, SourceGlobal)

	assert.Equal(t, "http://media.test", cfg.APIURL)
	assert.Equal(t, SourceAPI, cfg.PageSource)
	assert.Equal(t, "fr", cfg.Storefront)
	assert.Equal(t, "en-GB", cfg.Language)
	assert.Equal(t, 3, cfg.HistoryCapacity)
	assert.Equal(t, 250*time.Millisecond, cfg.LoadingTimeout)
	assert.Equal(t, time.Second, cfg.FixtureLatency)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, SourceGlobal, cfg.SourceOf("history_capacity"))
	assert.Equal(t, SourceDefault, cfg.SourceOf("listen_addr"))
}

func TestLoadFromFileSkipsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	cfg := Default()
	loadFromFile(cfg, path, SourceGlobal)
	loadFromFile(cfg, filepath.Join(dir, "missing.json"), SourceGlobal)
	assert.Equal(t, Default().Storefront, cfg.Storefront)

	writeConfig(t, path, map[string]any{"loading_timeout": "soon", "history_capacity": 2.5})
	loadFromFile(cfg, path, SourceGlobal)
	assert.Equal(t, 500*time.Millisecond, cfg.LoadingTimeout)
	assert.Equal(t, 10, cfg.HistoryCapacity)
}

func TestLocalConfigCannotRedirectAPI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, map[string]any{"api_url": "http://evil.test", "storefront": "gb"})

	cfg := Default()
	loadFromFile(cfg, path, SourceLocal)
	assert.Equal(t, Default().APIURL, cfg.APIURL)
	assert.Equal(t, "gb", cfg.Storefront)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STOREFRONT_SOURCE", "api")
	t.Setenv("STOREFRONT_HISTORY_CAPACITY", "0")
	t.Setenv("STOREFRONT_LOADING_TIMEOUT", "2s")
	t.Setenv("STOREFRONT_STOREFRONT", "jp")

	cfg := Default()
	require.NoError(t, LoadFromEnv(cfg))

	assert.Equal(t, SourceAPI, cfg.PageSource)
	assert.Equal(t, 0, cfg.HistoryCapacity)
	assert.Equal(t, 2*time.Second, cfg.LoadingTimeout)
	assert.Equal(t, "jp", cfg.Storefront)
	assert.Equal(t, SourceEnv, cfg.SourceOf("history_capacity"))
}

func TestLoadFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("STOREFRONT_HISTORY_CAPACITY", "lots")
	assert.Error(t, LoadFromEnv(Default()))
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	ApplyOverrides(cfg, FlagOverrides{Storefront: "de", Verbose: true})

	assert.Equal(t, "de", cfg.Storefront)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, SourceFlag, cfg.SourceOf("storefront"))
	assert.Equal(t, SourceDefault, cfg.SourceOf("source"))
}

func TestLoadLayering(t *testing.T) {
	global, local := isolate(t)
	writeConfig(t, global, map[string]any{"storefront": "gb", "history_capacity": 4, "listen_addr": ":9000"})
	writeConfig(t, local, map[string]any{"storefront": "fr"})
	t.Setenv("STOREFRONT_HISTORY_CAPACITY", "6")

	cfg, err := Load(FlagOverrides{Language: "en-GB"})
	require.NoError(t, err)

	assert.Equal(t, "fr", cfg.Storefront)
	assert.Equal(t, 6, cfg.HistoryCapacity)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "en-GB", cfg.Language)
	assert.Equal(t, SourceLocal, cfg.SourceOf("storefront"))
	assert.Equal(t, SourceGlobal, cfg.SourceOf("listen_addr"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown source", func(c *Config) { c.PageSource = "ftp" }},
		{"negative capacity", func(c *Config) { c.HistoryCapacity = -1 }},
		{"zero timeout", func(c *Config) { c.LoadingTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	assert.Equal(t, "https://api.test", NormalizeBaseURL("https://api.test/"))
	assert.Equal(t, "https://api.test", NormalizeBaseURL("https://api.test"))
	assert.Equal(t, "https://api.test", NormalizeBaseURL("api.test"))
}

func TestWatcherReloads(t *testing.T) {
	global, _ := isolate(t)
	writeConfig(t, global, map[string]any{"history_capacity": 4})

	w, err := NewWatcher(FlagOverrides{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan *Config, 8)
	go w.Run(ctx, func(cfg *Config) { reloaded <- cfg })

	writeConfig(t, global, map[string]any{"history_capacity": 2})

	// A truncating write can surface an empty file first.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-reloaded:
			if cfg.HistoryCapacity == 2 {
				return
			}
		case <-deadline:
			t.Fatal("config was not reloaded")
		}
	}
}
