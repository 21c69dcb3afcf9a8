package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basecamp/storefront/internal/config"
)

func TestAtomicWriteFile_OverwriteExisting(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	// Create initial file
	require.NoError(t, atomicWriteFile(path, []byte(`{"v":1}`)))

	// Overwrite (exercises the Windows pre-remove path)
	require.NoError(t, atomicWriteFile(path, []byte(`{"v":2}`)),
		"overwrite of existing file must succeed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(data))
}

func TestAtomicWriteFile_Permissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "secret.json")

	require.NoError(t, atomicWriteFile(path, []byte(`{}`)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(),
		"file should have restricted permissions")
}

func TestAtomicWriteFile_NoStaleTempFiles(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	require.NoError(t, atomicWriteFile(path, []byte(`{}`)))

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	for _, e := range entries {
		if e.Name() != "config.json" {
			t.Errorf("stale temp file left behind: %s", e.Name())
		}
	}
}

func TestParseConfigValue(t *testing.T) {
	tests := []struct {
		key, value string
		want       any
		wantErr    bool
	}{
		{"history_capacity", "0", 0, false},
		{"history_capacity", "12", 12, false},
		{"history_capacity", "twelve", nil, true},
		{"loading_timeout", "750ms", "750ms", false},
		{"loading_timeout", "0s", nil, true},
		{"fixture_latency", "0s", "0s", false},
		{"verbose", "yes", true, false},
		{"verbose", "maybe", nil, true},
		{"source", "api", "api", false},
		{"storefront", "gb", "gb", false},
		{"api_url", "media.example.com/", "https://media.example.com", false},
		{"api_url", "http://media.example.com", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got, err := parseConfigValue(tt.key, tt.value)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigKeysCoverEffectiveConfig(t *testing.T) {
	values := configValues(config.Default())
	for _, key := range configKeys {
		_, ok := values[key]
		assert.True(t, ok, key)
	}
	assert.Len(t, values, len(configKeys))
}

func TestReadConfigFileMissingAndMalformed(t *testing.T) {
	dir := t.TempDir()

	data, err := readConfigFile(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, data)

	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	data, err = readConfigFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}
