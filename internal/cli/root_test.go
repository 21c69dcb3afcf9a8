package cli

import (
	"errors"
	"io"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"

	"github.com/basecamp/storefront/internal/output"
)

func TestTransformCobraError(t *testing.T) {
	tests := []struct {
		in   string
		want string
		code string
	}{
		{"flag needs an argument: --jq", "--jq requires a value", output.CodeUsage},
		{"unknown flag: --nope", "Unknown option: --nope", output.CodeUsage},
		{"unknown shorthand flag: 'x' in -x", "Unknown option: -x", output.CodeUsage},
		{`unknown command "bogus" for "storefront"`, `unknown command "bogus" for "storefront"`, output.CodeUsage},
		{"accepts 1 arg(s), received 0", "accepts 1 arg(s), received 0", output.CodeUsage},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := output.AsError(transformCobraError(errors.New(tt.in)))
			assert.Equal(t, tt.want, got.Message)
			assert.Equal(t, tt.code, got.Code)
		})
	}
}

func TestTransformCobraErrorPassesThrough(t *testing.T) {
	err := errors.New("something else")
	assert.Same(t, err, transformCobraError(err))
}

func TestRootFlags(t *testing.T) {
	cmd := NewRootCmd()
	for _, name := range []string{"json", "quiet", "styled", "jq", "source", "catalog", "storefront", "language", "verbose", "stats", "cache-dir"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestSnakeCaseFlagSpelling(t *testing.T) {
	cmd := NewRootCmd()
	assert.NotNil(t, cmd.PersistentFlags().Lookup("cache_dir"))
	assert.Equal(t, pflag.NormalizedName("cache-dir"), normalizeFlagName(nil, "cache_dir"))
}

func TestFlagErrorIsUsage(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{"--nope"})
	cmd.SetOut(io.Discard)
	err := cmd.Execute()

	got := output.AsError(err)
	assert.Equal(t, output.CodeUsage, got.Code)
	assert.Equal(t, "Unknown option: --nope", got.Message)
}

func TestFlagErrorHintsNegativeValues(t *testing.T) {
	got := output.AsError(flagError(nil, errors.New("unknown shorthand flag: '1' in -1")))
	assert.Equal(t, output.CodeUsage, got.Code)
	assert.Equal(t, "Unknown option: -1", got.Message)
	assert.Contains(t, got.Hint, "after --")

	got = output.AsError(flagError(nil, errors.New("bad flag syntax: ---x")))
	assert.Equal(t, output.CodeUsage, got.Code)
	assert.Empty(t, got.Hint)
}
