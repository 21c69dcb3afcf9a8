package hostutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"  ", ""},

		// Full URLs pass through, minus a trailing slash
		{"https://api.example.com", "https://api.example.com"},
		{"https://api.example.com/", "https://api.example.com"},
		{"http://localhost:3000", "http://localhost:3000"},

		// Loopback hosts get http
		{"localhost", "http://localhost"},
		{"localhost:3000", "http://localhost:3000"},
		{"127.0.0.1:8080", "http://127.0.0.1:8080"},
		{"[::1]:3000", "http://[::1]:3000"},
		{"media.localhost", "http://media.localhost"},

		// Everything else gets https
		{"api.example.com", "https://api.example.com"},
		{"api.example.com:8443/", "https://api.example.com:8443"},
		{"localhost.example.com", "https://localhost.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestParseAPIURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  string
	}{
		{"api.example.com", "https://api.example.com", ""},
		{"https://api.example.com/v2/", "https://api.example.com/v2", ""},
		{"localhost:3001", "http://localhost:3001", ""},
		{"http://127.0.0.1:8080", "http://127.0.0.1:8080", ""},

		{"http://api.example.com", "", "must use https"},
		{"ftp://api.example.com", "", "must be an http(s) URL"},
		{"https://api.example.com/?x=1", "", "must not carry a query"},
		{"", "", "is not a URL"},
		{"https://", "", "is not a URL"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAPIURL(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"localhost", true},
		{"localhost:3000", true},
		{"app.localhost", true},
		{"foo.bar.localhost:8080", true},
		{"127.0.0.1", true},
		{"127.0.0.1:3000", true},
		{"[::1]", true},
		{"[::1]:3000", true},

		{"example.com", false},
		{"localhost.example.com", false},
		{"192.168.1.1", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsLocalhost(tt.input))
		})
	}
}
