// Package auth stores the media API token, one per API origin, in the
// system keyring or a plaintext fallback file.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/basecamp/storefront/internal/config"
	"github.com/basecamp/storefront/internal/output"
)

const (
	// TokenEnv overrides any stored token.
	TokenEnv = "STOREFRONT_TOKEN"
	// NoKeyringEnv forces the file backend.
	NoKeyringEnv = "STOREFRONT_NO_KEYRING"
)

// Backend names.
const (
	BackendKeyring = "keyring"
	BackendFile    = "file"
)

// ErrNotFound is returned when no token is stored for an origin.
var ErrNotFound = errors.New("no stored token")

// Token is a stored bearer token.
type Token struct {
	Value   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

type backend interface {
	name() string
	get(origin string) (Token, error)
	put(origin string, t Token) error
	remove(origin string) error
}

// Status describes where the token for an origin comes from.
type Status struct {
	Origin        string
	Authenticated bool
	// Source is TokenEnv, a backend name, or empty when unauthenticated.
	Source  string
	SavedAt time.Time
}

// Manager resolves the bearer token for one API origin.
type Manager struct {
	origin  string
	backend backend
	now     func() time.Time

	mu sync.Mutex
}

// NewManager creates a manager for cfg's API origin. It uses the system
// keyring unless STOREFRONT_NO_KEYRING is set or the keyring is unusable.
func NewManager(cfg *config.Config) *Manager {
	dir := config.GlobalConfigDir()
	if os.Getenv(NoKeyringEnv) == "" && keyringUsable() {
		return newManager(cfg, keyringBackend{})
	}
	if os.Getenv(NoKeyringEnv) == "" {
		fmt.Fprintf(os.Stderr, "warning: system keyring unavailable, tokens stored in plaintext at %s\n",
			fileBackend{dir: dir}.path())
	}
	return NewFileManager(cfg, dir)
}

// NewFileManager creates a manager that keeps tokens in dir.
func NewFileManager(cfg *config.Config, dir string) *Manager {
	return newManager(cfg, fileBackend{dir: dir})
}

func newManager(cfg *config.Config, b backend) *Manager {
	return &Manager{
		origin:  config.NormalizeBaseURL(cfg.APIURL),
		backend: b,
		now:     time.Now,
	}
}

// AccessToken returns the token for the API origin. STOREFRONT_TOKEN wins
// over anything stored.
func (m *Manager) AccessToken(_ context.Context) (string, error) {
	if token := os.Getenv(TokenEnv); token != "" {
		return token, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.backend.get(m.origin)
	if err != nil || t.Value == "" {
		return "", output.ErrAuth("Not authenticated")
	}
	return t.Value, nil
}

// IsAuthenticated reports whether a token is available.
func (m *Manager) IsAuthenticated() bool {
	_, err := m.AccessToken(context.Background())
	return err == nil
}

// Status reports whether a token is available and where it comes from.
func (m *Manager) Status() Status {
	s := Status{Origin: m.origin}
	if os.Getenv(TokenEnv) != "" {
		s.Authenticated, s.Source = true, TokenEnv
		return s
	}

	m.mu.Lock()
	t, err := m.backend.get(m.origin)
	m.mu.Unlock()
	if err != nil || t.Value == "" {
		return s
	}
	s.Authenticated, s.Source, s.SavedAt = true, m.backend.name(), t.SavedAt
	return s
}

// SetToken stores token for the API origin.
func (m *Manager) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return output.ErrUsage("Token must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend.put(m.origin, Token{Value: token, SavedAt: m.now().UTC()})
}

// Logout removes the stored token. Removing a missing token is not an error.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.backend.remove(m.origin)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Origin returns the API origin tokens are stored under.
func (m *Manager) Origin() string {
	return m.origin
}

// Backend returns BackendKeyring or BackendFile.
func (m *Manager) Backend() string {
	return m.backend.name()
}
