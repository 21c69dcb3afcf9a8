package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
)

const (
	// SessionFileName is the session file inside the store directory.
	SessionFileName = "session.json"

	// SessionVersion is the current session file format.
	SessionVersion = 1

	// LockTimeout bounds the wait for the session lock. When it expires the
	// operation proceeds unlocked rather than hanging the CLI.
	LockTimeout = 100 * time.Millisecond
)

// Session is a persisted history stack. Entry identifiers survive so a
// reloaded browser can still be correlated with stored state.
type Session struct {
	Version int       `json:"version"`
	Entries []Entry   `json:"entries"`
	Index   int       `json:"index"`
	SavedAt time.Time `json:"saved_at"`
}

// Snapshot captures the browser's history stack.
func (b *Browser) Snapshot() *Session {
	entries, index := b.Entries()
	return &Session{Version: SessionVersion, Entries: entries, Index: index}
}

// Restore creates a browser positioned on a saved session's live entry.
func Restore(s *Session) (*Browser, error) {
	if s == nil || len(s.Entries) == 0 {
		return nil, errors.New("restore: empty session")
	}
	if s.Index < 0 || s.Index >= len(s.Entries) {
		return nil, fmt.Errorf("restore: index %d out of range (%d entries)", s.Index, len(s.Entries))
	}
	b := New(s.Entries[0].URL)
	b.entries = append([]Entry(nil), s.Entries...)
	b.index = s.Index
	return b, nil
}

// SessionStore reads and writes a Session under a file lock.
type SessionStore struct {
	dir string
}

// NewSessionStore creates a store rooted at dir.
func NewSessionStore(dir string) *SessionStore {
	return &SessionStore{dir: dir}
}

// Path returns the session file path.
func (s *SessionStore) Path() string {
	return filepath.Join(s.dir, SessionFileName)
}

func (s *SessionStore) lockPath() string {
	return filepath.Join(s.dir, ".session.lock")
}

// acquireLock returns nil without error when the lock is busy past
// LockTimeout.
func (s *SessionStore) acquireLock() (*flock.Flock, error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, err
	}

	fl := flock.New(s.lockPath())
	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, nil
		}
		return nil, err
	}
	if !locked {
		return nil, nil
	}
	return fl, nil
}

func release(fl *flock.Flock) {
	if fl != nil {
		_ = fl.Unlock()
	}
}

// Load reads the saved session. It returns nil, nil when none exists or the
// file is unreadable as a session.
func (s *SessionStore) Load() (*Session, error) {
	fl, err := s.acquireLock()
	if err != nil {
		return nil, err
	}
	defer release(fl)

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil || session.Version != SessionVersion {
		return nil, nil
	}
	return &session, nil
}

// Save writes session atomically.
func (s *SessionStore) Save(session *Session) error {
	fl, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer release(fl)

	session.Version = SessionVersion
	session.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := fmt.Sprintf("%s.%d.%d.tmp", s.Path(), os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if runtime.GOOS == "windows" {
		_ = os.Remove(s.Path())
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// Clear removes the saved session.
func (s *SessionStore) Clear() error {
	fl, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer release(fl)

	if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
