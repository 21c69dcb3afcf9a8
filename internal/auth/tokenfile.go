package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// TokenFileName is the plaintext fallback used when no keyring is available.
const TokenFileName = "tokens.json"

const tokenFileVersion = 1

type tokenFile struct {
	Version int              `json:"version"`
	Tokens  map[string]Token `json:"tokens"`
}

// fileBackend keeps every origin's token in one 0600 file. Writers hold a
// flock and replace the file by rename.
type fileBackend struct {
	dir string
}

func (f fileBackend) name() string { return BackendFile }

func (f fileBackend) path() string {
	return filepath.Join(f.dir, TokenFileName)
}

func (f fileBackend) read() (tokenFile, error) {
	tf := tokenFile{Version: tokenFileVersion, Tokens: map[string]Token{}}
	data, err := os.ReadFile(f.path())
	if errors.Is(err, os.ErrNotExist) {
		return tf, nil
	}
	if err != nil {
		return tf, err
	}
	if err := json.Unmarshal(data, &tf); err != nil {
		return tf, fmt.Errorf("%s: %w", f.path(), err)
	}
	if tf.Tokens == nil {
		tf.Tokens = map[string]Token{}
	}
	return tf, nil
}

func (f fileBackend) update(fn func(*tokenFile) error) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}

	fl := flock.New(f.path() + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	locked, err := fl.TryLockContext(ctx, 20*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock %s: %w", f.path(), err)
	}
	if !locked {
		return errors.New("token file is locked by another process")
	}
	defer func() { _ = fl.Unlock() }()

	tf, err := f.read()
	if err != nil {
		return err
	}
	if err := fn(&tf); err != nil {
		return err
	}
	tf.Version = tokenFileVersion

	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, ".tokens-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path())
}

func (f fileBackend) get(origin string) (Token, error) {
	tf, err := f.read()
	if err != nil {
		return Token{}, err
	}
	t, ok := tf.Tokens[origin]
	if !ok {
		return Token{}, ErrNotFound
	}
	return t, nil
}

func (f fileBackend) put(origin string, t Token) error {
	return f.update(func(tf *tokenFile) error {
		tf.Tokens[origin] = t
		return nil
	})
}

func (f fileBackend) remove(origin string) error {
	return f.update(func(tf *tokenFile) error {
		if _, ok := tf.Tokens[origin]; !ok {
			return ErrNotFound
		}
		delete(tf.Tokens, origin)
		return nil
	})
}
