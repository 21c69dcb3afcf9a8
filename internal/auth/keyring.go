package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "storefront"

// keyringBackend keeps one JSON-encoded Token per origin in the system
// keyring.
type keyringBackend struct{}

func keyringAccount(origin string) string {
	return keyringService + "::" + origin
}

// keyringUsable probes the keyring with a throwaway entry. Headless Linux
// sessions often have no secret service running.
func keyringUsable() bool {
	probe := keyringAccount("probe")
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, probe)
	return true
}

func (keyringBackend) name() string { return BackendKeyring }

func (keyringBackend) get(origin string) (Token, error) {
	data, err := keyring.Get(keyringService, keyringAccount(origin))
	if errors.Is(err, keyring.ErrNotFound) {
		return Token{}, ErrNotFound
	}
	if err != nil {
		return Token{}, err
	}

	var t Token
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return Token{}, fmt.Errorf("keyring entry for %s: %w", origin, err)
	}
	return t, nil
}

func (keyringBackend) put(origin string, t Token) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return keyring.Set(keyringService, keyringAccount(origin), string(data))
}

func (keyringBackend) remove(origin string) error {
	err := keyring.Delete(keyringService, keyringAccount(origin))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
