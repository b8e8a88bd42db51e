// Package credential keeps provider access tokens in the system keyring.
package credential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"
)

// DefaultService is the keyring service name used when none is configured.
const DefaultService = "mail-integration"

// ErrNotFound is returned when no token is stored for a key.
var ErrNotFound = errors.New("credential not found")

// Config selects the keyring service and the directory of the encrypted
// file backend.
type Config struct {
	Service string
	FileDir string
}

// Store reads and writes access tokens keyed by provider and account.
type Store struct {
	ring keyring.Keyring
}

// Open opens the system keyring, falling back to an encrypted file.
func Open(cfg Config) (*Store, error) {
	service := cfg.Service
	if service == "" {
		service = DefaultService
	}
	fileDir := cfg.FileDir
	if fileDir == "" {
		fileDir = "~/.config/" + service + "/credentials"
	}
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewStore(ring), nil
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Key builds the keyring key for a provider and optional account.
func Key(provider, account string) string {
	key := "token:" + strings.ToLower(strings.TrimSpace(provider))
	if account = strings.TrimSpace(account); account != "" {
		key += ":" + strings.ToLower(account)
	}
	return key
}

// Token returns the stored access token.
func (s *Store) Token(provider, account string) (string, error) {
	key := Key(provider, account)
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// SetToken stores an access token, replacing any previous value.
func (s *Store) SetToken(provider, account, token string) error {
	key := Key(provider, account)
	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(token),
		Label: "mail access token (" + provider + ")",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// DeleteToken removes a stored token.
func (s *Store) DeleteToken(provider, account string) error {
	key := Key(provider, account)
	err := s.ring.Remove(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}
