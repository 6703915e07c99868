// Package auth stores the model registry access token in the OS keychain,
// falling back to a file in the config directory when no keychain is available.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	DefaultService = "vascular"
	DefaultUser    = "registry_token"
	TokenFileName  = "registry_token"
)

var ErrNoToken = errors.New("no registry token saved")

// Store reads and writes a single token.
type Store struct {
	Service string
	User    string
	Dir     string
}

// NewStore returns a store for the registry token that keeps its file fallback in dir.
func NewStore(dir string) *Store {
	return &Store{
		Service: DefaultService,
		User:    DefaultUser,
		Dir:     dir,
	}
}

func (s *Store) filePath() string {
	return filepath.Join(s.Dir, TokenFileName)
}

// Save stores token in the keychain, or in the fallback file when the keychain fails.
func (s *Store) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}

	if err := keyring.Set(s.Service, s.User, token); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		return s.saveFile(token)
	}

	s.removeFile()
	return nil
}

// Get returns the saved token. A token found only in the fallback file is
// moved into the keychain when possible.
func (s *Store) Get() (string, error) {
	token, err := keyring.Get(s.Service, s.User)
	if err == nil && token != "" {
		return token, nil
	}

	token, err = s.readFile()
	if err != nil {
		return "", err
	}

	if migrateErr := keyring.Set(s.Service, s.User, token); migrateErr == nil {
		slog.Info("migrated registry token from file to OS keychain")
		s.removeFile()
	}

	return token, nil
}

// Delete removes the token from the keychain and the fallback file.
func (s *Store) Delete() error {
	err := keyring.Delete(s.Service, s.User)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Debug("keychain delete failed", "error", err)
	}

	if rmErr := os.Remove(s.filePath()); rmErr != nil && !os.IsNotExist(rmErr) {
		return fmt.Errorf("deleting token file: %w", rmErr)
	}
	return nil
}

func (s *Store) saveFile(token string) error {
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return fmt.Errorf("creating token dir %s: %w", s.Dir, err)
	}
	if err := os.WriteFile(s.filePath(), []byte(token), 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

func (s *Store) readFile() (string, error) {
	b, err := os.ReadFile(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("reading token file %s: %w", s.filePath(), err)
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

func (s *Store) removeFile() {
	if err := os.Remove(s.filePath()); err != nil && !os.IsNotExist(err) {
		slog.Debug("failed to remove token file", "error", err)
	}
}
