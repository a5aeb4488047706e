// Package userstore keeps the user the CLI is logged in as.
package userstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileName is the name of the file holding the current user.
const FileName = "user.json"

// StoredUser is the current user and its session token.
type StoredUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token,omitempty"`
}

// Store reads and writes the current user file.
type Store struct {
	fs   afero.Afero
	path string
}

// New returns a store keeping its file in dir.
func New(fs afero.Fs, dir string) *Store {
	return &Store{fs: afero.Afero{Fs: fs}, path: filepath.Join(dir, FileName)}
}

// DefaultDir returns $XDG_DATA_HOME/markdb, or ~/.local/share/markdb.
func DefaultDir(getenv func(string) string) (string, error) {
	if d := getenv("XDG_DATA_HOME"); d != "" {
		return filepath.Join(d, "markdb"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to find the home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "markdb"), nil
}

// Path returns the file path.
func (s *Store) Path() string {
	return s.path
}

// Get returns the current user, or nil when none is set.
func (s *Store) Get() (*StoredUser, error) {
	b, err := s.fs.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u := &StoredUser{}
	if err := json.Unmarshal(b, u); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return u, nil
}

// Set replaces the current user.
func (s *Store) Set(u *StoredUser) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return err
	}
	// The file holds a session token.
	return s.fs.WriteFile(s.path, append(b, '\n'), 0o600)
}

// Clear removes the current user. It is not an error when none is set.
func (s *Store) Clear() error {
	if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
