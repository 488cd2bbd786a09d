// Package identity persists the player's credential between runs so
// the client can re-authenticate silently on startup.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Profile is the locally stored identity. The password digest is never
// written to disk; silent re-auth uses the server-issued id instead.
type Profile struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Color    string    `json:"color,omitempty"`
	SavedAt  time.Time `json:"savedAt"`
}

// Store reads and writes the profile file
type Store struct {
	path string
}

// NewStore creates a Store backed by the given file path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns the conventional profile location under the
// user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config dir: %w", err)
	}
	return filepath.Join(dir, "hexhold", "identity.json"), nil
}

// Load reads the stored profile. A missing file is not an error; it
// returns (nil, nil) so callers fall through to fresh registration.
func (s *Store) Load() (*Profile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading identity: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing identity: %w", err)
	}
	if p.ID == "" || p.Username == "" {
		return nil, fmt.Errorf("identity file at %s is incomplete", s.path)
	}
	return &p, nil
}

// Save writes the profile atomically: a temp file in the same
// directory is renamed over the target so a crash mid-write never
// leaves a torn file.
func (s *Store) Save(p Profile) error {
	if p.ID == "" || p.Username == "" {
		return errors.New("refusing to save incomplete identity")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating identity dir: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding identity: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "identity-*.json")
	if err != nil {
		return fmt.Errorf("creating temp identity file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing identity: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing identity file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing identity file: %w", err)
	}
	return nil
}

// Clear removes the stored profile. Clearing an absent profile is a
// no-op.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
