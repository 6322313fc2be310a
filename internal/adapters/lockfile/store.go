// Package lockfile persists the reproducibility lock file as TOML.
package lockfile

import (
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.LockStore = (*Store)(nil)

// Store reads and writes the lock file at a fixed path.
type Store struct {
	path string
}

// NewStore creates a lock store for the given path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the lock file, or (nil, nil) if none exists.
func (s *Store) Load() (*domain.LockFile, error) {
	data, err := os.ReadFile(s.path) //nolint:gosec // Path is the project lock file
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, "failed to read lock file")
	}

	var lf domain.LockFile
	if err := toml.Unmarshal(data, &lf); err != nil {
		return nil, zerr.Wrap(err, "failed to parse lock file")
	}
	return &lf, nil
}

// Save overwrites the lock file atomically. go-toml renders the packages
// table with sorted keys, so output is deterministic for identical inputs.
func (s *Store) Save(lf *domain.LockFile) error {
	data, err := toml.Marshal(lf)
	if err != nil {
		return zerr.Wrap(err, "failed to marshal lock file")
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".lock-*")
	if err != nil {
		return zerr.Wrap(err, "failed to create temp lock file")
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return zerr.Wrap(err, "failed to write lock file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return zerr.Wrap(err, "failed to close temp lock file")
	}
	return os.Rename(tmp.Name(), s.path)
}
