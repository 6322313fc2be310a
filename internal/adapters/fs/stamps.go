package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.StampStore = (*StampStore)(nil)

// StampStore persists incremental-build stamps as one JSON file per package.
// Filenames are the sha256 of the package name so arbitrary names stay
// filesystem-safe.
type StampStore struct {
	dir string
}

// NewStampStore creates a stamp store rooted at dir.
func NewStampStore(dir string) *StampStore {
	return &StampStore{dir: filepath.Clean(dir)}
}

// Get retrieves the stamp for a package, or (nil, nil) if absent.
func (s *StampStore) Get(name string) (*domain.Stamp, error) {
	data, err := os.ReadFile(s.filename(name)) //nolint:gosec // hashed filename under store dir
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, "failed to read build stamp")
	}

	var stamp domain.Stamp
	if err := json.Unmarshal(data, &stamp); err != nil {
		return nil, zerr.Wrap(err, "failed to unmarshal build stamp")
	}
	return &stamp, nil
}

// Put records a stamp atomically, replacing any previous one.
func (s *StampStore) Put(stamp domain.Stamp) error {
	data, err := json.MarshalIndent(stamp, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal build stamp")
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return zerr.Wrap(err, "failed to create stamp directory")
	}

	target := s.filename(stamp.Name)
	tmp, err := os.CreateTemp(s.dir, ".stamp-*")
	if err != nil {
		return zerr.Wrap(err, "failed to create temp stamp")
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return zerr.Wrap(err, "failed to write build stamp")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return zerr.Wrap(err, "failed to close temp stamp")
	}
	return os.Rename(tmp.Name(), target)
}

func (s *StampStore) filename(name string) string {
	sum := sha256.Sum256([]byte(name))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".json")
}
