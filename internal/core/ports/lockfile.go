package ports

import "go.trai.ch/forge/internal/core/domain"

// LockStore reads and writes the lock file. Writes are atomic
// (write-to-temp-then-rename) so interruption never leaves a partial file.
type LockStore interface {
	// Load returns the lock file, or (nil, nil) if none exists.
	Load() (*domain.LockFile, error)

	// Save overwrites the lock file.
	Save(lf *domain.LockFile) error
}
