package ports

import (
	"time"

	"go.trai.ch/forge/internal/core/domain"
)

// Artifact is the metadata of one cached build result. The blob itself is a
// self-contained installable tree packed by the store; callers never touch it
// directly.
type Artifact struct {
	Fingerprint domain.Fingerprint `json:"fingerprint"`
	Size        int64              `json:"size"`
	Package     string             `json:"package"`
	Version     string             `json:"version"`
	CreatedAt   time.Time          `json:"created_at"`
}

// ArtifactStore is the content-addressable build cache. Keys are opaque
// fingerprints; stored blobs are immutable. Concurrent Gets are safe and
// conflicting Puts for the same key serialize without corruption. The store
// never evicts on its own; pruning is an explicit Clean call.
type ArtifactStore interface {
	// Get returns the artifact metadata for a fingerprint, or (nil, nil) on
	// a miss. Stores with a remote backend consult it here and populate the
	// local store on a remote hit.
	Get(fp domain.Fingerprint) (*Artifact, error)

	// Put packs the installable tree at dir into a blob stored under fp.
	// A put for an already-present key is a no-op, never an overwrite:
	// fingerprints are content-deterministic.
	Put(fp domain.Fingerprint, dir string, meta Artifact) error

	// Restore unpacks the blob for fp into dest.
	Restore(fp domain.Fingerprint, dest string) error

	// Export writes the whole store as an archive of objects plus an index.
	Export(dest string) error

	// Import merges an exported archive into the store.
	Import(src string) error

	// Info summarizes the store contents.
	Info() (StoreInfo, error)

	// Clean removes every stored object. It is only ever user-triggered.
	Clean() error
}

// StoreInfo summarizes a store's contents.
type StoreInfo struct {
	Objects    int   `json:"objects"`
	TotalBytes int64 `json:"total_bytes"`
}

// StampStore persists the incremental-build stamp of the last successful
// build per package.
type StampStore interface {
	// Get returns the stamp for a package name, or (nil, nil) if absent.
	Get(name string) (*domain.Stamp, error)

	// Put records a stamp, replacing any previous one.
	Put(stamp domain.Stamp) error
}
