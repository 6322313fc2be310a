package ports

import (
	"context"

	"go.trai.ch/forge/internal/core/domain"
)

// Downloader fetches remote artifacts with checksum-gated integrity.
// Implementations bound their own parallelism; callers beyond the bound
// queue rather than fail.
type Downloader interface {
	// Fetch downloads url into dest and verifies it against sha256 (hex).
	// A dest that already matches is a no-op unless force is set. A corrupt
	// download is deleted before any retry; after the final attempt the
	// error carries the chain of prior failures. An empty sha256 skips
	// verification for sources that publish no digest.
	Fetch(ctx context.Context, url, dest, sha256 string, force bool) error
}

// GitFetcher materializes git-sourced packages.
type GitFetcher interface {
	// Clone clones url into dest and checks out ref. It returns the resolved
	// commit SHA: for branch refs that is the lock-file record the caller
	// needs; tags and explicit commits resolve to themselves.
	Clone(ctx context.Context, url string, ref domain.GitRef, dest string) (commit string, err error)
}

// Verifier hashes a byte stream and compares it to an expected digest.
type Verifier interface {
	// FileDigest returns the sha256 hex digest of the file at path.
	FileDigest(path string) (string, error)

	// Verify reports whether the file content matches expected (hex,
	// case-insensitive).
	Verify(path, expected string) (bool, error)
}
