// Package fs provides filesystem-backed hashing, verification and stamp storage.
package fs

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Verifier = (*Verifier)(nil)

// Verifier hashes files with sha256 and compares against expected digests.
type Verifier struct{}

// NewVerifier creates a new Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// FileDigest returns the sha256 hex digest of the file at path.
func (v *Verifier) FileDigest(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify reports whether the file content matches the expected hex digest,
// case-insensitively.
func (v *Verifier) Verify(path, expected string) (bool, error) {
	actual, err := v.FileDigest(path)
	if err != nil {
		return false, err
	}
	return actual == strings.ToLower(expected), nil
}
