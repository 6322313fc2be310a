package domain

// Fingerprint is the deterministic digest over everything that influences a
// package build. It serves as both the incremental-build skip key and the
// artifact cache key, so identical inputs must always produce an identical
// value.
type Fingerprint string

// IsZero reports whether the fingerprint is unset.
func (f Fingerprint) IsZero() bool {
	return f == ""
}

func (f Fingerprint) String() string {
	return string(f)
}

// FingerprintInput collects the fingerprint ingredients for one package.
// DepFingerprints carries the already-computed fingerprints of every direct
// build-time dependency, which makes the digest transitive.
type FingerprintInput struct {
	Name    string
	Version string

	// SourceDigest identifies the exact source content: the sha256 of a URL
	// source, the resolved commit of a git source, or the joined digests of a
	// multi-file source.
	SourceDigest string

	// PatchDigests are the digests of applied patches, in application order.
	PatchDigests []string

	// Config is the deterministically serialized build configuration,
	// including resolved option values.
	Config string

	DepFingerprints map[string]Fingerprint

	Target      string
	ToolchainID string
}

// Stamp records the fingerprint of the last successful build of a package,
// persisted by the stamp store for incremental-build skips.
type Stamp struct {
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Fingerprint Fingerprint `json:"fingerprint"`
}
