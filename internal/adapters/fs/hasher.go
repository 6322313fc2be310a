package fs

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
)

var _ ports.Fingerprinter = (*Hasher)(nil)

// Hasher computes build fingerprints with XXHash. Sections are separated by
// NUL bytes and maps are written in sorted key order, so identical inputs
// always produce identical fingerprints.
type Hasher struct{}

// NewHasher creates a new Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// Fingerprint digests everything that influences a package build: source
// identity, patches in order, serialized configuration, the fingerprints of
// every build-time dependency, the target triple and the toolchain identity.
func (h *Hasher) Fingerprint(in domain.FingerprintInput) domain.Fingerprint {
	d := xxhash.New()

	section := func(parts ...string) {
		for _, p := range parts {
			_, _ = d.WriteString(p)
			_, _ = d.Write([]byte{0})
		}
		_, _ = d.Write([]byte{0})
	}

	section(in.Name, in.Version)
	section(in.SourceDigest)
	section(in.PatchDigests...)
	section(in.Config)

	deps := make([]string, 0, len(in.DepFingerprints))
	for name := range in.DepFingerprints {
		deps = append(deps, name)
	}
	sort.Strings(deps)
	for _, name := range deps {
		section(name, in.DepFingerprints[name].String())
	}
	_, _ = d.Write([]byte{0})

	section(in.Target, in.ToolchainID)

	return domain.Fingerprint(fmt.Sprintf("%016x", d.Sum64()))
}
