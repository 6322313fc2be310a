package fs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/forge/internal/adapters/fs"
	"go.trai.ch/forge/internal/core/domain"
)

func baseInput() domain.FingerprintInput {
	return domain.FingerprintInput{
		Name:         "busybox",
		Version:      "1.36.1",
		SourceDigest: "a948904f2f0f479b8f8197694b30184b0d2ed1c1cd2a1ec0fb85d299a192a447",
		PatchDigests: []string{"p1", "p2"},
		Config:       "system=make\n",
		DepFingerprints: map[string]domain.Fingerprint{
			"musl": "1111111111111111",
			"zlib": "2222222222222222",
		},
		Target:      "aarch64-linux-gnu",
		ToolchainID: "default:aarch64-linux-gnu",
	}
}

func TestHasher_Deterministic(t *testing.T) {
	t.Parallel()

	h := fs.NewHasher()
	fp := h.Fingerprint(baseInput())
	assert.Len(t, fp.String(), 16)

	// Identical input, fresh maps: map iteration order must not matter.
	assert.Equal(t, fp, h.Fingerprint(baseInput()))
}

func TestHasher_SensitiveToEveryInput(t *testing.T) {
	t.Parallel()

	h := fs.NewHasher()
	base := h.Fingerprint(baseInput())

	mutations := map[string]func(*domain.FingerprintInput){
		"version":       func(in *domain.FingerprintInput) { in.Version = "1.37.0" },
		"source digest": func(in *domain.FingerprintInput) { in.SourceDigest = "other" },
		"patch order":   func(in *domain.FingerprintInput) { in.PatchDigests = []string{"p2", "p1"} },
		"config":        func(in *domain.FingerprintInput) { in.Config = "system=cmake\n" },
		"dep print":     func(in *domain.FingerprintInput) { in.DepFingerprints["zlib"] = "3333333333333333" },
		"target":        func(in *domain.FingerprintInput) { in.Target = "x86_64-linux-gnu" },
		"toolchain":     func(in *domain.FingerprintInput) { in.ToolchainID = "gcc:aarch64-linux-gnu:musl:2024.02" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := baseInput()
			mutate(&in)
			assert.NotEqual(t, base, fs.NewHasher().Fingerprint(in))
		})
	}
}

func TestHasher_FieldBoundaries(t *testing.T) {
	t.Parallel()

	// Moving bytes across a section boundary must change the digest.
	h := fs.NewHasher()
	a := h.Fingerprint(domain.FingerprintInput{Name: "ab", Version: "c"})
	b := h.Fingerprint(domain.FingerprintInput{Name: "a", Version: "bc"})
	assert.NotEqual(t, a, b)
}
