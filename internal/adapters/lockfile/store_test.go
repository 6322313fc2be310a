package lockfile_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/adapters/lockfile"
	"go.trai.ch/forge/internal/core/domain"
)

func TestStore_LoadMissingReturnsNil(t *testing.T) {
	t.Parallel()

	store := lockfile.NewStore(filepath.Join(t.TempDir(), "forge.lock"))
	lf, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, lf)
}

func TestStore_SaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "forge.lock")
	store := lockfile.NewStore(path)

	want := domain.NewLockFile("0.3.0", "0.13.0")
	want.GeneratedAt = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	want.Packages["busybox"] = domain.LockEntry{
		Version:      "1.36.1",
		Source:       "registry",
		Checksum:     "a948904f2f0f479b8f8197694b30184b0d2ed1c1cd2a1ec0fb85d299a192a447",
		Dependencies: map[string]string{"musl": "1.2.5"},
		Toolchain:    "zig cc -target aarch64-linux-gnu@0.13.0",
	}
	want.Packages["kernel-config"] = domain.LockEntry{
		Version:  "1.0.0",
		Source:   "git:https://example.org/cfg.git#deadbeef",
		Checksum: "deadbeef",
	}

	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Version, got.Version)
	assert.Equal(t, want.ForgeVersion, got.ForgeVersion)
	assert.Equal(t, want.ToolchainVersion, got.ToolchainVersion)
	assert.Equal(t, want.Packages, got.Packages)
	assert.True(t, want.GeneratedAt.Equal(got.GeneratedAt))
}

func TestStore_SaveIsDeterministic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lf := domain.NewLockFile("0.3.0", "0.13.0")
	lf.GeneratedAt = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for _, name := range []string{"zlib", "musl", "busybox", "dropbear"} {
		lf.Packages[name] = domain.LockEntry{Version: "1.0.0", Source: "registry"}
	}

	first := filepath.Join(dir, "a.lock")
	second := filepath.Join(dir, "b.lock")
	require.NoError(t, lockfile.NewStore(first).Save(lf))
	require.NoError(t, lockfile.NewStore(second).Save(lf))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestStore_SaveOverwrites(t *testing.T) {
	t.Parallel()

	store := lockfile.NewStore(filepath.Join(t.TempDir(), "forge.lock"))

	first := domain.NewLockFile("0.2.0", "0.12.0")
	require.NoError(t, store.Save(first))

	second := domain.NewLockFile("0.3.0", "0.13.0")
	second.Packages["zlib"] = domain.LockEntry{Version: "1.3.1", Source: "registry"}
	require.NoError(t, store.Save(second))

	got, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "0.3.0", got.ForgeVersion)
	require.Len(t, got.Packages, 1)
}
