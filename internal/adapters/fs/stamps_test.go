package fs_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/adapters/fs"
	"go.trai.ch/forge/internal/core/domain"
)

func TestStampStore_MissingReturnsNil(t *testing.T) {
	t.Parallel()

	store := fs.NewStampStore(filepath.Join(t.TempDir(), "stamps"))
	stamp, err := store.Get("busybox")
	require.NoError(t, err)
	assert.Nil(t, stamp)
}

func TestStampStore_PutGetRoundtrip(t *testing.T) {
	t.Parallel()

	store := fs.NewStampStore(filepath.Join(t.TempDir(), "stamps"))
	want := domain.Stamp{Name: "busybox", Version: "1.36.1", Fingerprint: "0011223344556677"}
	require.NoError(t, store.Put(want))

	got, err := store.Get("busybox")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestStampStore_PutReplaces(t *testing.T) {
	t.Parallel()

	store := fs.NewStampStore(filepath.Join(t.TempDir(), "stamps"))
	require.NoError(t, store.Put(domain.Stamp{Name: "zlib", Version: "1.2.13", Fingerprint: "aaaa"}))
	require.NoError(t, store.Put(domain.Stamp{Name: "zlib", Version: "1.3.1", Fingerprint: "bbbb"}))

	got, err := store.Get("zlib")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1.3.1", got.Version)
	assert.Equal(t, domain.Fingerprint("bbbb"), got.Fingerprint)
}

func TestStampStore_NamesAreFilesystemSafe(t *testing.T) {
	t.Parallel()

	store := fs.NewStampStore(filepath.Join(t.TempDir(), "stamps"))
	require.NoError(t, store.Put(domain.Stamp{Name: "weird/../name", Fingerprint: "cccc"}))

	got, err := store.Get("weird/../name")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.Fingerprint("cccc"), got.Fingerprint)
}
