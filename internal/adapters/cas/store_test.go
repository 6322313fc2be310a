package cas_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/adapters/cas"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
)

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Info(string) {}

func (l *recordingLogger) Warn(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(error) {}

func newStore(t *testing.T) (*cas.Store, *recordingLogger) {
	t.Helper()

	logger := &recordingLogger{}
	store, err := cas.NewStore(t.TempDir(), nil, logger)
	require.NoError(t, err)
	return store, logger
}

func stageTree(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "usr", "bin"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "usr", "bin", "busybox"), []byte("ELF..."), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "etc-profile"), []byte("export PATH=/usr/bin"), 0o644))
	require.NoError(t, os.Symlink("busybox", filepath.Join(dir, "usr", "bin", "sh")))
	return dir
}

func TestStore_PutGetRestoreRoundtrip(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	tree := stageTree(t)
	fp := domain.Fingerprint("0011223344556677")

	require.NoError(t, store.Put(fp, tree, ports.Artifact{Package: "busybox", Version: "1.36.1"}))

	meta, err := store.Get(fp)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, fp, meta.Fingerprint)
	assert.Equal(t, "busybox", meta.Package)
	assert.Positive(t, meta.Size)

	dest := filepath.Join(t.TempDir(), "restored")
	require.NoError(t, store.Restore(fp, dest))

	data, err := os.ReadFile(filepath.Join(dest, "usr", "bin", "busybox"))
	require.NoError(t, err)
	assert.Equal(t, "ELF...", string(data))

	info, err := os.Stat(filepath.Join(dest, "usr", "bin", "busybox"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	link, err := os.Readlink(filepath.Join(dest, "usr", "bin", "sh"))
	require.NoError(t, err)
	assert.Equal(t, "busybox", link)
}

func TestStore_GetMiss(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	meta, err := store.Get("ffffffffffffffff")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestStore_DuplicatePutIsDropped(t *testing.T) {
	t.Parallel()

	store, logger := newStore(t)
	tree := stageTree(t)
	fp := domain.Fingerprint("0011223344556677")

	require.NoError(t, store.Put(fp, tree, ports.Artifact{Package: "busybox"}))
	require.NoError(t, store.Put(fp, tree, ports.Artifact{Package: "busybox"}))

	info, err := store.Info()
	require.NoError(t, err)
	assert.Equal(t, 1, info.Objects)
	require.Len(t, logger.warns, 1)
	assert.Contains(t, logger.warns[0], "duplicate put")
}

func TestStore_PackingIsDeterministic(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store, err := cas.NewStore(root, nil, &recordingLogger{})
	require.NoError(t, err)
	tree := stageTree(t)

	require.NoError(t, store.Put("aaaaaaaaaaaaaaaa", tree, ports.Artifact{}))
	require.NoError(t, store.Put("bbbbbbbbbbbbbbbb", tree, ports.Artifact{}))

	a, err := os.ReadFile(filepath.Join(root, "objects", "aaaaaaaaaaaaaaaa"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(root, "objects", "bbbbbbbbbbbbbbbb"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStore_InfoAndClean(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	tree := stageTree(t)

	require.NoError(t, store.Put("0000000000000001", tree, ports.Artifact{}))
	require.NoError(t, store.Put("0000000000000002", tree, ports.Artifact{}))

	info, err := store.Info()
	require.NoError(t, err)
	assert.Equal(t, 2, info.Objects)
	assert.Positive(t, info.TotalBytes)

	require.NoError(t, store.Clean())

	info, err = store.Info()
	require.NoError(t, err)
	assert.Zero(t, info.Objects)

	meta, err := store.Get("0000000000000001")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestStore_ExportImportMerge(t *testing.T) {
	t.Parallel()

	src, _ := newStore(t)
	tree := stageTree(t)
	require.NoError(t, src.Put("0000000000000001", tree, ports.Artifact{Package: "zlib", Version: "1.3.1"}))
	require.NoError(t, src.Put("0000000000000002", tree, ports.Artifact{Package: "musl", Version: "1.2.5"}))

	archive := filepath.Join(t.TempDir(), "cache.tar.gz")
	require.NoError(t, src.Export(archive))

	dst, _ := newStore(t)
	// Pre-existing keys survive an import untouched.
	require.NoError(t, dst.Put("0000000000000001", tree, ports.Artifact{Package: "zlib", Version: "1.3.1"}))
	require.NoError(t, dst.Import(archive))

	info, err := dst.Info()
	require.NoError(t, err)
	assert.Equal(t, 2, info.Objects)

	meta, err := dst.Get("0000000000000002")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "musl", meta.Package)

	dest := filepath.Join(t.TempDir(), "restored")
	require.NoError(t, dst.Restore("0000000000000002", dest))
	assert.FileExists(t, filepath.Join(dest, "etc-profile"))
}

func TestStore_RemoteFallthrough(t *testing.T) {
	t.Parallel()

	// A populated upstream store doubles as the remote backend.
	upstreamRoot := t.TempDir()
	upstream, err := cas.NewStore(upstreamRoot, nil, &recordingLogger{})
	require.NoError(t, err)
	tree := stageTree(t)
	fp := domain.Fingerprint("0011223344556677")
	require.NoError(t, upstream.Put(fp, tree, ports.Artifact{Package: "busybox", Version: "1.36.1"}))

	server := httptest.NewServer(http.FileServer(http.Dir(upstreamRoot)))
	defer server.Close()

	local, err := cas.NewStore(t.TempDir(), cas.NewRemote(server.URL), &recordingLogger{})
	require.NoError(t, err)

	meta, err := local.Get(fp)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "busybox", meta.Package)

	// The remote hit is written through: the next lookup is local.
	server.Close()
	meta, err = local.Get(fp)
	require.NoError(t, err)
	require.NotNil(t, meta)

	dest := filepath.Join(t.TempDir(), "restored")
	require.NoError(t, local.Restore(fp, dest))
	assert.FileExists(t, filepath.Join(dest, "usr", "bin", "busybox"))
}

func TestStore_RemoteMissDegradesToLocalMiss(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	store, err := cas.NewStore(t.TempDir(), cas.NewRemote(server.URL), &recordingLogger{})
	require.NoError(t, err)

	meta, err := store.Get("ffffffffffffffff")
	require.NoError(t, err)
	assert.Nil(t, meta)
}
