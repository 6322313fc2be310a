package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/adapters/fs"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

type quietLogger struct{}

func (quietLogger) Info(string) {}

func (quietLogger) Warn(string) {}

func (quietLogger) Error(error) {}

func testDownloader() *Downloader {
	d := NewDownloader(fs.NewVerifier(), quietLogger{}, 2)
	d.backoff = time.Millisecond
	return d
}

func digestOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestDownloader_FetchAndVerify(t *testing.T) {
	t.Parallel()

	payload := []byte("source tarball bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "pkg.tar.gz")
	err := testDownloader().Fetch(context.Background(), server.URL, dest, digestOf(payload), false)
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.NoFileExists(t, dest+".part")
}

func TestDownloader_ExistingValidDestIsNoOp(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("content"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "pkg.tar.gz")
	require.NoError(t, os.WriteFile(dest, []byte("content"), 0o644))

	err := testDownloader().Fetch(context.Background(), server.URL, dest, digestOf([]byte("content")), false)
	require.NoError(t, err)
	assert.Zero(t, hits.Load())
}

func TestDownloader_ForceRedownloads(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("content"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "pkg.tar.gz")
	require.NoError(t, os.WriteFile(dest, []byte("content"), 0o644))

	err := testDownloader().Fetch(context.Background(), server.URL, dest, digestOf([]byte("content")), true)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDownloader_EmptyDigestSkipsVerification(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("unpinned toolchain archive"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "toolchain.tar.bz2")
	err := testDownloader().Fetch(context.Background(), server.URL, dest, "", false)
	require.NoError(t, err)
	assert.FileExists(t, dest)

	// A second fetch sees the existing file and stays offline.
	server.Close()
	err = testDownloader().Fetch(context.Background(), server.URL, dest, "", false)
	assert.NoError(t, err)
}

func TestDownloader_PersistentCorruptionExhaustsRetries(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("corrupted"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "pkg.tar.gz")
	expected := digestOf([]byte("pristine"))

	err := testDownloader().Fetch(context.Background(), server.URL, dest, expected, false)
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrDownloadFailed.Error())
	assert.ErrorContains(t, err, domain.ErrChecksumMismatch.Error())
	assert.Equal(t, int32(maxAttempts), hits.Load())

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	assert.Equal(t, server.URL, zErr.Metadata()["url"])
	assert.Equal(t, maxAttempts, zErr.Metadata()["attempts"])

	// Neither a corrupt temp file nor a partial dest survives.
	assert.NoFileExists(t, dest)
	assert.NoFileExists(t, dest+".part")
}

func TestDownloader_RecoversOnRetry(t *testing.T) {
	t.Parallel()

	payload := []byte("eventually consistent")
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "pkg.tar.gz")
	err := testDownloader().Fetch(context.Background(), server.URL, dest, digestOf(payload), false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestDownloader_ContextCancelStopsRetrying(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDownloader(fs.NewVerifier(), quietLogger{}, 1)
	d.backoff = time.Hour
	cancel()

	dest := filepath.Join(t.TempDir(), "pkg.tar.gz")
	err := d.Fetch(ctx, server.URL, dest, digestOf([]byte("x")), false)
	assert.Error(t, err)
}
