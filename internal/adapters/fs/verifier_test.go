package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/adapters/fs"
)

// sha256("hello world\n")
const helloDigest = "a948904f2f0f479b8f8197694b30184b0d2ed1c1cd2a1ec0fb85d299a192a447"

func writeHello(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world\n"), 0o644))
	return path
}

func TestVerifier_FileDigest(t *testing.T) {
	t.Parallel()

	v := fs.NewVerifier()
	digest, err := v.FileDigest(writeHello(t))
	require.NoError(t, err)
	assert.Equal(t, helloDigest, digest)
}

func TestVerifier_FileDigest_Missing(t *testing.T) {
	t.Parallel()

	v := fs.NewVerifier()
	_, err := v.FileDigest(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestVerifier_Verify(t *testing.T) {
	t.Parallel()

	v := fs.NewVerifier()
	path := writeHello(t)

	ok, err := v.Verify(path, helloDigest)
	require.NoError(t, err)
	assert.True(t, ok)

	// Expected digests are matched case-insensitively.
	ok, err = v.Verify(path, "A948904F2F0F479B8F8197694B30184B0D2ED1C1CD2A1EC0FB85D299A192A447")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify(path, "0000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.False(t, ok)
}
