package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestSourceLocator(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "registry", domain.SourceLocator(domain.SourceURL, "", "", "", ""))
	assert.Equal(t, "registry:https://pkgs.example.org",
		domain.SourceLocator(domain.SourceURL, "https://pkgs.example.org", "", "", ""))
	assert.Equal(t, "path:packages/zlib",
		domain.SourceLocator(domain.SourceURL, "", "packages/zlib", "", ""))
	assert.Equal(t, "git:https://example.org/a.git#deadbeef",
		domain.SourceLocator(domain.SourceGit, "", "", "https://example.org/a.git", "deadbeef"))
}

func TestParseSourceLocator(t *testing.T) {
	t.Parallel()

	scheme, rest, err := domain.ParseSourceLocator("registry")
	require.NoError(t, err)
	assert.Equal(t, "registry", scheme)
	assert.Empty(t, rest)

	scheme, rest, err = domain.ParseSourceLocator("git:https://example.org/a.git#deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "git", scheme)
	assert.Equal(t, "https://example.org/a.git#deadbeef", rest)

	_, _, err = domain.ParseSourceLocator("ftp:whatever")
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrInvalidLocator.Error())

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	assert.Equal(t, "ftp", zErr.Metadata()["scheme"])

	_, _, err = domain.ParseSourceLocator("garbage")
	assert.Error(t, err)
}

func TestNewLockFile(t *testing.T) {
	t.Parallel()

	lf := domain.NewLockFile("0.3.0", "0.13.0")
	assert.Equal(t, domain.LockFileVersion, lf.Version)
	assert.Equal(t, "0.3.0", lf.ForgeVersion)
	assert.Equal(t, "0.13.0", lf.ToolchainVersion)
	assert.NotNil(t, lf.Packages)
	assert.False(t, lf.GeneratedAt.IsZero())
}
