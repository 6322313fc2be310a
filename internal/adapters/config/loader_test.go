package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/adapters/config"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "forge.toml", `
[project]
name = "camera-fw"
version = "2.1.0"
description = "IP camera root filesystem"

[board]
name = "rpi4"

[board.options]
"console.baud" = "115200"

[build]
jobs = 8

[packages.busybox]
version = "^1.36"

[packages.busybox.options]
shared = "false"

[packages.zlib]
version = "*"
`)

	m, err := config.LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, "camera-fw", m.Project.Name)
	assert.Equal(t, "2.1.0", m.Project.Version)
	assert.Equal(t, "rpi4", m.BoardName)
	assert.Equal(t, map[string]string{"console.baud": "115200"}, m.BoardOptions)
	assert.Equal(t, 8, m.Jobs)

	// Requirements come out in sorted name order.
	require.Len(t, m.Packages, 2)
	assert.Equal(t, domain.Requirement{Name: "busybox", Constraint: "^1.36", Origin: "forge.toml"}, m.Packages[0])
	assert.Equal(t, domain.Requirement{Name: "zlib", Constraint: "*", Origin: "forge.toml"}, m.Packages[1])
	assert.Equal(t, map[string]string{"shared": "false"}, m.PackageOptions["busybox"])
}

func TestLoadManifest_Defaults(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "forge.toml", `
[project]
name = "minimal"
`)

	m, err := config.LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "0.1.0", m.Project.Version)
	assert.Empty(t, m.BoardName)
	assert.Zero(t, m.Jobs)
	assert.Empty(t, m.Packages)
}

func TestLoadManifest_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing project name", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "forge.toml", `
[project]
version = "1.0.0"
`)
		_, err := config.LoadManifest(path)
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrMissingField.Error())

		var zErr *zerr.Error
		require.ErrorAs(t, err, &zErr)
		assert.Equal(t, "project.name", zErr.Metadata()["field"])
	})

	t.Run("package without version", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "forge.toml", `
[project]
name = "p"

[packages.zlib]
`)
		_, err := config.LoadManifest(path)
		require.Error(t, err)

		var zErr *zerr.Error
		require.ErrorAs(t, err, &zErr)
		assert.Equal(t, "packages.zlib.version", zErr.Metadata()["field"])
	})

	t.Run("malformed toml", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "forge.toml", "[project\nname=")
		_, err := config.LoadManifest(path)
		assert.Error(t, err)
	})
}

func TestLoadPackage(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "package.toml", `
[package]
name = "dropbear"
version = "2024.85"
license = "MIT"
depends = ["zlib >=1.2", "musl"]
requires = ["ca-certificates"]

[source]
url = "https://matt.ucc.asn.au/dropbear/dropbear-2024.85.tar.bz2"
sha256 = "a948904f2f0f479b8f8197694b30184b0d2ed1c1cd2a1ec0fb85d299a192a447"

[build]
type = "autotools"
configure_args = ["--disable-zlib"]
patches = ["patches/dropbear-banner.patch"]

[build.toolchain]
kind = "gcc"
libc = "musl"

[options.mode]
type = "choice"
default = "server"
choices = ["server", "client", "both"]

[[install.files]]
src = "dropbear"
dst = "usr/sbin/dropbear"
`)

	spec, err := config.LoadPackage(path)
	require.NoError(t, err)

	assert.Equal(t, "dropbear", spec.Name)
	assert.Equal(t, "2024.85", spec.Version)
	assert.Equal(t, "MIT", spec.License)
	assert.Equal(t, []domain.Dependency{
		{Name: "zlib", Constraint: ">=1.2"},
		{Name: "musl", Constraint: "*"},
	}, spec.Depends)
	assert.Equal(t, []string{"ca-certificates"}, spec.Requires)

	kind, err := spec.Source.Kind()
	require.NoError(t, err)
	assert.Equal(t, domain.SourceURL, kind)

	assert.Equal(t, "autotools", spec.Build.System)
	assert.Equal(t, []string{"--disable-zlib"}, spec.Build.ConfigureArgs)
	assert.Equal(t, []string{"patches/dropbear-banner.patch"}, spec.Build.Patches)
	assert.Equal(t, domain.ToolchainAuto, spec.Build.Toolchain.Kind)
	assert.Equal(t, "musl", spec.Build.Toolchain.Libc)

	require.Contains(t, spec.Options, "mode")
	assert.Equal(t, domain.OptionChoice, spec.Options["mode"].Type)
	assert.Equal(t, "server", spec.Options["mode"].Default)

	assert.Equal(t, []domain.CopyRule{{Src: "dropbear", Dst: "usr/sbin/dropbear"}}, spec.Install.Copy)
}

func TestLoadPackage_GitSource(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "package.toml", `
[package]
name = "kernel-config"
version = "1.0.0"

[source]
git = "https://example.org/cfg.git"
tag = "v1.0.0"

[build]
[[build.steps]]
run = "sh"
args = ["-c", "cp config $DESTDIR/boot/config"]
`)

	spec, err := config.LoadPackage(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/cfg.git", spec.Source.Git)
	assert.Equal(t, "v1.0.0", spec.Source.Ref.Tag)
	require.Len(t, spec.Build.Steps, 1)
	assert.Equal(t, "sh", spec.Build.Steps[0].Run)
}

func TestLoadPackage_ValidationFailures(t *testing.T) {
	t.Parallel()

	t.Run("conflicting sources", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "package.toml", `
[package]
name = "p"
version = "1.0.0"

[source]
url = "https://example.org/p.tar.gz"
sha256 = "00"
git = "https://example.org/p.git"
tag = "v1"
`)
		_, err := config.LoadPackage(path)
		require.Error(t, err)
		assert.ErrorContains(t, err, domain.ErrInvalidSource.Error())
	})

	t.Run("url without sha256", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "package.toml", `
[package]
name = "p"
version = "1.0.0"

[source]
url = "https://example.org/p.tar.gz"
`)
		_, err := config.LoadPackage(path)
		require.Error(t, err)

		var zErr *zerr.Error
		require.ErrorAs(t, err, &zErr)
		assert.Equal(t, "source.sha256", zErr.Metadata()["field"])
	})
}

func TestLoadBoard(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "rpi4.yaml", `
name: rpi4
target: aarch64-linux-gnu
cpu: cortex-a72
options:
  console.baud: "115200"
`)

	board, err := config.LoadBoard(path)
	require.NoError(t, err)
	assert.Equal(t, "rpi4", board.Name)
	assert.Equal(t, "aarch64-linux-gnu", board.Target)
	assert.Equal(t, "cortex-a72", board.CPU)
	assert.Equal(t, map[string]string{"console.baud": "115200"}, board.Options)
}

func TestLoadBoard_MissingTarget(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "bad.yaml", "name: bad\n")
	_, err := config.LoadBoard(path)
	require.Error(t, err)

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	assert.Equal(t, "target", zErr.Metadata()["field"])
	assert.Equal(t, "bad", zErr.Metadata()["board"])
}

func TestFindWorkspace(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "forge.toml"), []byte("[project]\nname=\"p\"\n"), 0o644))
	nested := filepath.Join(root, "packages", "zlib", "1.3.1")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	ws, err := config.FindWorkspace(nested)
	require.NoError(t, err)
	assert.Equal(t, root, ws.Root)

	assert.Equal(t, filepath.Join(root, "forge.lock"), ws.LockPath())
	assert.Equal(t, filepath.Join(root, "boards", "rpi4.yaml"), ws.BoardPath("rpi4"))
	assert.Equal(t, filepath.Join(root, ".forge", "cache"), ws.CacheDir())
}

func TestFindWorkspace_NotFound(t *testing.T) {
	t.Parallel()

	_, err := config.FindWorkspace(t.TempDir())
	require.Error(t, err)
	assert.ErrorContains(t, err, config.ErrNoManifest.Error())
}
