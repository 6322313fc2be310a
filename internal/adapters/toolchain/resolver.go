// Package toolchain resolves declared toolchain requirements into concrete
// compiler environments.
package toolchain

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

var _ ports.ToolchainResolver = (*Resolver)(nil)

const bootlinBase = "https://toolchains.bootlin.com/downloads/releases/toolchains"

// bootlinArch maps normalized target triples to the provider's architecture
// names. The table is closed: an unlisted target needs an explicit URL.
var bootlinArch = map[string]string{
	"arm-linux-gnueabihf": "armv7-eabihf",
	"aarch64-linux-gnu":   "aarch64",
	"x86_64-linux-gnu":    "x86-64",
	"riscv64-linux-gnu":   "riscv64-lp64d",
}

const (
	defaultLibc    = "glibc"
	defaultRelease = "stable-2024.02-1"
)

// Resolver turns toolchain declarations into compilers. External toolchains
// are downloaded and extracted once per URL; concurrent requests for the same
// URL collapse into a single download.
type Resolver struct {
	cacheDir   string
	downloader ports.Downloader
	executor   ports.StepExecutor
	logger     ports.Logger

	group singleflight.Group

	mu         sync.Mutex
	zigVersion string
}

// NewResolver creates a resolver caching external toolchains under cacheDir.
func NewResolver(cacheDir string, downloader ports.Downloader, executor ports.StepExecutor, logger ports.Logger) *Resolver {
	return &Resolver{
		cacheDir:   cacheDir,
		downloader: downloader,
		executor:   executor,
		logger:     logger,
	}
}

// Resolve returns a ready-to-use compiler for the declared toolchain and
// target triple.
func (r *Resolver) Resolve(ctx context.Context, tc domain.Toolchain, target string) (*domain.Compiler, error) {
	switch tc.Normalize() {
	case domain.ToolchainDefault:
		return r.defaultCompiler(target), nil

	case domain.ToolchainAuto:
		url, err := autoURL(hostKey(), target, tc)
		if err != nil {
			return nil, err
		}
		root, err := r.ensure(ctx, url)
		if err != nil {
			return nil, err
		}
		release := tc.Release
		if release == "" {
			release = defaultRelease
		}
		return gccCompiler(root, target, release), nil

	case domain.ToolchainExplicit:
		host := hostKey()
		url, ok := tc.URLs[host]
		if !ok {
			keys := make([]string, 0, len(tc.URLs))
			for k := range tc.URLs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			err := zerr.With(domain.ErrNoURLForHost, "host", host)
			return nil, zerr.With(err, "available", strings.Join(keys, ", "))
		}
		root, err := r.ensure(ctx, url)
		if err != nil {
			return nil, err
		}
		return gccCompiler(root, target, urlKey(url)), nil
	}

	return nil, zerr.With(domain.ErrToolchainUnavailable, "kind", string(tc.Kind))
}

// defaultCompiler is the always-available built-in cross compiler. It needs
// no download and archives internally, so AR stays empty.
func (r *Resolver) defaultCompiler(target string) *domain.Compiler {
	return &domain.Compiler{
		CC:      "zig cc -target " + target,
		CXX:     "zig c++ -target " + target,
		Target:  target,
		Version: r.probeZigVersion(),
	}
}

func (r *Resolver) probeZigVersion() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.zigVersion != "" {
		return r.zigVersion
	}
	out, err := exec.Command("zig", "version").Output()
	if err != nil {
		r.zigVersion = "unknown"
		return r.zigVersion
	}
	r.zigVersion = strings.TrimSpace(string(out))
	return r.zigVersion
}

// ensure downloads and extracts the toolchain at url, returning its root
// directory. Extractions are deduplicated by URL across packages.
func (r *Resolver) ensure(ctx context.Context, url string) (string, error) {
	root := filepath.Join(r.cacheDir, urlKey(url))

	v, err, _ := r.group.Do(url, func() (interface{}, error) {
		if _, err := os.Stat(filepath.Join(root, ".ok")); err == nil {
			return root, nil
		}
		if err := r.fetchAndExtract(ctx, url, root); err != nil {
			return nil, err
		}
		return root, nil
	})
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrToolchainUnavailable.Error()), "url", url)
	}
	return v.(string), nil //nolint:forcetypeassert // group.Do only ever returns root
}

func (r *Resolver) fetchAndExtract(ctx context.Context, url, root string) error {
	archive := filepath.Join(r.cacheDir, "downloads", filepath.Base(url))
	if err := r.downloader.Fetch(ctx, url, archive, "", false); err != nil {
		return err
	}

	if err := os.RemoveAll(root); err != nil {
		return zerr.Wrap(err, "failed to clear toolchain directory")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return zerr.Wrap(err, "failed to create toolchain directory")
	}

	r.logger.Info(fmt.Sprintf("extracting toolchain %s", filepath.Base(url)))
	step := domain.BuildStep{Run: "tar", Args: []string{"-xf", archive, "-C", root, "--strip-components=1"}}
	if err := r.executor.Execute(ctx, step, os.Environ(), root, io.Discard); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(root, ".ok"), nil, 0o644) //nolint:gosec // marker file
}

// autoURL builds the provider download URL for an auto-resolved toolchain.
// The provider ships Linux-hosted toolchains only.
func autoURL(host, target string, tc domain.Toolchain) (string, error) {
	arch, ok := bootlinArch[target]
	if !ok {
		return "", zerr.With(domain.ErrUnsupportedTarget, "target", target)
	}

	if !strings.HasPrefix(host, "linux-") {
		err := zerr.With(domain.ErrToolchainUnavailable, "host", host)
		return "", zerr.With(err, "suggestion", "declare explicit toolchain URLs for this host or build in a container")
	}

	libc := tc.Libc
	if libc == "" {
		libc = defaultLibc
	}
	release := tc.Release
	if release == "" {
		release = defaultRelease
	}

	return fmt.Sprintf("%s/%s/tarballs/%s--%s--%s.tar.bz2", bootlinBase, arch, arch, libc, release), nil
}

func gccCompiler(root, target, version string) *domain.Compiler {
	prefix := target + "-"
	return &domain.Compiler{
		CC:      prefix + "gcc",
		CXX:     prefix + "g++",
		AR:      prefix + "ar",
		Target:  target,
		Version: version,
		Root:    root,
	}
}

// hostKey identifies the running host platform the way toolchain URL maps
// key it: <os>-<arch> with the hardware names providers use.
func hostKey() string {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	}
	return runtime.GOOS + "-" + arch
}

func urlKey(url string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(url))
}
