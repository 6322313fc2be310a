package config

import (
	"os"
	"path/filepath"

	"go.trai.ch/zerr"
)

// ErrNoManifest indicates that no manifest was found walking up from the
// starting directory.
var ErrNoManifest = zerr.New("no " + ManifestFilename + " found")

// Workspace locates the project's well-known files and directories relative
// to the directory containing the manifest.
type Workspace struct {
	Root string
}

// FindWorkspace walks up from dir until it finds a manifest.
func FindWorkspace(dir string) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to resolve start directory")
	}

	for cur := abs; ; {
		if _, err := os.Stat(filepath.Join(cur, ManifestFilename)); err == nil {
			return &Workspace{Root: cur}, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, zerr.With(ErrNoManifest, "start", abs)
		}
		cur = parent
	}
}

// ManifestPath is the path of the project manifest.
func (w *Workspace) ManifestPath() string {
	return filepath.Join(w.Root, ManifestFilename)
}

// LockPath is the path of the lock file.
func (w *Workspace) LockPath() string {
	return filepath.Join(w.Root, "forge.lock")
}

// BoardPath is the path of a board descriptor by name.
func (w *Workspace) BoardPath(name string) string {
	return filepath.Join(w.Root, "boards", name+".yaml")
}

// PackagesDir is the local package definitions directory.
func (w *Workspace) PackagesDir() string {
	return filepath.Join(w.Root, "packages")
}

// CacheDir is the artifact cache root.
func (w *Workspace) CacheDir() string {
	return filepath.Join(w.Root, ".forge", "cache")
}

// StampsDir is the incremental-build stamp directory.
func (w *Workspace) StampsDir() string {
	return filepath.Join(w.Root, ".forge", "stamps")
}

// ToolchainsDir is the shared external toolchain cache.
func (w *Workspace) ToolchainsDir() string {
	return filepath.Join(w.Root, ".forge", "toolchains")
}
