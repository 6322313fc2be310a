package orchestrator

import (
	"os"
	"path/filepath"
)

// Layout maps package names to their per-build directories under the project
// root. Every package gets an isolated source dir, staging dir and log sink;
// no cross-worker synchronization is needed for any of them.
type Layout struct {
	Root string
}

// SourcesDir holds downloaded archives, shared read-only across packages.
func (l Layout) SourcesDir() string {
	return filepath.Join(l.Root, "build", "sources")
}

// SrcDir is where a package's source tree is extracted or cloned.
func (l Layout) SrcDir(name string) string {
	return filepath.Join(l.Root, "build", "src", name)
}

// StageDir is the package's DESTDIR: the staged installable tree.
func (l Layout) StageDir(name string) string {
	return filepath.Join(l.Root, "build", "stage", name)
}

// LogPath is the package's captured build output.
func (l Layout) LogPath(name string) string {
	return filepath.Join(l.Root, "build", "logs", name+".log")
}

// PatchPath resolves a patch entry, which is declared relative to the
// project root.
func (l Layout) PatchPath(patch string) string {
	return filepath.Join(l.Root, patch)
}

// OpenLog creates the log sink for a package, truncating any previous run.
func (l Layout) OpenLog(name string) (*os.File, error) {
	path := l.LogPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	return os.Create(path) //nolint:gosec // path derives from the project layout
}
