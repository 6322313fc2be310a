// Package registry supplies package definitions to the resolver.
package registry

import (
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.trai.ch/forge/internal/adapters/config"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.PackageUniverse = (*Local)(nil)

// Local serves package definitions from a directory laid out as
// <dir>/<name>/<version>/package.toml.
type Local struct {
	dir string
}

// NewLocal creates a local package universe rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{dir: dir}
}

// Versions returns every known version of a package, newest layout order not
// guaranteed; the resolver picks by constraint. An unknown name yields an
// empty slice, not an error.
func (l *Local) Versions(name string) ([]*domain.PackageSpec, error) {
	entries, err := os.ReadDir(filepath.Join(l.dir, name))
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read package directory"), "package", name)
	}

	versions := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	sort.Strings(versions)

	specs := make([]*domain.PackageSpec, 0, len(versions))
	for _, version := range versions {
		spec, err := config.LoadPackage(filepath.Join(l.dir, name, version, "package.toml"))
		if err != nil {
			return nil, zerr.With(zerr.With(err, "package", name), "version", version)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Static is an in-memory package universe, primarily for tests.
type Static struct {
	Specs map[string][]*domain.PackageSpec
}

var _ ports.PackageUniverse = (*Static)(nil)

// Versions returns the registered specs for a name.
func (s *Static) Versions(name string) ([]*domain.PackageSpec, error) {
	return s.Specs[name], nil
}
