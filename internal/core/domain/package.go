// Package domain contains the core domain models for package resolution and builds.
package domain

import (
	"go.trai.ch/zerr"
)

// Requirement is a user request for a package, carrying the constraint and
// where it came from so conflict errors can name every contributor.
type Requirement struct {
	Name       string
	Constraint string
	Origin     string
}

// Dependency is a build-time dependency declared by a package.
type Dependency struct {
	Name       string
	Constraint string
}

// PackageSpec is a fully parsed package definition.
type PackageSpec struct {
	Name        string
	Version     string
	Description string
	License     string

	// Depends are build-time dependencies; they participate in build ordering.
	Depends []Dependency

	// Requires are runtime-only requirements. They are recorded for inclusion
	// in the final image but carry no version and do not order builds.
	Requires []string

	Source  SourceConfig
	Build   BuildConfig
	Install InstallConfig
	Options map[string]OptionDefinition
}

// SourceKind identifies which source variant a package declares.
type SourceKind string

const (
	// SourceURL is a single archive fetched over HTTP with a pinned sha256.
	SourceURL SourceKind = "url"
	// SourceGit is a git repository checked out at a declared ref.
	SourceGit SourceKind = "git"
	// SourceFiles is a list of named files, each with its own digest.
	SourceFiles SourceKind = "files"
)

// SourceConfig holds the declared source. Exactly one variant must be set;
// Kind reports which, or an error naming the conflicting fields.
type SourceConfig struct {
	URL    string
	SHA256 string

	Git string
	Ref GitRef

	Files []SourceFile
}

// GitRef is a git reference. At most one field is set; Tag and Rev are
// reproducible as-is, Branch must be resolved to a commit at fetch time.
type GitRef struct {
	Tag    string
	Branch string
	Rev    string
}

// String returns the declared ref value regardless of kind.
func (r GitRef) String() string {
	switch {
	case r.Tag != "":
		return r.Tag
	case r.Branch != "":
		return r.Branch
	default:
		return r.Rev
	}
}

// IsBranch reports whether the ref is a moving target that needs commit resolution.
func (r GitRef) IsBranch() bool {
	return r.Branch != ""
}

// SourceFile is one entry of a multi-file source.
type SourceFile struct {
	URL      string
	SHA256   string
	Filename string
}

// Kind returns the declared source variant. Declaring none or more than one
// is a configuration error, caught before any resolution work.
func (s *SourceConfig) Kind() (SourceKind, error) {
	var kinds []SourceKind
	if s.URL != "" {
		kinds = append(kinds, SourceURL)
	}
	if s.Git != "" {
		kinds = append(kinds, SourceGit)
	}
	if len(s.Files) > 0 {
		kinds = append(kinds, SourceFiles)
	}

	switch len(kinds) {
	case 1:
		return kinds[0], nil
	case 0:
		return "", zerr.With(ErrInvalidSource, "declared", "none")
	default:
		declared := ""
		for i, k := range kinds {
			if i > 0 {
				declared += ","
			}
			declared += string(k)
		}
		return "", zerr.With(ErrInvalidSource, "declared", declared)
	}
}

// BuildConfig describes how a package is compiled.
type BuildConfig struct {
	// System names a predefined build-system convention
	// (autotools, cmake, meson, make) or "custom" for explicit steps.
	System string

	// Steps are the explicit build steps for custom builds.
	Steps []BuildStep

	ConfigureArgs []string
	MakeArgs      []string

	// Patches are applied in declared order before building; their digests
	// are part of the build fingerprint.
	Patches []string

	Toolchain Toolchain
}

// BuildStep is a single command invocation inside the build environment.
type BuildStep struct {
	Run  string
	Args []string
}

// InstallConfig describes how built output lands in the staging directory.
// With neither a script nor copy rules the build system's default install
// convention is used.
type InstallConfig struct {
	Script string
	Copy   []CopyRule
}

// CopyRule copies one built path into the staging tree.
type CopyRule struct {
	Src string
	Dst string
}

// Validate checks the spec for configuration errors: missing name/version,
// conflicting source declarations, URL sources without digests, and malformed
// option definitions. It runs before any resolution or I/O.
func (p *PackageSpec) Validate() error {
	if p.Name == "" {
		return zerr.With(ErrMissingField, "field", "name")
	}
	if p.Version == "" {
		return zerr.With(zerr.With(ErrMissingField, "field", "version"), "package", p.Name)
	}

	kind, err := p.Source.Kind()
	if err != nil {
		return zerr.With(err, "package", p.Name)
	}

	switch kind {
	case SourceURL:
		if p.Source.SHA256 == "" {
			return zerr.With(zerr.With(ErrMissingField, "field", "source.sha256"), "package", p.Name)
		}
	case SourceGit:
		if p.Source.Ref.String() == "" {
			return zerr.With(zerr.With(ErrMissingField, "field", "source.ref"), "package", p.Name)
		}
	case SourceFiles:
		for _, f := range p.Source.Files {
			if f.URL == "" || f.SHA256 == "" {
				return zerr.With(zerr.With(ErrMissingField, "field", "source.files[].url/sha256"), "package", p.Name)
			}
		}
	}

	for name, opt := range p.Options {
		if err := opt.Validate(name); err != nil {
			return zerr.With(err, "package", p.Name)
		}
	}

	return nil
}
