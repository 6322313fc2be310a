package domain

import (
	"strings"
	"time"

	"go.trai.ch/zerr"
)

// LockFileVersion is the current lock file format version.
const LockFileVersion = 1

// LockFile is the reproducibility record written after every successful
// resolution and build, and consumed read-only in locked mode.
type LockFile struct {
	Version int `toml:"version"`

	// ForgeVersion is the tool version that generated the file.
	ForgeVersion string `toml:"forge_version"`

	// ToolchainVersion is the built-in cross compiler version used.
	ToolchainVersion string `toml:"toolchain_version"`

	GeneratedAt time.Time `toml:"generated_at"`

	Packages map[string]LockEntry `toml:"packages"`
}

// LockEntry pins one resolved package.
type LockEntry struct {
	Version string `toml:"version"`

	// Source is the locator string: "registry", "registry:<url>",
	// "path:<relative-path>" or "git:<url>#<resolved-commit>".
	Source string `toml:"source"`

	// Checksum is the source content digest (sha256 hex, or the resolved
	// commit for git sources).
	Checksum string `toml:"checksum"`

	// Dependencies maps build-time dependency names to their resolved versions.
	Dependencies map[string]string `toml:"dependencies,omitempty"`

	// Toolchain is the compiler identity the package was built with.
	Toolchain string `toml:"toolchain,omitempty"`
}

// NewLockFile creates an empty lock file with the metadata header filled in.
func NewLockFile(forgeVersion, toolchainVersion string) *LockFile {
	return &LockFile{
		Version:          LockFileVersion,
		ForgeVersion:     forgeVersion,
		ToolchainVersion: toolchainVersion,
		GeneratedAt:      time.Now().UTC(),
		Packages:         make(map[string]LockEntry),
	}
}

// SourceLocator builds the persisted locator string for a package source.
// Registry-default sources collapse to the bare "registry" form.
func SourceLocator(kind SourceKind, registryURL, path, gitURL, resolvedRef string) string {
	switch kind {
	case SourceGit:
		return "git:" + gitURL + "#" + resolvedRef
	default:
		if path != "" {
			return "path:" + path
		}
		if registryURL != "" {
			return "registry:" + registryURL
		}
		return "registry"
	}
}

// ParseSourceLocator splits a locator string into its scheme and remainder.
// The bare "registry" form returns scheme "registry" with an empty rest.
func ParseSourceLocator(locator string) (scheme, rest string, err error) {
	if locator == "registry" {
		return "registry", "", nil
	}
	scheme, rest, ok := strings.Cut(locator, ":")
	if !ok || rest == "" {
		return "", "", zerr.With(ErrInvalidLocator, "locator", locator)
	}
	switch scheme {
	case "registry", "path", "git":
		return scheme, rest, nil
	default:
		return "", "", zerr.With(zerr.With(ErrInvalidLocator, "locator", locator), "scheme", scheme)
	}
}
