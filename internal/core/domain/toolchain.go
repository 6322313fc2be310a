package domain

import (
	"maps"
	"sort"
	"strconv"
	"strings"
)

// ToolchainKind tags the toolchain variant a package requires.
// The set is closed: adding a kind means adding a variant and a handler in
// the toolchain adapter, not a subclass.
type ToolchainKind string

const (
	// ToolchainDefault uses the always-available built-in cross compiler.
	ToolchainDefault ToolchainKind = "default"
	// ToolchainAuto resolves an external GCC toolchain URL from the target triple.
	ToolchainAuto ToolchainKind = "gcc"
	// ToolchainExplicit uses caller-provided per-host download URLs.
	ToolchainExplicit ToolchainKind = "gcc-url"
)

// Toolchain is a package's declared toolchain requirement.
// The zero value means ToolchainDefault.
type Toolchain struct {
	Kind ToolchainKind

	// Libc and Release refine auto resolution (defaults: glibc, provider stable).
	Libc    string
	Release string

	// URLs maps host platform keys ("linux-x86_64", ...) to download URLs
	// for the explicit variant.
	URLs map[string]string
}

// Normalize returns the kind, mapping the zero value to ToolchainDefault.
func (t Toolchain) Normalize() ToolchainKind {
	if t.Kind == "" {
		return ToolchainDefault
	}
	return t.Kind
}

// Compiler is a ready-to-use compiler environment descriptor, the result of
// toolchain resolution. Constructed per package build; external toolchains
// are cached by resolved URL in the adapter.
type Compiler struct {
	// CC and CXX are complete compiler commands, including any -target flags.
	CC  string
	CXX string

	// AR is empty for the built-in cross compiler, which archives internally.
	AR string

	Target  string
	Version string

	// Root is the extracted toolchain directory for external toolchains,
	// empty for the built-in one. Its bin directory is prepended to PATH.
	Root string
}

// ID is the toolchain identity that participates in fingerprints and lock
// entries: same compiler + version + target means the same ID.
func (c *Compiler) ID() string {
	return c.CC + "@" + c.Version
}

// BuildEnv is the environment handed to build and install steps.
type BuildEnv struct {
	Compiler Compiler

	CPU     string
	SrcDir  string
	DestDir string
	Prefix  string
	Jobs    int

	// DepDirs maps each build-time dependency name to its staged output dir.
	DepDirs map[string]string

	// Options are the package's resolved option values.
	Options map[string]string

	// BoardOptions are board-level option values.
	BoardOptions map[string]string
}

// Environ renders the environment as a deterministic sorted KEY=VALUE list.
// Dependency dirs become DEP_<NAME>, options OPT_<NAME>, board options
// BOARD_<NAME>; names are upper-cased with dashes mapped to underscores.
func (e *BuildEnv) Environ() []string {
	vars := map[string]string{
		"CC":      e.Compiler.CC,
		"CXX":     e.Compiler.CXX,
		"TARGET":  e.Compiler.Target,
		"CPU":     e.CPU,
		"SRCDIR":  e.SrcDir,
		"DESTDIR": e.DestDir,
		"PREFIX":  e.Prefix,
		"JOBS":    strconv.Itoa(e.Jobs),
	}
	if e.Compiler.AR != "" {
		vars["AR"] = e.Compiler.AR
	}
	for name, dir := range e.DepDirs {
		vars["DEP_"+envKey(name)] = dir
	}
	for name, value := range e.Options {
		vars["OPT_"+envKey(name)] = value
	}
	for name, value := range e.BoardOptions {
		vars["BOARD_"+envKey(name)] = value
	}

	keys := make([]string, 0, len(vars))
	for k := range maps.Keys(vars) {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+vars[k])
	}
	return out
}

func envKey(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}

// Board describes the build target hardware.
type Board struct {
	Name    string
	Target  string
	CPU     string
	Options map[string]string
}
