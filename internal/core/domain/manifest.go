package domain

// Manifest is the parsed project manifest: which packages the user wants,
// which board to build for, and project-wide build settings.
type Manifest struct {
	Project ProjectInfo

	// BoardName references a board definition; BoardOptions override its
	// option values.
	BoardName    string
	BoardOptions map[string]string

	// Jobs is the configured build parallelism; 0 means host parallelism.
	Jobs int

	// Packages are the requested root packages with their constraints.
	Packages []Requirement

	// PackageOptions carries per-package option overrides keyed by package
	// name.
	PackageOptions map[string]map[string]string
}

// ProjectInfo is the project-level metadata block of the manifest.
type ProjectInfo struct {
	Name        string
	Version     string
	Description string
}
