package domain

// TaskStatus is the per-package build state.
type TaskStatus string

const (
	// StatusPending means the package has not started.
	StatusPending TaskStatus = "Pending"
	// StatusSourceReady means the source is present and checksum-valid locally.
	StatusSourceReady TaskStatus = "SourceReady"
	// StatusToolchainReady means a concrete compiler environment is resolved.
	StatusToolchainReady TaskStatus = "ToolchainReady"
	// StatusBuilt means all build steps completed.
	StatusBuilt TaskStatus = "Built"
	// StatusInstalled means the install step staged the package output.
	StatusInstalled TaskStatus = "Installed"
	// StatusCached means the stamp or artifact cache matched the fingerprint
	// and every build step was skipped.
	StatusCached TaskStatus = "Cached"
	// StatusFailed absorbs any non-terminal state on error.
	StatusFailed TaskStatus = "Failed"
)

// Terminal reports whether the status ends the state machine.
func (s TaskStatus) Terminal() bool {
	return s == StatusInstalled || s == StatusCached || s == StatusFailed
}

// Success reports whether the status counts as a usable build result,
// which is what dependents wait for.
func (s TaskStatus) Success() bool {
	return s == StatusInstalled || s == StatusCached
}

// BuildTask is the transient orchestration unit for one planned package.
// Staging directory, log sink and environment are exclusively owned by the
// worker driving the task.
type BuildTask struct {
	Name    string
	Version string
	Deps    []string

	Status      TaskStatus
	Fingerprint Fingerprint
	Env         *BuildEnv

	StageDir string
	LogPath  string
}
