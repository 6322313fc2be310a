package domain

import (
	"slices"
	"time"
)

// PackageResult is the outcome of one package in a build run.
type PackageResult struct {
	Name    string
	Version string
	Status  TaskStatus

	// Err is set for failed packages and carries the failure reason,
	// including full captured step output for build failures.
	Err error

	Duration time.Duration

	// Bytes is the size of the staged output.
	Bytes int64
}

// BuildReport is the orchestrator's overall result, consumable by a
// summary-printing collaborator.
type BuildReport struct {
	Results map[string]PackageResult
	Elapsed time.Duration
}

// NewBuildReport creates an empty report.
func NewBuildReport() *BuildReport {
	return &BuildReport{Results: make(map[string]PackageResult)}
}

// OK reports whether every package reached Installed or Cached.
func (r *BuildReport) OK() bool {
	for _, res := range r.Results {
		if !res.Status.Success() {
			return false
		}
	}
	return true
}

// Failures returns the failed results sorted by package name.
func (r *BuildReport) Failures() []PackageResult {
	var out []PackageResult
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	slices.SortFunc(out, func(a, b PackageResult) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Cached returns how many packages were served from the stamp or cache.
func (r *BuildReport) Cached() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == StatusCached {
			n++
		}
	}
	return n
}
