package ports

import (
	"context"
	"io"

	"go.trai.ch/forge/internal/core/domain"
)

// StepExecutor runs one build or install step inside a prepared environment.
// Steps are not retried: build failures are deterministic, unlike network
// failures. The executor blocks the calling worker for the duration of the
// subprocess; that wait is the scheduler's only suspension point for builds.
type StepExecutor interface {
	// Execute runs the step with the given environment in dir, streaming
	// combined output to sink. A non-zero exit returns ErrBuildStepFailed
	// with the exit code and an output tail in the error metadata.
	Execute(ctx context.Context, step domain.BuildStep, env []string, dir string, sink io.Writer) error
}
