// Package shell provides the build step executor.
package shell

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"

	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.StepExecutor = (*Executor)(nil)

// tailLimit bounds the amount of captured output attached to step failures.
const tailLimit = 4096

// Executor runs build and install steps as subprocesses. Combined output
// streams to the caller's sink; the last few KiB are retained so a failure
// can carry its diagnostics without re-reading the log file.
type Executor struct{}

// NewExecutor creates a new Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Execute runs one step with the given environment in dir.
func (e *Executor) Execute(ctx context.Context, step domain.BuildStep, env []string, dir string, sink io.Writer) error {
	if step.Run == "" {
		return nil
	}

	tail := &tailBuffer{limit: tailLimit}
	out := io.MultiWriter(sink, tail)

	cmd := exec.CommandContext(ctx, step.Run, step.Args...) //nolint:gosec // Steps are user-declared build commands
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		wrapped := zerr.Wrap(err, domain.ErrBuildStepFailed.Error())
		wrapped = zerr.With(wrapped, "step", strings.Join(append([]string{step.Run}, step.Args...), " "))
		wrapped = zerr.With(wrapped, "exit_code", exitCode)
		return zerr.With(wrapped, "output_tail", tail.String())
	}

	return nil
}

// tailBuffer retains the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
