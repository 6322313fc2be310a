package shell_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/adapters/shell"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestExecutor_StreamsOutputToSink(t *testing.T) {
	t.Parallel()

	var sink bytes.Buffer
	step := domain.BuildStep{Run: "sh", Args: []string{"-c", "echo out; echo err >&2"}}

	err := shell.NewExecutor().Execute(context.Background(), step, nil, t.TempDir(), &sink)
	require.NoError(t, err)
	assert.Contains(t, sink.String(), "out")
	assert.Contains(t, sink.String(), "err")
}

func TestExecutor_NonZeroExitCarriesDiagnostics(t *testing.T) {
	t.Parallel()

	step := domain.BuildStep{Run: "sh", Args: []string{"-c", "echo compile failed; exit 3"}}

	err := shell.NewExecutor().Execute(context.Background(), step, nil, t.TempDir(), io.Discard)
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrBuildStepFailed.Error())

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	meta := zErr.Metadata()
	assert.Equal(t, 3, meta["exit_code"])
	assert.Contains(t, meta["step"], "sh -c")
	assert.Contains(t, meta["output_tail"], "compile failed")
}

func TestExecutor_EnvironmentAndDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var sink bytes.Buffer
	step := domain.BuildStep{Run: "sh", Args: []string{"-c", "echo $GREETING; pwd"}}

	err := shell.NewExecutor().Execute(context.Background(), step, []string{"GREETING=hallo"}, dir, &sink)
	require.NoError(t, err)
	assert.Contains(t, sink.String(), "hallo")
	assert.Contains(t, sink.String(), dir)
}

func TestExecutor_EmptyStepIsNoOp(t *testing.T) {
	t.Parallel()

	err := shell.NewExecutor().Execute(context.Background(), domain.BuildStep{}, nil, t.TempDir(), io.Discard)
	assert.NoError(t, err)
}

func TestExecutor_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	step := domain.BuildStep{Run: "sleep", Args: []string{"5"}}
	err := shell.NewExecutor().Execute(ctx, step, nil, t.TempDir(), io.Discard)
	assert.Error(t, err)
}
