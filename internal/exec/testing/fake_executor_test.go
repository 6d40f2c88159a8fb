package testing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/fleetrun/internal/exec"
)

func TestFakeExecutor_DefaultSucceeds(t *testing.T) {
	f := NewFakeExecutor()
	out, err := f.Execute(context.Background(), exec.Spec{Args: []string{"ssh"}, Capture: true})
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, 1, f.CallCount())
}

func TestFakeExecutor_QueueAndCapture(t *testing.T) {
	f := NewFakeExecutor().Queue(
		Response{ExitCode: 3, Stdout: "out", Stderr: "err"},
		Response{Err: errors.New("boom")},
	)

	out, err := f.Execute(context.Background(), exec.Spec{Args: []string{"a"}, Capture: true, SeparateStderr: true})
	require.NoError(t, err)
	assert.Equal(t, exec.Outcome{ExitCode: 3, Stdout: "out", Stderr: "err"}, out)

	_, err = f.Execute(context.Background(), exec.Spec{Args: []string{"b"}})
	assert.EqualError(t, err, "boom")

	last, ok := f.LastCall()
	require.True(t, ok)
	assert.Equal(t, []string{"b"}, last.Args)
}

func TestFakeExecutor_MergedStream(t *testing.T) {
	f := NewFakeExecutor().Queue(Response{Stdout: "a", Stderr: "b"})
	var buf bytes.Buffer

	out, err := f.Execute(context.Background(), exec.Spec{
		Args: []string{"x"}, Stream: true, StreamOut: &buf, Capture: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ab", buf.String())
	assert.Equal(t, "ab", out.Stdout)
	assert.Empty(t, out.Stderr)
}

func TestFakeExecutor_Handler(t *testing.T) {
	f := NewFakeExecutor()
	f.Handler = func(spec exec.Spec) Response {
		return Response{ExitCode: len(spec.Args)}
	}

	out, err := f.Execute(context.Background(), exec.Spec{Args: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.ExitCode)

	f.Reset()
	assert.Equal(t, 0, f.CallCount())
}
