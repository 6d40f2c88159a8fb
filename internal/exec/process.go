// Package exec spawns local processes (ssh, rsync) and wires their output to
// the caller's terminal, a capture buffer and an optional log file.
package exec

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/logger"
)

// Spec describes one process to run.
type Spec struct {
	// Args is the full argv; Args[0] is looked up in PATH.
	Args []string

	// Stdin feeds the child. Nil means no input.
	Stdin io.Reader

	// Stream forwards output live as it arrives. StreamOut and StreamErr
	// default to os.Stdout and os.Stderr.
	Stream    bool
	StreamOut io.Writer
	StreamErr io.Writer

	// LogPath, when TeeLog is set, receives a copy of all output. The file is
	// appended to and created if missing.
	LogPath string
	TeeLog  bool

	// Capture buffers output into the Outcome.
	Capture bool

	// SeparateStderr keeps stderr apart from stdout. Otherwise both streams
	// share one pipe and interleave in write order.
	SeparateStderr bool

	// Interactive hands the caller's own stdin/stdout/stderr to the child.
	// Nothing is captured, streamed through or logged.
	Interactive bool
}

// Outcome is what a finished process left behind.
type Outcome struct {
	ExitCode int
	Stdout   string
	Stderr   string

	// LogErr is set when the log tee failed. Output and exit status are
	// still complete.
	LogErr error
}

// Executor runs a Spec to completion.
type Executor interface {
	Execute(ctx context.Context, spec Spec) (Outcome, error)
}

// Local runs processes on this machine via os/exec.
type Local struct {
	Log logger.Logger
}

// NewLocal returns a Local executor. A nil logger falls back to the default.
func NewLocal(log logger.Logger) *Local {
	if log == nil {
		log = logger.Default()
	}
	return &Local{Log: log}
}

// Execute spawns spec.Args[0] and waits for it. A nonzero exit is reported
// in Outcome.ExitCode with a nil error; an error means the process couldn't
// be started or was cancelled.
func (l *Local) Execute(ctx context.Context, spec Spec) (Outcome, error) {
	if len(spec.Args) == 0 {
		return Outcome{ExitCode: -1}, errors.NewUsage("Nothing to execute", "Pass at least the program name.")
	}

	log := l.Log
	if log == nil {
		log = logger.Default()
	}

	cmd := exec.CommandContext(ctx, spec.Args[0], spec.Args[1:]...)
	log.Debug("exec: %s", strings.Join(spec.Args, " "))

	if spec.Interactive {
		cmd.Stdin = os.Stdin
		if spec.Stdin != nil {
			cmd.Stdin = spec.Stdin
		}
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return l.finish(ctx, cmd, spec, Outcome{}, nil)
	}

	cmd.Stdin = spec.Stdin

	var tee *logTee
	var outcome Outcome
	if spec.TeeLog && spec.LogPath != "" {
		var err error
		tee, err = openLogTee(spec.LogPath)
		if err != nil {
			outcome.LogErr = err
			log.Warn("log file %s unavailable, continuing without it: %v", spec.LogPath, err)
		}
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	streamOut, streamErr := spec.StreamOut, spec.StreamErr
	if streamOut == nil {
		streamOut = os.Stdout
	}
	if streamErr == nil {
		streamErr = os.Stderr
	}

	outWriters := collect(spec.Capture, &stdoutBuf, spec.Stream, streamOut, tee)
	cmd.Stdout = combine(outWriters)

	if spec.SeparateStderr {
		errWriters := collect(spec.Capture, &stderrBuf, spec.Stream, streamErr, tee)
		cmd.Stderr = combine(errWriters)
	} else {
		// Same writer value means os/exec hands the child a single pipe.
		cmd.Stderr = cmd.Stdout
	}

	outcome, err := l.finish(ctx, cmd, spec, outcome, tee)
	if tee != nil {
		if closeErr := tee.Close(); closeErr != nil && outcome.LogErr == nil {
			outcome.LogErr = closeErr
		}
		if outcome.LogErr != nil {
			log.Warn("writing %s failed: %v", spec.LogPath, outcome.LogErr)
		}
	}

	if spec.Capture {
		outcome.Stdout = stdoutBuf.String()
		outcome.Stderr = stderrBuf.String()
	}
	return outcome, err
}

func (l *Local) finish(ctx context.Context, cmd *exec.Cmd, spec Spec, outcome Outcome, tee *logTee) (Outcome, error) {
	runErr := cmd.Run()
	if tee != nil {
		outcome.LogErr = tee.Err()
	}

	if runErr == nil {
		outcome.ExitCode = 0
		return outcome, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		outcome.ExitCode = -1
		return outcome, errors.WrapWithCode(ctxErr, errors.ErrExec,
			fmt.Sprintf("%s was cancelled", spec.Args[0]),
			"Output already written was kept; rerun the command to finish.")
	}

	var exitErr *exec.ExitError
	if stderrors.As(runErr, &exitErr) {
		outcome.ExitCode = exitErr.ExitCode()
		return outcome, nil
	}

	outcome.ExitCode = -1
	return outcome, errors.WrapWithCode(runErr, errors.ErrExec,
		fmt.Sprintf("Couldn't start %s", spec.Args[0]),
		fmt.Sprintf("Make sure %s is installed and in your PATH.", spec.Args[0]))
}

func collect(capture bool, buf io.Writer, stream bool, live io.Writer, tee *logTee) []io.Writer {
	var ws []io.Writer
	if capture {
		ws = append(ws, buf)
	}
	if stream {
		ws = append(ws, live)
	}
	if tee != nil {
		ws = append(ws, tee)
	}
	return ws
}

func combine(ws []io.Writer) io.Writer {
	switch len(ws) {
	case 0:
		return nil
	case 1:
		return ws[0]
	default:
		return io.MultiWriter(ws...)
	}
}
