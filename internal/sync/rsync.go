package sync

import (
	"context"
	osexec "os/exec"
	"strings"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/exec"
)

// FindRsync locates the rsync binary on the local system.
func FindRsync() (string, error) {
	path, err := osexec.LookPath("rsync")
	if err != nil {
		return "", errors.New(errors.ErrSync,
			"rsync isn't installed locally",
			"Grab it with: brew install rsync (macOS) or apt install rsync (Linux)")
	}
	return path, nil
}

// Version returns the first line of `rsync --version`, e.g.
// "rsync  version 3.2.7  protocol version 31".
func Version(ctx context.Context, executor exec.Executor, rsyncPath string) (string, error) {
	out, err := executor.Execute(ctx, exec.Spec{
		Args:           []string{rsyncPath, "--version"},
		Capture:        true,
		SeparateStderr: true,
	})
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrSync,
			"Couldn't get rsync version",
			"Make sure rsync is installed correctly.")
	}
	if out.ExitCode != 0 {
		return "", errors.New(errors.ErrSync,
			"rsync --version failed",
			"Try running 'rsync --version' to check your installation.")
	}

	first, _, _ := strings.Cut(out.Stdout, "\n")
	first = strings.TrimSpace(first)
	if first == "" {
		return "", errors.New(errors.ErrSync,
			"Couldn't parse the rsync version output",
			"Try running 'rsync --version' to check your installation.")
	}
	return first, nil
}
