package runner

import (
	"context"
	"io"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/exec"
	fsync "github.com/rileyhilliard/fleetrun/internal/sync"
)

// SyncOptions shapes one rsync transfer.
type SyncOptions struct {
	// LogPath receives rsync's output when StreamLogs is set.
	LogPath    string
	StreamLogs bool

	// Excludes are added after the built-in filter rules.
	Excludes []string

	// Progress receives rsync's output line by line.
	Progress   io.Writer
	OnProgress func(fsync.Progress)
}

// Rsync copies source to target. With up set, source is local and target
// is on this node; otherwise the reverse. Failures come back as ErrSync
// (or ErrUsage before anything runs).
func (r *Runner) Rsync(ctx context.Context, source, target string, up bool, opts SyncOptions) error {
	if opts.StreamLogs && opts.LogPath == "" {
		return errors.NewUsage("Log streaming needs a log path",
			"Pass --log <file> along with --stream-logs.")
	}
	if err := r.prepare(); err != nil {
		return err
	}

	return r.syncer.Sync(ctx, r.syncRemote(), fsync.Request{
		Source:     source,
		Target:     target,
		Up:         up,
		Excludes:   opts.Excludes,
		LogPath:    opts.LogPath,
		StreamLogs: opts.StreamLogs,
		Progress:   opts.Progress,
		OnProgress: opts.OnProgress,
	})
}

func (r *Runner) syncRemote() fsync.Remote {
	return fsync.Remote{
		Name:       r.String(),
		User:       r.id.User,
		Address:    r.id.Address,
		SSHOptions: r.SSHOptions(),
		SSHBinary:  r.sshBinary,
	}
}

// CloseMaster asks the control master for this node to exit. It's a no-op
// without multiplexing or when no master is running.
func (r *Runner) CloseMaster(ctx context.Context) error {
	if r.controlName == "" {
		return nil
	}

	args := []string{r.sshBinary}
	args = append(args, r.SSHOptions()...)
	args = append(args, "-O", "exit", r.Target())

	out, err := r.executor.Execute(ctx, exec.Spec{Args: args, Capture: true})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			"Couldn't stop the ssh control master for "+r.String(),
			"Remove stale sockets with: fleetrun clean")
	}
	if out.ExitCode != 0 {
		r.log.Debug("no control master for %s: %s", r, lastLine(out.Stdout))
	}
	return nil
}
