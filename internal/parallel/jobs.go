package parallel

import (
	"context"
	"io"
	"path/filepath"
	"strconv"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/runner"
	"github.com/rileyhilliard/fleetrun/pkg/sshutil"
)

// ExecJob runs cmd on each host. Output is streamed into the host's buffer
// with stderr merged in. Per-call log files are dropped because every host
// would write the same path; use logs.LogWriter for per-host logs instead.
func ExecJob(cmd runner.Command, opts runner.RunOptions) Job {
	return func(ctx context.Context, r *runner.Runner, out io.Writer) (int, error) {
		if opts.Mode == runner.ModeLogin {
			return -1, errors.NewUsage("Can't open a login shell on several hosts at once",
				"Use fleetrun shell <host> for one host.")
		}
		o := opts
		o.ProcessStream = true
		o.Stdout = out
		o.Stderr = out
		o.SeparateStderr = false
		o.LogPath = ""
		o.StreamLogs = false
		return r.Run(ctx, cmd, o)
	}
}

// PushJob copies source to target on each host.
func PushJob(source, target string, opts runner.SyncOptions) Job {
	return func(ctx context.Context, r *runner.Runner, out io.Writer) (int, error) {
		return errResult(r.Rsync(ctx, source, target, true, syncOpts(opts, out)))
	}
}

// hostDir names a host's pull directory. A non-default port is part of the
// name so nodes sharing an address don't overwrite each other.
func hostDir(r *runner.Runner) string {
	name := r.Address()
	if r.Port() != sshutil.DefaultPort {
		name += "_" + strconv.Itoa(r.Port())
	}
	return SanitizeHostName(name)
}

// PullJob copies source from each host into target. With perHost set,
// each host gets its own subdirectory of target named after its address,
// plus the port when it isn't 22.
func PullJob(source, target string, perHost bool, opts runner.SyncOptions) Job {
	return func(ctx context.Context, r *runner.Runner, out io.Writer) (int, error) {
		dst := target
		if perHost {
			dst = filepath.Join(target, hostDir(r)) + string(filepath.Separator)
		}
		return errResult(r.Rsync(ctx, source, dst, false, syncOpts(opts, out)))
	}
}

// CloseJob stops each host's multiplexing master.
func CloseJob() Job {
	return func(ctx context.Context, r *runner.Runner, _ io.Writer) (int, error) {
		return errResult(r.CloseMaster(ctx))
	}
}

func syncOpts(opts runner.SyncOptions, out io.Writer) runner.SyncOptions {
	o := opts
	o.Progress = out
	o.LogPath = ""
	o.StreamLogs = false
	return o
}

func errResult(err error) (int, error) {
	if err != nil {
		return -1, err
	}
	return 0, nil
}
