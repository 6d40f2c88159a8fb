package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/exec"
)

// sshTransportExit is what the ssh client exits with when it couldn't set
// up the connection. A remote command exiting 255 looks the same.
const sshTransportExit = 255

// RunOptions shapes one command execution.
type RunOptions struct {
	// PortForward adds -L p:localhost:p for each port.
	PortForward []int

	// LogPath receives a copy of the output when StreamLogs is set.
	LogPath    string
	StreamLogs bool

	// ProcessStream forwards output live to Stdout and Stderr (defaults:
	// os.Stdout and os.Stderr).
	ProcessStream bool
	Stdout        io.Writer
	Stderr        io.Writer

	Mode Mode

	// SeparateStderr keeps stderr apart. Otherwise it is merged into stdout
	// and Result.Stderr is empty.
	SeparateStderr bool

	// Stdin feeds the remote command. ModeInteractive defaults it to
	// os.Stdin; otherwise nil means no input.
	Stdin io.Reader

	// Env is exported on the remote side before the command runs.
	Env map[string]string

	// WorkDir is cd'd into on the remote side first.
	WorkDir string
}

// Validate rejects combinations that can't work. captured says whether
// the caller wants output back.
func (o RunOptions) Validate(captured bool) error {
	if captured && o.Mode == ModeLogin {
		return errors.NewUsage("Can't capture output in login mode",
			"Login mode hands the terminal to the remote shell. Use interactive or non-interactive mode to capture output.")
	}
	if _, ok := modeNames[o.Mode]; !ok {
		return errors.NewUsage(fmt.Sprintf("Unknown mode %s", o.Mode), "")
	}
	if o.Mode == ModeLogin && (o.LogPath != "" || o.StreamLogs) {
		return errors.NewUsage("Can't log a login session",
			"Login mode hands the terminal to the remote shell, so there is no output to write to a log.")
	}
	for _, p := range o.PortForward {
		if p <= 0 || p > 65535 {
			return errors.NewUsage(fmt.Sprintf("Invalid port to forward: %d", p),
				"Ports must be between 1 and 65535.")
		}
	}
	if o.StreamLogs && o.LogPath == "" {
		return errors.NewUsage("Log streaming needs a log path",
			"Pass --log <file> along with --stream-logs.")
	}
	for k := range o.Env {
		if !validEnvName(k) {
			return errors.NewUsage(fmt.Sprintf("Invalid environment variable name %q", k),
				"Names may contain letters, digits and underscores, and can't start with a digit.")
		}
	}
	return nil
}

// Result is a captured execution.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Run executes cmd and returns the remote exit code. A nonzero exit is not
// an error. Errors mean the command never ran: a usage problem (ErrUsage),
// a transport failure (ErrSSH) or a local spawn or cancellation (ErrExec).
func (r *Runner) Run(ctx context.Context, cmd Command, opts RunOptions) (int, error) {
	out, err := r.execute(ctx, cmd, opts, false)
	return out.ExitCode, err
}

// RunCaptured is Run that also returns the output, verbatim.
func (r *Runner) RunCaptured(ctx context.Context, cmd Command, opts RunOptions) (Result, error) {
	out, err := r.execute(ctx, cmd, opts, true)
	return Result{ExitCode: out.ExitCode, Stdout: out.Stdout, Stderr: out.Stderr}, err
}

func (r *Runner) execute(ctx context.Context, cmd Command, opts RunOptions, captured bool) (exec.Outcome, error) {
	failed := exec.Outcome{ExitCode: -1}

	if err := opts.Validate(captured); err != nil {
		return failed, err
	}
	if cmd.IsEmpty() && opts.Mode != ModeLogin {
		return failed, errors.NewUsage("No command to run",
			"Pass the command after --, e.g. fleetrun exec -- nvidia-smi")
	}
	if err := r.prepare(); err != nil {
		return failed, err
	}

	args := r.sshArgs(cmd, opts)
	spec := exec.Spec{
		Args:           args,
		Stdin:          opts.Stdin,
		Stream:         opts.ProcessStream,
		StreamOut:      opts.Stdout,
		StreamErr:      opts.Stderr,
		LogPath:        opts.LogPath,
		TeeLog:         opts.StreamLogs,
		Capture:        captured,
		SeparateStderr: opts.SeparateStderr,
		Interactive:    opts.Mode == ModeLogin,
	}
	if opts.Mode == ModeInteractive && spec.Stdin == nil {
		spec.Stdin = os.Stdin
	}

	r.log.Debug("%s [%s]: %s", r, opts.Mode, cmd)

	out, err := r.executor.Execute(ctx, spec)
	if err != nil {
		if errors.IsCode(err, errors.ErrExec) || errors.IsCode(err, errors.ErrUsage) {
			return out, err
		}
		return out, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Couldn't run ssh for %s", r),
			"Make sure the OpenSSH client is installed: fleetrun doctor")
	}

	if out.ExitCode == sshTransportExit {
		err := r.transportError(out)
		out.ExitCode = -1
		return out, err
	}

	r.log.Debug("%s exited %d", r, out.ExitCode)
	return out, nil
}

// sshArgs builds the full ssh argv.
func (r *Runner) sshArgs(cmd Command, opts RunOptions) []string {
	args := []string{r.sshBinary}
	args = append(args, r.SSHOptions()...)
	for _, p := range opts.PortForward {
		ps := strconv.Itoa(p)
		args = append(args, "-L", ps+":localhost:"+ps)
	}
	args = append(args, opts.Mode.ttyFlag(), r.Target())

	remote := remoteCommand(cmd.String(), opts.Env, opts.WorkDir)
	if remote != "" {
		args = append(args, remote)
	}
	return args
}

func (r *Runner) transportError(out exec.Outcome) error {
	var cause error
	detail := strings.TrimSpace(out.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(out.Stdout)
	}
	if detail != "" {
		cause = fmt.Errorf("%s", lastLine(detail))
	}

	return errors.WrapWithCode(cause, errors.ErrSSH,
		fmt.Sprintf("Couldn't connect to %s", r),
		fmt.Sprintf("Check the host is up and the key is authorized: ssh -i %s -p %d %s",
			keyOrDefault(r.id.PrivateKey), r.id.Port, r.Target()))
}

func keyOrDefault(key string) string {
	if key == "" {
		return "~/.ssh/id_ed25519"
	}
	return key
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func validEnvName(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
