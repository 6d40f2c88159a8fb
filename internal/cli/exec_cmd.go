package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/exec"
	"github.com/rileyhilliard/fleetrun/internal/parallel"
	"github.com/rileyhilliard/fleetrun/internal/runner"
	"github.com/rileyhilliard/fleetrun/internal/ui"
)

// stderrTailSize is how much of a single host's stderr is kept for
// command-not-found detection.
const stderrTailSize = 4096

type execOptions struct {
	hosts   hostFlags
	fanOut  fanOutFlags
	log     logFlags
	env     []string
	workDir string
	forward []int
	tty     bool
}

func newExecCmd(g *globalOptions) *cobra.Command {
	opts := &execOptions{}
	cmd := &cobra.Command{
		Use:   "exec [flags] -- <command> [args...]",
		Short: "Run a command on the selected hosts",
		Long: `Run a command on every selected host over ssh.

The command is handed to the remote shell as typed, so pipes and globs
work. Several arguments are joined with spaces.

With one host, output streams straight through and fleetrun exits with
the remote exit code. With several, hosts run in parallel and a summary
follows.

Examples:
  fleetrun exec -- nvidia-smi
  fleetrun exec --tag gpu 'df -h | grep data'
  fleetrun exec --host gpu-1 --env CUDA_VISIBLE_DEVICES=0 -- python train.py
  fleetrun exec --host gpu-1 --forward 8888 -- jupyter lab --no-browser`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execCommand(cmd, g, opts, args)
		},
	}

	addHostFlags(cmd, &opts.hosts)
	addFanOutFlags(cmd, &opts.fanOut)
	addLogFlags(cmd, &opts.log)
	cmd.Flags().StringArrayVarP(&opts.env, "env", "e", nil, "KEY=VALUE to export before the command (repeatable)")
	cmd.Flags().StringVarP(&opts.workDir, "workdir", "C", "", "remote directory to run in")
	cmd.Flags().IntSliceVarP(&opts.forward, "forward", "L", nil, "forward a local port to the same port on the host")
	cmd.Flags().BoolVar(&opts.tty, "tty", false, "allocate a pseudo-terminal for commands that prompt")
	return cmd
}

// commandFromArgs reads one argument as a shell string, several as an
// argument list.
func commandFromArgs(args []string) runner.Command {
	if len(args) == 1 {
		return runner.Shell(args[0])
	}
	return runner.Argv(args...)
}

func execCommand(cmd *cobra.Command, g *globalOptions, opts *execOptions, args []string) error {
	command := commandFromArgs(args)

	env, err := parseEnv(opts.env)
	if err != nil {
		return err
	}
	runOpts := runner.RunOptions{
		PortForward: opts.forward,
		LogPath:     opts.log.Path,
		StreamLogs:  opts.log.StreamLogs,
		Env:         env,
		WorkDir:     opts.workDir,
	}
	if opts.tty {
		runOpts.Mode = runner.ModeInteractive
	}

	fl, err := loadFleet(g, opts.hosts)
	if err != nil {
		return err
	}

	if len(fl.runners) == 1 {
		return execSingle(cmd.Context(), cmd, g, fl.runners[0], command, runOpts)
	}

	if len(opts.forward) > 0 {
		return errors.NewUsage("Can't forward ports from several hosts at once",
			"Narrow to one host with --host.")
	}
	if opts.log.Path != "" {
		return errors.NewUsage("--log works with a single host",
			"Runs across several hosts save per-host logs under logs.dir instead.")
	}

	settings, err := fl.cfg.ParallelSettings()
	if err != nil {
		return err
	}
	if settings, err = opts.fanOut.apply(cmd, settings); err != nil {
		return err
	}

	return runFanOut(cmd.Context(), cmd, g, fl, fanOut{
		runName:  "exec",
		title:    command.String(),
		settings: settings,
		saveLogs: fl.cfg.Logs.Save && !opts.fanOut.NoLogs,
	}, parallel.ExecJob(command, runOpts))
}

// execSingle streams one host's output straight through.
func execSingle(ctx context.Context, cmd *cobra.Command, g *globalOptions, r *runner.Runner, command runner.Command, opts runner.RunOptions) error {
	errOut := cmd.ErrOrStderr()
	tail := &tailBuffer{max: stderrTailSize}

	opts.ProcessStream = true
	opts.Stdout = cmd.OutOrStdout()
	opts.Stderr = io.MultiWriter(errOut, tail)
	opts.SeparateStderr = true
	if opts.Mode == runner.ModeInteractive {
		opts.Stdin = cmd.InOrStdin()
	}

	pd := ui.NewPhaseDisplay(errOut)
	pd.SetQuiet(g.quiet)
	pd.CommandPrompt(r.String() + " " + command.String())

	start := time.Now()
	code, err := r.Run(ctx, command, opts)
	if err != nil {
		return err
	}
	if code == 0 {
		return nil
	}

	pd.RenderFailed(fmt.Sprintf("%s exited with %d", r, code), time.Since(start))
	if hint := exec.HandleExecError(r.String(), command.String(), tail.String(), code); hint != nil {
		cmd.PrintErr(ui.ErrorStyle().Render(hint.Error()))
	}
	return errors.NewExitError(code)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
