package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/parallel"
	"github.com/rileyhilliard/fleetrun/internal/runner"
	fsync "github.com/rileyhilliard/fleetrun/internal/sync"
	"github.com/rileyhilliard/fleetrun/internal/ui"
)

type transferOptions struct {
	hosts   hostFlags
	fanOut  fanOutFlags
	log     logFlags

	exclude           []string
	noDefaultExcludes bool
}

func addTransferFlags(cmd *cobra.Command, opts *transferOptions) {
	addHostFlags(cmd, &opts.hosts)
	addFanOutFlags(cmd, &opts.fanOut)
	addLogFlags(cmd, &opts.log)
	cmd.Flags().StringArrayVarP(&opts.exclude, "exclude", "x", nil, "extra rsync exclude pattern (repeatable)")
	cmd.Flags().BoolVar(&opts.noDefaultExcludes, "no-default-excludes", false, "ignore sync.exclude from the config")
}

func newPushCmd(g *globalOptions) *cobra.Command {
	opts := &transferOptions{}
	cmd := &cobra.Command{
		Use:   "push <local> <remote>",
		Short: "Copy local files to every selected host",
		Long: `Copy a local file or directory to every selected host with rsync.

Files matched by .gitignore and by sync.exclude are skipped. A trailing
slash on <local> copies the directory's contents rather than the
directory itself.

Examples:
  fleetrun push ./src ~/project
  fleetrun push ./data/ /scratch/data --tag gpu`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transferCommand(cmd, g, opts, args[0], args[1], true)
		},
	}
	addTransferFlags(cmd, opts)
	return cmd
}

func newPullCmd(g *globalOptions) *cobra.Command {
	opts := &transferOptions{}
	cmd := &cobra.Command{
		Use:   "pull <remote> <local>",
		Short: "Copy files from the selected hosts",
		Long: `Copy a remote file or directory back from the selected hosts with rsync.

With several hosts, each one's files land in <local>/<address>/ so they
can't overwrite each other.

Examples:
  fleetrun pull ~/project/results ./results --host gpu-1
  fleetrun pull /var/log/train.log ./logs --tag gpu`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transferCommand(cmd, g, opts, args[0], args[1], false)
		},
	}
	addTransferFlags(cmd, opts)
	return cmd
}

func transferCommand(cmd *cobra.Command, g *globalOptions, opts *transferOptions, source, target string, up bool) error {
	fl, err := loadFleet(g, opts.hosts)
	if err != nil {
		return err
	}

	syncOpts := runner.SyncOptions{
		LogPath:    opts.log.Path,
		StreamLogs: opts.log.StreamLogs,
	}
	if !opts.noDefaultExcludes {
		syncOpts.Excludes = append(syncOpts.Excludes, fl.cfg.Sync.Exclude...)
	}
	syncOpts.Excludes = append(syncOpts.Excludes, opts.exclude...)

	verb := "pull"
	if up {
		verb = "push"
	}

	if len(fl.runners) == 1 {
		return transferSingle(cmd.Context(), cmd, g, fl.runners[0], source, target, up, syncOpts)
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

	job := parallel.PushJob(source, target, syncOpts)
	if !up {
		job = parallel.PullJob(source, target, true, syncOpts)
	}
	return runFanOut(cmd.Context(), cmd, g, fl, fanOut{
		runName:  verb,
		title:    fmt.Sprintf("%s %s %s", verb, source, target),
		settings: settings,
		saveLogs: fl.cfg.Logs.Save && !opts.fanOut.NoLogs,
	}, job)
}

// transferSingle shows a spinner with rsync's progress for one host.
func transferSingle(ctx context.Context, cmd *cobra.Command, g *globalOptions, r *runner.Runner, source, target string, up bool, opts runner.SyncOptions) error {
	errOut := cmd.ErrOrStderr()

	label := "Pulling from " + r.String()
	done := "Pulled from " + r.String()
	if up {
		label = "Pushing to " + r.String()
		done = "Pushed to " + r.String()
	}

	if g.quiet {
		return r.Rsync(ctx, source, target, up, opts)
	}

	spinner := ui.NewSpinner(label, errOut)
	spinner.Start()
	opts.OnProgress = func(p fsync.Progress) {
		spinner.SetLabel(label + " " + ui.MutedStyle().Render(p.Summary()))
	}

	if err := r.Rsync(ctx, source, target, up, opts); err != nil {
		spinner.SetLabel(label)
		spinner.Fail()
		return err
	}
	spinner.SetLabel(done)
	spinner.Success()
	return nil
}
