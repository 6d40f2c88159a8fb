package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/fleetrun/internal/clean"
	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/parallel"
	"github.com/rileyhilliard/fleetrun/internal/parallel/logs"
	"github.com/rileyhilliard/fleetrun/internal/ui"
	"github.com/rileyhilliard/fleetrun/internal/util"
)

// confirm asks a yes/no question on the terminal.
var confirm = func(title string) (bool, error) {
	var ok bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Value(&ok),
	)).Run()
	if stderrors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}

type cleanOptions struct {
	hosts   hostFlags
	dryRun  bool
	yes     bool
	logs    bool
	masters bool
}

func newCleanCmd(g *globalOptions) *cobra.Command {
	opts := &cleanOptions{}
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale control sockets and saved logs",
		Long: `Remove what multiplexed ssh sessions leave behind.

Control sockets nothing is listening on, and the empty directories that
held them, are deleted. Sockets with a live master are kept unless
--masters shuts the masters down first.

Examples:
  fleetrun clean --dry-run
  fleetrun clean --masters --yes
  fleetrun clean --logs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cleanCommand(cmd, g, opts)
		},
	}
	addHostFlags(cmd, &opts.hosts)
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "show what would be removed")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "don't ask for confirmation")
	cmd.Flags().BoolVar(&opts.logs, "logs", false, "also delete saved run logs")
	cmd.Flags().BoolVar(&opts.masters, "masters", false, "close the selected hosts' master connections first")
	return cmd
}

func cleanCommand(cmd *cobra.Command, g *globalOptions, opts *cleanOptions) error {
	out := cmd.OutOrStdout()

	if opts.masters && !opts.dryRun {
		fl, err := loadFleet(g, opts.hosts)
		if err != nil {
			return err
		}
		result, err := clean.CloseMasters(cmd.Context(), fl.runners)
		if err != nil {
			return err
		}
		printMastersResult(out, result)
	}

	root := controlRoot()
	found, err := clean.Discover(root)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrExec, "Can't scan "+root, "Check the directory's permissions.")
	}
	stale := clean.Stale(found)
	if live := len(found) - len(stale); live > 0 {
		fmt.Fprintf(out, "%s %d live master %s kept\n", ui.MutedStyle().Render(ui.SymbolComplete),
			live, util.Pluralize(live, "connection", "connections"))
	}

	var logDirs []logs.LogDirInfo
	var logBase string
	if opts.logs {
		cfg, _, err := loadConfig(g)
		if err != nil {
			return err
		}
		logBase = cfg.Logs.Dir
		if logDirs, err = logs.ListLogDirs(logBase); err != nil {
			return err
		}
	}

	if len(stale) == 0 && len(logDirs) == 0 {
		fmt.Fprintf(out, "%s Nothing to clean\n", ui.SuccessStyle().Render(ui.SymbolSuccess))
		return nil
	}

	for _, s := range stale {
		what := "dead socket"
		if s.EmptyDir {
			what = "empty directory"
		}
		fmt.Fprintf(out, "  %s  %s\n", s.Path, ui.MutedStyle().Render("("+what+")"))
	}
	for _, d := range logDirs {
		fmt.Fprintf(out, "  %s  %s\n", d.Path, ui.MutedStyle().Render("(run log)"))
	}
	total := len(stale) + len(logDirs)

	if opts.dryRun {
		fmt.Fprintf(out, "\n%s Dry run: would remove %d %s\n", ui.SymbolPending,
			total, util.Pluralize(total, "entry", "entries"))
		return nil
	}

	if !opts.yes {
		if !ui.IsTerminal(os.Stdin) {
			return errors.NewUsage("Not removing anything without confirmation",
				"Pass --yes to clean from a script.")
		}
		ok, err := confirm(fmt.Sprintf("Remove %d %s?", total, util.Pluralize(total, "entry", "entries")))
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrUsage, "Couldn't ask for confirmation", "Pass --yes to skip the prompt.")
		}
		if !ok {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	removed, errs := clean.Remove(root, stale)
	n := len(removed)
	if len(logDirs) > 0 {
		count, err := logs.CleanAll(logBase)
		if err != nil {
			errs = append(errs, err)
		}
		n += count
	}

	for _, e := range errs {
		warn(cmd.ErrOrStderr(), headline(e))
	}
	fmt.Fprintf(out, "\n%s Removed %d %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess),
		n, util.Pluralize(n, "entry", "entries"))
	if len(errs) > 0 {
		return errors.NewExitError(exitFailure)
	}
	return nil
}

func printMastersResult(w io.Writer, result *parallel.Result) {
	for i := range result.Hosts {
		hr := &result.Hosts[i]
		if hr.Success() {
			fmt.Fprintf(w, "%s Closed master for %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), hr.Host)
			continue
		}
		msg := "failed"
		if hr.Err != nil {
			msg = headline(hr.Err)
		}
		fmt.Fprintf(w, "%s %s: %s\n", ui.WarningStyle().Render(ui.SymbolWarning), hr.Host, msg)
	}
}
