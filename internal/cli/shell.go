package cli

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/fleetrun/internal/config"
	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/runner"
	"github.com/rileyhilliard/fleetrun/internal/ui"
)

type shellOptions struct {
	hosts   hostFlags
	forward []int
}

func newShellCmd(g *globalOptions) *cobra.Command {
	opts := &shellOptions{}
	cmd := &cobra.Command{
		Use:   "shell [host] [-- command]",
		Short: "Open a login shell on one host",
		Long: `Hand the terminal to a login shell on one host.

Without a host, and with more than one configured, fleetrun asks which
one. A command after -- runs in the login shell instead of an
interactive session, which picks up PATH from the shell profile.

Examples:
  fleetrun shell gpu-1
  fleetrun shell gpu-1 --forward 6006
  fleetrun shell gpu-1 -- 'which python'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return shellCommand(cmd, g, opts, args)
		},
	}
	addHostFlags(cmd, &opts.hosts)
	cmd.Flags().IntSliceVarP(&opts.forward, "forward", "L", nil, "forward a local port to the same port on the host")
	return cmd
}

func shellCommand(cmd *cobra.Command, g *globalOptions, opts *shellOptions, args []string) error {
	flags := opts.hosts
	dash := cmd.ArgsLenAtDash()
	hostArgs := args
	var remote []string
	if dash >= 0 {
		hostArgs, remote = args[:dash], args[dash:]
	}
	if len(hostArgs) > 1 {
		return errors.NewUsage("shell takes one host",
			"Put the command after --, e.g. fleetrun shell gpu-1 -- htop")
	}
	if len(hostArgs) == 1 {
		flags.Hosts = append(flags.Hosts, hostArgs[0])
	}

	if len(flags.Hosts) == 0 && len(flags.Tags) == 0 {
		name, err := pickShellHost(g)
		if err != nil {
			return err
		}
		if name == "" {
			return nil
		}
		flags.Hosts = []string{name}
	}

	fl, err := loadFleet(g, flags)
	if err != nil {
		return err
	}
	if len(fl.runners) != 1 {
		return errors.NewUsage(
			fmt.Sprintf("shell needs exactly one host, %d selected", len(fl.runners)),
			"Name the host, e.g. fleetrun shell "+fl.hosts[0].Label)
	}

	var command runner.Command
	if len(remote) > 0 {
		command = commandFromArgs(remote)
	}

	r := fl.runners[0]
	pd := ui.NewPhaseDisplay(cmd.ErrOrStderr())
	pd.SetQuiet(g.quiet)
	pd.RenderSubStatus(ui.SymbolProgress, "Connecting to", r.String())

	start := time.Now()
	code, err := r.Run(cmd.Context(), command, runner.RunOptions{
		Mode:        runner.ModeLogin,
		PortForward: opts.forward,
		Stdin:       cmd.InOrStdin(),
		Stdout:      cmd.OutOrStdout(),
		Stderr:      cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	if code != 0 {
		pd.RenderFailed(fmt.Sprintf("Session on %s exited with %d", r, code), time.Since(start))
		return errors.NewExitError(code)
	}
	pd.RenderSuccess("Session on "+r.String()+" closed", time.Since(start))
	return nil
}

// pickShellHost returns the only configured host, or asks for one. An
// empty name means the user backed out.
func pickShellHost(g *globalOptions) (string, error) {
	cfg, _, err := loadConfig(g)
	if err != nil {
		return "", err
	}
	switch len(cfg.Hosts) {
	case 0:
		return "", errors.New(errors.ErrConfig, "No hosts configured",
			"Pass one, e.g. fleetrun shell user@10.0.0.5, or run 'fleetrun hosts add'.")
	case 1:
		return cfg.Hosts[0].Label(), nil
	}

	options := make([]huh.Option[string], len(cfg.Hosts))
	for i, h := range cfg.Hosts {
		options[i] = huh.NewOption(hostOptionLabel(h), h.Label())
	}

	var name string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Open a shell on").
			Options(options...).
			Value(&name),
	))
	if err := form.Run(); err != nil {
		if stderrors.Is(err, huh.ErrUserAborted) {
			return "", nil
		}
		return "", errors.WrapWithCode(err, errors.ErrUsage,
			"Couldn't ask which host to use",
			"Name the host instead: fleetrun shell <host>")
	}
	return name, nil
}

func hostOptionLabel(h config.Host) string {
	if h.Name == "" || h.Name == h.Address {
		return h.Address
	}
	return h.Name + " (" + h.Address + ")"
}
