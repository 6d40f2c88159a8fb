package cli

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rileyhilliard/fleetrun/internal/config"
	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/ui"
	"github.com/rileyhilliard/fleetrun/internal/util"
	"github.com/rileyhilliard/fleetrun/pkg/sshutil"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Hosts          []string // [user@]address[:port] specs
	User           string   // default user for every host
	IdentityFile   string
	Force          bool // overwrite an existing config without asking
	NonInteractive bool // never prompt
}

func newInitCmd(g *globalOptions) *cobra.Command {
	opts := &InitOptions{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create .fleetrun.yaml",
		Long: `Create a .fleetrun.yaml in the current directory.

Without --host, fleetrun offers the hosts in ~/.ssh/config to pick from,
or asks for addresses.

Examples:
  fleetrun init
  fleetrun init --host ubuntu@10.0.0.1 --host ubuntu@10.0.0.2
  fleetrun init --user ubuntu --identity-file ~/.ssh/fleet --non-interactive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !ui.IsTerminal(os.Stdin) {
				opts.NonInteractive = true
			}
			return runInit(cmd, g, *opts)
		},
	}
	cmd.Flags().StringSliceVarP(&opts.Hosts, "host", "H", nil, "host to add, [user@]address[:port] (repeatable)")
	cmd.Flags().StringVarP(&opts.User, "user", "u", "", "default ssh user")
	cmd.Flags().StringVarP(&opts.IdentityFile, "identity-file", "i", "", "default private key")
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "overwrite an existing config")
	cmd.Flags().BoolVar(&opts.NonInteractive, "non-interactive", false, "never prompt")
	return cmd
}

func runInit(cmd *cobra.Command, g *globalOptions, opts InitOptions) error {
	path := g.configPath
	if path == "" {
		path = config.ConfigFileName
	}
	out := cmd.OutOrStdout()

	if _, err := os.Stat(path); err == nil && !opts.Force {
		if opts.NonInteractive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", path),
				"Use --force to overwrite")
		}
		ok, err := confirm(fmt.Sprintf("%s already exists. Overwrite?", path))
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, "Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !ok {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	cfg.User = opts.User
	cfg.IdentityFile = opts.IdentityFile

	for _, spec := range opts.Hosts {
		h, err := config.ParseHostSpec(spec)
		if err != nil {
			return err
		}
		cfg.Hosts = append(cfg.Hosts, h)
	}

	if len(cfg.Hosts) == 0 && !opts.NonInteractive {
		hosts, cancelled, err := promptHosts()
		if err != nil {
			return err
		}
		if cancelled {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
		cfg.Hosts = hosts
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.Write(path, cfg); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s Created %s with %d %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess),
		path, len(cfg.Hosts), util.Pluralize(len(cfg.Hosts), "host", "hosts"))
	fmt.Fprintln(out)
	fmt.Fprintln(out, ui.MutedStyle().Render("Next steps:"))
	if len(cfg.Hosts) == 0 {
		fmt.Fprintln(out, "  fleetrun hosts add user@address")
	}
	fmt.Fprintln(out, "  fleetrun doctor")
	fmt.Fprintln(out, "  fleetrun exec -- uptime")
	return nil
}

// promptHosts picks hosts from ~/.ssh/config, or asks for addresses when
// there are none to pick from.
func promptHosts() ([]config.Host, bool, error) {
	sshCfg, err := sshutil.LoadSSHConfig(sshConfigPath())
	if err == nil {
		if entries := sshCfg.Aliases(); len(entries) > 0 {
			picked, err := ui.PickHosts(entries)
			if err != nil {
				return nil, false, err
			}
			if len(picked) == 0 {
				return nil, true, nil
			}
			hosts := make([]config.Host, len(picked))
			for i, e := range picked {
				hosts[i] = config.Host{Address: e.Alias}
			}
			return hosts, false, nil
		}
	}

	var raw string
	err = huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Hosts").
			Description("Comma-separated, each [user@]address[:port]").
			Placeholder("ubuntu@10.0.0.1, ubuntu@10.0.0.2").
			Value(&raw).
			Validate(func(s string) error {
				_, err := parseHostList(s)
				return err
			}),
	)).Run()
	if stderrors.Is(err, huh.ErrUserAborted) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, errors.WrapWithCode(err, errors.ErrConfig, "Failed to get user input",
			"Pass hosts with --host instead.")
	}
	hosts, err := parseHostList(raw)
	return hosts, false, err
}

// parseHostList reads a comma-separated list of host specs.
func parseHostList(s string) ([]config.Host, error) {
	var hosts []config.Host
	for _, spec := range strings.Split(s, ",") {
		if strings.TrimSpace(spec) == "" {
			continue
		}
		h, err := config.ParseHostSpec(spec)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("enter at least one host")
	}
	return hosts, nil
}
