package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/fleetrun/internal/config"
	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/ui"
	"github.com/rileyhilliard/fleetrun/pkg/sshutil"
)

func newHostsCmd(g *globalOptions) *cobra.Command {
	list := newHostsListCmd(g)
	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "List and add fleet hosts",
		Long: `Show the hosts in .fleetrun.yaml with every connection setting resolved,
or add new ones.

Examples:
  fleetrun hosts
  fleetrun hosts list --tag gpu
  fleetrun hosts list --ssh-config
  fleetrun hosts add ubuntu@10.0.0.3 --name gpu-3 --tag gpu`,
		Args: cobra.NoArgs,
		RunE: list.RunE,
	}
	cmd.Flags().AddFlagSet(list.Flags())
	cmd.AddCommand(list, newHostsAddCmd(g))
	return cmd
}

type hostsListOptions struct {
	hosts     hostFlags
	sshConfig bool
}

func newHostsListCmd(g *globalOptions) *cobra.Command {
	opts := &hostsListOptions{}
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List configured hosts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.sshConfig {
				return listSSHConfigHosts(cmd.OutOrStdout())
			}
			return listHosts(cmd.OutOrStdout(), g, opts.hosts)
		},
	}
	addHostFlags(cmd, &opts.hosts)
	cmd.Flags().BoolVar(&opts.sshConfig, "ssh-config", false, "list aliases from ~/.ssh/config instead")
	return cmd
}

func listHosts(w io.Writer, g *globalOptions, f hostFlags) error {
	cfg, path, err := loadConfig(g)
	if err != nil {
		return err
	}
	if len(cfg.Hosts) == 0 {
		where := path
		if where == "" {
			where = "No config file"
		}
		fmt.Fprintf(w, "%s: no hosts configured\n", where)
		fmt.Fprintln(w, ui.MutedStyle().Render("Add one with 'fleetrun hosts add user@address'."))
		return nil
	}

	selected, err := cfg.SelectHosts(f.Hosts, f.Tags)
	if err != nil {
		return err
	}
	sshCfg, err := sshutil.LoadSSHConfig(sshConfigPath())
	if err != nil {
		sshCfg = nil
	}

	rows := make([][]string, 0, len(selected))
	for _, h := range cfg.ResolveHosts(selected, sshCfg) {
		port := sshutil.DefaultPort
		if h.Port != 0 {
			port = h.Port
		}
		rows = append(rows, []string{
			h.Label,
			h.Address,
			strconv.Itoa(port),
			orDash(h.User),
			orDash(h.IdentityFile),
			orDash(strings.Join(h.Tags, ",")),
		})
	}
	fmt.Fprint(w, ui.RenderTable([]string{"NAME", "ADDRESS", "PORT", "USER", "KEY", "TAGS"}, rows))
	return nil
}

func listSSHConfigHosts(w io.Writer) error {
	sshCfg, err := sshutil.LoadSSHConfig(sshConfigPath())
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Can't read "+sshConfigPath(),
			"Fix the syntax error or move the file aside.")
	}
	entries := sshCfg.Aliases()
	if len(entries) == 0 {
		fmt.Fprintln(w, "No host aliases in "+sshConfigPath())
		return nil
	}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{e.Alias, e.Summary()}
	}
	fmt.Fprint(w, ui.RenderTable([]string{"ALIAS", "DETAILS"}, rows))
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

type hostsAddOptions struct {
	name         string
	tags         []string
	identityFile string
}

func newHostsAddCmd(g *globalOptions) *cobra.Command {
	opts := &hostsAddOptions{}
	cmd := &cobra.Command{
		Use:   "add <[user@]address[:port]>",
		Short: "Add a host to .fleetrun.yaml",
		Long: `Append a host to .fleetrun.yaml. Comments and formatting in the file
are kept.

Examples:
  fleetrun hosts add 10.0.0.3
  fleetrun hosts add ubuntu@gpu-3.internal:2222 --name gpu-3 --tag gpu --tag a100`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return addHost(cmd.OutOrStdout(), g, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.name, "name", "N", "", "label for the host (default: the address)")
	cmd.Flags().StringSliceVarP(&opts.tags, "tag", "t", nil, "tag the host (repeatable)")
	cmd.Flags().StringVarP(&opts.identityFile, "identity-file", "i", "", "private key for this host")
	return cmd
}

func addHost(w io.Writer, g *globalOptions, opts *hostsAddOptions, spec string) error {
	h, err := config.ParseHostSpec(spec)
	if err != nil {
		return err
	}
	h.Name = opts.name
	h.Tags = opts.tags
	h.IdentityFile = opts.identityFile

	cfg, path, err := loadConfig(g)
	if err != nil {
		return err
	}
	if path == "" {
		return errors.New(errors.ErrConfig, "No "+config.ConfigFileName+" found",
			"Run 'fleetrun init --host "+spec+"' to create one.")
	}

	cfg.Hosts = append(cfg.Hosts, h)
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.AddHost(path, h); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s Added %s to %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), h.Label(), path)
	return nil
}
