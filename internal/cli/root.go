package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/logger"
	"github.com/rileyhilliard/fleetrun/internal/ui"
	"github.com/rileyhilliard/fleetrun/internal/util"
)

// Exit codes used when no remote exit code applies.
const (
	exitFailure = 1
	exitUsage   = 2
)

// globalOptions holds the root command's persistent flags.
type globalOptions struct {
	configPath string
	verbose    bool
	quiet      bool
	noColor    bool
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "fleetrun",
		Short: "Run commands and sync files across a fleet of ssh hosts",
		Long: `fleetrun runs shell commands on one or many remote hosts over ssh and
moves files to and from them with rsync.

Hosts are listed in .fleetrun.yaml. Commands run on every host at once
unless narrowed with --host or --tag.

Examples:
  fleetrun init
  fleetrun exec -- nvidia-smi
  fleetrun push ./src ~/src --tag gpu
  fleetrun doctor`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.ConfigureColors(cmd.OutOrStdout(), g.noColor)
			if g.verbose {
				os.Setenv(logger.DebugEnv, "1") //nolint:errcheck
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default: nearest .fleetrun.yaml)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log ssh and rsync invocations")
	pf.BoolVarP(&g.quiet, "quiet", "q", false, "only print command output and errors")
	pf.BoolVar(&g.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newExecCmd(g),
		newShellCmd(g),
		newPushCmd(g),
		newPullCmd(g),
		newDoctorCmd(g),
		newCleanCmd(g),
		newInitCmd(g),
		newHostsCmd(g),
		newVersionCmd(),
		newCompletionCmd(root),
	)
	return root
}

// Execute runs the CLI and exits the process.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	stop()
	os.Exit(handleError(root, err, os.Stderr))
}

// handleError prints err and picks the process exit code.
func handleError(root *cobra.Command, err error, w io.Writer) int {
	if err == nil {
		return 0
	}
	if code, ok := errors.GetExitCode(err); ok {
		return code
	}

	errStyle := ui.ErrorStyle()
	if isUnknownCommandError(err) {
		fmt.Fprintln(w, errStyle.Render(ui.SymbolFail+" "+err.Error()))
		if name := extractUnknownCommand(err); name != "" {
			var names []string
			for _, c := range root.Commands() {
				names = append(names, c.Name())
			}
			if similar := util.SuggestSimilar(name, names, 2); len(similar) > 0 {
				fmt.Fprintf(w, "\n  Did you mean: %s?\n", strings.Join(similar, ", "))
			}
		}
		fmt.Fprintf(w, "\n  Run '%s --help' for usage.\n", root.Name())
		return exitUsage
	}

	var fe *errors.Error
	if stderrors.As(err, &fe) {
		fmt.Fprint(w, errStyle.Render(fe.Error()))
		if fe.Code == errors.ErrUsage {
			return exitUsage
		}
		return exitFailure
	}

	fmt.Fprintln(w, errStyle.Render(ui.SymbolFail+" "+err.Error()))
	return exitFailure
}

// isUnknownCommandError matches cobra's unknown command and flag errors.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

// extractUnknownCommand pulls the command name out of
// `unknown command "foo" for "fleetrun"`.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}

func newCompletionCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion scripts for fleetrun.

Examples:
  fleetrun completion bash > /etc/bash_completion.d/fleetrun
  fleetrun completion zsh > "${fpath[1]}/_fleetrun"
  fleetrun completion fish > ~/.config/fish/completions/fleetrun.fish`,
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletion(out)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			default:
				return root.GenPowerShellCompletion(out)
			}
		},
	}
}
