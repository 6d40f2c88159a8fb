package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/fleetrun/internal/config"
	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/logger"
	"github.com/rileyhilliard/fleetrun/internal/parallel"
	"github.com/rileyhilliard/fleetrun/internal/parallel/logs"
	"github.com/rileyhilliard/fleetrun/internal/runner"
	"github.com/rileyhilliard/fleetrun/internal/ui"
	"github.com/rileyhilliard/fleetrun/pkg/sshutil"
)

// fleetOptions are passed to every runner the CLI builds. Tests swap in a
// fake executor here.
var fleetOptions = func() []runner.Option {
	return []runner.Option{runner.WithLogger(logger.NewEnvLogger("[runner]"))}
}

// sshConfigPath is read to resolve host aliases.
var sshConfigPath = sshutil.DefaultSSHConfigPath

// fleet is the loaded config plus runners for the selected hosts.
type fleet struct {
	cfg     *config.Config
	cfgPath string
	hosts   []config.ResolvedHost
	runners runner.Collection
}

// loadConfig finds, loads and validates the config.
func loadConfig(g *globalOptions) (*config.Config, string, error) {
	cfg, path, err := config.LoadOrDefault(g.configPath)
	if err != nil {
		return nil, "", err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// loadFleet loads the config and builds runners for the hosts f selects.
// Without a configured fleet, --host values are read as [user@]address[:port].
func loadFleet(g *globalOptions, f hostFlags) (*fleet, error) {
	cfg, path, err := loadConfig(g)
	if err != nil {
		return nil, err
	}

	selected, err := selectHosts(cfg, f)
	if err != nil {
		return nil, err
	}

	sshCfg, err := sshutil.LoadSSHConfig(sshConfigPath())
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't read "+sshConfigPath(),
			"Fix the syntax error or move the file aside.")
	}

	resolved := cfg.ResolveHosts(selected, sshCfg)
	runners, err := cfg.BuildFleet(resolved, fleetOptions()...)
	if err != nil {
		return nil, err
	}
	return &fleet{cfg: cfg, cfgPath: path, hosts: resolved, runners: runners}, nil
}

func selectHosts(cfg *config.Config, f hostFlags) ([]config.Host, error) {
	if len(cfg.Hosts) > 0 || len(f.Hosts) == 0 || len(f.Tags) > 0 {
		return cfg.SelectHosts(f.Hosts, f.Tags)
	}
	hosts := make([]config.Host, 0, len(f.Hosts))
	for _, spec := range f.Hosts {
		h, err := config.ParseHostSpec(spec)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}

// fanOut describes one run across the fleet.
type fanOut struct {
	// runName names the log directory, e.g. "exec" or "push".
	runName string
	// title heads the summary.
	title    string
	settings parallel.Config
	saveLogs bool
}

// runFanOut runs job on every runner, prints the summary and saves logs.
// A failed host turns into an ExitError carrying the fleet exit code.
func runFanOut(ctx context.Context, cmd *cobra.Command, g *globalOptions, fl *fleet, run fanOut, job parallel.Job) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	mode := run.settings.OutputMode
	if g.quiet {
		mode = parallel.OutputQuiet
	}
	log := logger.NewEnvLogger("[parallel]")
	om := parallel.NewOutputManager(mode, out, ui.IsTerminal(out))
	orch := parallel.NewOrchestrator(fl.runners, run.settings, om).WithLogger(log)

	result, err := orch.Run(ctx, job)
	om.Close()
	if err != nil {
		return err
	}
	log.Debug("%s: %s", run.runName, parallel.FormatBriefSummary(result))

	sc := parallel.DefaultSummaryConfig()
	sc.Title = run.title
	sc.ShowOutput = om.Mode() == parallel.OutputQuiet

	if run.saveLogs {
		dir, err := saveRunLogs(fl.cfg.Logs, run.runName, result)
		if err != nil {
			warn(errOut, headline(err))
		}
		sc.LogDir = dir
	}

	if g.quiet {
		if !result.Success() {
			parallel.RenderSummaryTo(errOut, result, sc)
		}
	} else {
		parallel.RenderSummaryTo(out, result, sc)
	}

	if !result.Success() {
		return errors.NewExitError(result.ExitCode())
	}
	return nil
}

// saveRunLogs writes the per-host logs and prunes old runs. Returns the
// run's log directory.
func saveRunLogs(cfg config.LogsConfig, runName string, result *parallel.Result) (string, error) {
	lw, err := logs.NewLogWriter(cfg.Dir, runName)
	if err != nil {
		return "", err
	}
	defer lw.Close() //nolint:errcheck

	if err := lw.WriteResult(result, runName); err != nil {
		return lw.Dir(), err
	}
	return lw.Dir(), logs.Cleanup(cfg)
}

// headline is the one-line form of err.
func headline(err error) string {
	var fe *errors.Error
	if stderrors.As(err, &fe) {
		return fe.Message
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}

func warn(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", ui.WarningStyle().Render(ui.SymbolWarning), msg)
}
