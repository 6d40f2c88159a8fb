package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/fleetrun/internal/doctor"
	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/exec"
	"github.com/rileyhilliard/fleetrun/internal/logger"
	"github.com/rileyhilliard/fleetrun/internal/ui"
	"github.com/rileyhilliard/fleetrun/pkg/sshutil"
)

// localExecutor runs the local tool checks.
var localExecutor = func() exec.Executor {
	return exec.NewLocal(logger.NewEnvLogger("[doctor]"))
}

// controlRoot is where multiplexing sockets live.
var controlRoot = sshutil.DefaultControlRoot

type doctorOptions struct {
	hosts   hostFlags
	fix     bool
	json    bool
	noHosts bool
	timeout time.Duration
}

func newDoctorCmd(g *globalOptions) *cobra.Command {
	opts := &doctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose config, local tools, keys and hosts",
		Long: `Run diagnostic checks and report what stands between you and the fleet.

Checks:
  - .fleetrun.yaml loads and validates
  - ssh and rsync are installed locally
  - ssh-agent is reachable and has keys
  - identity files parse and are private
  - the control socket directory is private
  - every host answers over ssh and has rsync

Examples:
  fleetrun doctor
  fleetrun doctor --fix
  fleetrun doctor --tag gpu --timeout 5s
  fleetrun doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return doctorCommand(cmd.Context(), cmd, g, opts)
		},
	}
	addHostFlags(cmd, &opts.hosts)
	cmd.Flags().BoolVar(&opts.fix, "fix", false, "repair file permissions where possible")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output results as JSON")
	cmd.Flags().BoolVar(&opts.noHosts, "no-hosts", false, "skip the checks that connect to hosts")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-host check timeout")
	return cmd
}

// collectChecks runs the config check and builds every check that
// follows from it. The config check's result comes back with the list.
func collectChecks(ctx context.Context, g *globalOptions, opts *doctorOptions) ([]doctor.Check, []doctor.CheckResult) {
	cc := &doctor.ConfigCheck{Path: g.configPath}
	checks := []doctor.Check{cc}
	results := doctor.RunAll(ctx, checks)

	checks = append(checks, doctor.NewLocalChecks(localExecutor(), controlRoot())...)

	cfg := cc.Config
	if cfg == nil || len(cfg.Hosts) == 0 {
		return checks, results
	}

	selected, err := cfg.SelectHosts(opts.hosts.Hosts, opts.hosts.Tags)
	if err != nil {
		return checks, results
	}
	sshCfg, err := sshutil.LoadSSHConfig(sshConfigPath())
	if err != nil {
		sshCfg = nil
	}
	resolved := cfg.ResolveHosts(selected, sshCfg)
	checks = append(checks, doctor.NewKeyChecks(resolved)...)

	if opts.noHosts {
		return checks, results
	}
	fleet, err := cfg.BuildFleet(resolved, fleetOptions()...)
	if err != nil {
		return checks, results
	}
	labels := make([]string, len(resolved))
	for i, h := range resolved {
		labels[i] = h.Label
	}
	return append(checks, doctor.NewHostChecks(fleet, labels, opts.timeout)...), results
}

func doctorCommand(ctx context.Context, cmd *cobra.Command, g *globalOptions, opts *doctorOptions) error {
	if opts.hosts.Hosts != nil || opts.hosts.Tags != nil {
		// unknown names and tags fail here rather than dropping checks
		cfg, _, err := loadConfig(g)
		if err != nil {
			return err
		}
		if _, err := cfg.SelectHosts(opts.hosts.Hosts, opts.hosts.Tags); err != nil {
			return err
		}
	}

	checks, results := collectChecks(ctx, g, opts)
	results = append(results, doctor.RunAllParallel(ctx, checks[len(results):])...)

	out := cmd.OutOrStdout()
	if opts.fix && doctor.FixableCount(results) == 0 && !opts.json {
		ui.NewPhaseDisplay(out).RenderSkipped("Fix", "nothing --fix can repair")
	}
	if opts.fix && doctor.FixableCount(results) > 0 {
		fixed, err := doctor.FixAll(checks, results)
		for _, name := range fixed {
			for i := range checks {
				if checks[i].Name() == name {
					results[i] = doctor.RunAll(ctx, checks[i:i+1])[0]
				}
			}
		}
		if !opts.json {
			for _, name := range fixed {
				fmt.Fprintf(out, "%s Fixed %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), name)
			}
			if len(fixed) > 0 {
				fmt.Fprintln(out)
			}
		}
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrExec, "Couldn't apply every fix", "Fix the rest by hand, see the suggestions above.")
		}
	}

	if opts.json {
		if err := writeDoctorJSON(out, results); err != nil {
			return err
		}
	} else {
		writeDoctorText(out, results, opts.fix)
	}

	if doctor.HasFailures(results) {
		return errors.NewExitError(exitFailure)
	}
	return nil
}

func writeDoctorText(w io.Writer, results []doctor.CheckResult, fixed bool) {
	fmt.Fprint(w, ui.RenderChecks(doctor.Rows(results)))

	summary := doctor.Summary(results)
	switch {
	case doctor.HasFailures(results):
		fmt.Fprintln(w, ui.ErrorStyle().Render(ui.SymbolFail+" "+summary))
	case doctor.HasIssues(results):
		fmt.Fprintln(w, ui.WarningStyle().Render(ui.SymbolWarning+" "+summary))
	default:
		fmt.Fprintln(w, ui.SuccessStyle().Render(ui.SymbolSuccess+" "+summary))
	}

	if n := doctor.FixableCount(results); n > 0 && !fixed {
		fmt.Fprintf(w, "  %s\n", ui.MutedStyle().Render(fmt.Sprintf("Run 'fleetrun doctor --fix' to repair %d of them.", n)))
	}
}

// doctorJSON is the --json document.
type doctorJSON struct {
	Checks  []checkJSON       `json:"checks"`
	Summary doctorSummaryJSON `json:"summary"`
}

type checkJSON struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
	Fixable    bool   `json:"fixable,omitempty"`
}

type doctorSummaryJSON struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	Fixable  int  `json:"fixable"`
	AllClear bool `json:"all_clear"`
}

func writeDoctorJSON(w io.Writer, results []doctor.CheckResult) error {
	doc := doctorJSON{Checks: make([]checkJSON, len(results))}
	for i, r := range results {
		doc.Checks[i] = checkJSON{
			Name:       r.Name,
			Category:   r.Category,
			Status:     r.Status.String(),
			Message:    r.Message,
			Suggestion: r.Suggestion,
			Fixable:    r.Fixable,
		}
	}
	counts := doctor.CountByStatus(results)
	doc.Summary = doctorSummaryJSON{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		Fixable:  doctor.FixableCount(results),
		AllClear: !doctor.HasIssues(results),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
