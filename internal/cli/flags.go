package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/parallel"
)

// hostFlags selects which hosts a command runs on.
type hostFlags struct {
	Hosts []string
	Tags  []string
}

// addHostFlags registers --host and --tag on a command.
func addHostFlags(cmd *cobra.Command, f *hostFlags) {
	cmd.Flags().StringSliceVarP(&f.Hosts, "host", "H", nil, "host name or address to target (repeatable)")
	cmd.Flags().StringSliceVarP(&f.Tags, "tag", "t", nil, "target hosts carrying this tag (repeatable)")
}

// fanOutFlags override the parallel section of the config for one run.
type fanOutFlags struct {
	Output      string
	MaxParallel int
	FailFast    bool
	Timeout     time.Duration
	NoLogs      bool
}

// addFanOutFlags registers the flags that shape a run across several hosts.
func addFanOutFlags(cmd *cobra.Command, f *fanOutFlags) {
	cmd.Flags().StringVarP(&f.Output, "output", "o", "", "progress, stream, verbose or quiet (default from config)")
	cmd.Flags().IntVarP(&f.MaxParallel, "max-parallel", "j", 0, "hosts in flight at once (0 = all)")
	cmd.Flags().BoolVar(&f.FailFast, "fail-fast", false, "stop starting hosts after the first failure")
	cmd.Flags().DurationVar(&f.Timeout, "timeout", 0, "per-host timeout (e.g. 30s, 5m)")
	cmd.Flags().BoolVar(&f.NoLogs, "no-logs", false, "don't save per-host logs for this run")
}

// apply layers the flags the user actually set over base.
func (f *fanOutFlags) apply(cmd *cobra.Command, base parallel.Config) (parallel.Config, error) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		mode, err := parallel.ParseOutputMode(f.Output)
		if err != nil {
			return base, errors.NewUsage(err.Error(), "")
		}
		base.OutputMode = mode
	}
	if flags.Changed("max-parallel") {
		if f.MaxParallel < 0 {
			return base, errors.NewUsage("--max-parallel can't be negative", "Use 0 to run every host at once.")
		}
		base.MaxParallel = f.MaxParallel
	}
	if flags.Changed("fail-fast") {
		base.FailFast = f.FailFast
	}
	if flags.Changed("timeout") {
		if f.Timeout < 0 {
			return base, errors.NewUsage("--timeout can't be negative", "Try something like 30s or 5m.")
		}
		base.Timeout = f.Timeout
	}
	return base, nil
}

// logFlags send a copy of one host's output to a file.
type logFlags struct {
	Path       string
	StreamLogs bool
}

func addLogFlags(cmd *cobra.Command, f *logFlags) {
	cmd.Flags().StringVar(&f.Path, "log", "", "write a copy of the output to this file")
	cmd.Flags().BoolVar(&f.StreamLogs, "stream-logs", false, "stream output into --log as it arrives")
}

// parseEnv turns KEY=VALUE pairs into a map. Later pairs win.
func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, errors.NewUsage(fmt.Sprintf("Can't read --env %q", pair),
				"Use KEY=VALUE, e.g. --env CUDA_VISIBLE_DEVICES=0")
		}
		env[k] = v
	}
	return env, nil
}
