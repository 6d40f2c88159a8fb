package doctor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rileyhilliard/fleetrun/internal/config"
	"github.com/rileyhilliard/fleetrun/internal/runner"
)

// checkCommand succeeds only when the host is reachable and has rsync.
const checkCommand = "command -v rsync"

// HostCheck connects to one host and looks for rsync there. One ssh round
// trip covers both.
type HostCheck struct {
	Label  string
	Runner *runner.Runner
	// Timeout bounds the whole check. Zero means the runner's connect
	// timeout is the only limit.
	Timeout time.Duration
}

func (c *HostCheck) Name() string     { return "host_" + c.Label }
func (c *HostCheck) Category() string { return CategoryHosts }

func (c *HostCheck) Run(ctx context.Context) CheckResult {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := c.Runner.RunCaptured(ctx, runner.Shell(checkCommand), runner.RunOptions{
		SeparateStderr: true,
	})
	if err != nil {
		return failure(c.Label, err)
	}
	latency := time.Since(start).Round(time.Millisecond)

	if res.ExitCode != 0 {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("%s: reachable (%s) but rsync is missing", c.Label, latency),
			Suggestion: "Install it on the host: apt install rsync / dnf install rsync. push and pull need it.",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s: connected in %s, rsync at %s", c.Label, latency, strings.TrimSpace(res.Stdout)),
	}
}

func (c *HostCheck) Fix() error { return nil }

// NewHostChecks creates one HostCheck per runner. labels line up with fleet.
func NewHostChecks(fleet runner.Collection, labels []string, timeout time.Duration) []Check {
	checks := make([]Check, len(fleet))
	for i, r := range fleet {
		label := r.String()
		if i < len(labels) && labels[i] != "" {
			label = labels[i]
		}
		checks[i] = &HostCheck{Label: label, Runner: r, Timeout: timeout}
	}
	return checks
}

// NewKeyChecks creates one KeyCheck per distinct identity file. Hosts
// without one rely on ssh's defaults and the agent, so they add nothing.
func NewKeyChecks(hosts []config.ResolvedHost) []Check {
	users := make(map[string][]string)
	for _, h := range hosts {
		if h.IdentityFile == "" {
			continue
		}
		users[h.IdentityFile] = append(users[h.IdentityFile], h.Label)
	}

	paths := make([]string, 0, len(users))
	for p := range users {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	checks := make([]Check, len(paths))
	for i, p := range paths {
		checks[i] = &KeyCheck{Path: p, Hosts: users[p]}
	}
	return checks
}
