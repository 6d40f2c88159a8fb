// Package parallel fans a single job out across every runner in a fleet
// and collects one result per host.
package parallel

import (
	"fmt"
	"time"
)

// OutputMode controls how per-host output is displayed while a fan-out runs.
type OutputMode string

const (
	// OutputProgress shows one live status line per host.
	OutputProgress OutputMode = "progress"
	// OutputStream interleaves output lines with a [host] prefix.
	OutputStream OutputMode = "stream"
	// OutputVerbose prints each host's full output when it finishes.
	OutputVerbose OutputMode = "verbose"
	// OutputQuiet prints nothing until the summary.
	OutputQuiet OutputMode = "quiet"
)

// ParseOutputMode accepts the OutputMode names. Empty means OutputProgress.
func ParseOutputMode(s string) (OutputMode, error) {
	switch OutputMode(s) {
	case "":
		return OutputProgress, nil
	case OutputProgress, OutputStream, OutputVerbose, OutputQuiet:
		return OutputMode(s), nil
	}
	return "", fmt.Errorf("unknown output mode %q (use progress, stream, verbose or quiet)", s)
}

// Config holds fan-out settings.
type Config struct {
	MaxParallel int           // Max hosts in flight (0 = all)
	FailFast    bool          // Cancel the rest on first failure
	Timeout     time.Duration // Per-host timeout (0 = none)
	OutputMode  OutputMode
}

// DefaultConfig runs every host at once with no timeout.
func DefaultConfig() Config {
	return Config{OutputMode: OutputProgress}
}

// HostStatus tracks one host through a fan-out.
type HostStatus int

const (
	HostPending HostStatus = iota
	HostRunning
	HostPassed
	HostFailed
	HostSkipped // never started because of fail-fast or cancellation
)

func (s HostStatus) String() string {
	switch s {
	case HostPending:
		return "pending"
	case HostRunning:
		return "running"
	case HostPassed:
		return "passed"
	case HostFailed:
		return "failed"
	case HostSkipped:
		return "skipped"
	}
	return fmt.Sprintf("HostStatus(%d)", int(s))
}

// HostResult is the outcome of the job on one host. Index is the host's
// position in the runner collection.
type HostResult struct {
	Index     int
	Host      string
	Status    HostStatus
	ExitCode  int
	Err       error
	Output    []byte // merged stdout and stderr, capped at maxOutputBufferSize
	StartTime time.Time
	EndTime   time.Time
}

// Duration is how long the job ran on this host.
func (r *HostResult) Duration() time.Duration {
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// Success reports a clean zero exit.
func (r *HostResult) Success() bool {
	return r.Status == HostPassed
}

// Result aggregates a fan-out. Hosts is index-aligned with the runner
// collection it was run over.
type Result struct {
	Hosts    []HostResult
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
}

// Success returns true if every host passed.
func (r *Result) Success() bool {
	return r.Failed == 0 && r.Skipped == 0
}

// ExitCode picks a process exit code for the whole fan-out: 0 if every
// host passed, the first nonzero remote exit code otherwise, or 1 when the
// failures were all local errors or skips.
func (r *Result) ExitCode() int {
	if r.Success() {
		return 0
	}
	for i := range r.Hosts {
		if r.Hosts[i].Status == HostFailed && r.Hosts[i].ExitCode > 0 {
			return r.Hosts[i].ExitCode
		}
	}
	return 1
}

// FailedHosts lists the hosts that failed, in collection order.
func (r *Result) FailedHosts() []string {
	var hosts []string
	for i := range r.Hosts {
		if r.Hosts[i].Status == HostFailed {
			hosts = append(hosts, r.Hosts[i].Host)
		}
	}
	return hosts
}
