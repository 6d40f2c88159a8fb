// Package doctor diagnoses why a fleet can't be reached: missing local
// tools, unusable keys, broken control-socket directories, unreachable
// hosts and hosts without rsync.
package doctor

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/ui"
	"github.com/rileyhilliard/fleetrun/internal/util"
)

// Categories, in the order doctor prints them.
const (
	CategoryConfig = "CONFIG"
	CategoryLocal  = "LOCAL"
	CategorySSH    = "SSH"
	CategoryHosts  = "HOSTS"
)

// CheckStatus represents the result status of a check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

// String returns a human-readable status string.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// CheckResult contains the outcome of running a check.
type CheckResult struct {
	Name       string      `json:"name"`
	Category   string      `json:"category"`
	Status     CheckStatus `json:"status"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Fixable    bool        `json:"fixable,omitempty"` // whether --fix can address this
}

// Check is one diagnostic.
type Check interface {
	Name() string
	Category() string

	// Run executes the check. Checks that touch the network honor ctx.
	Run(ctx context.Context) CheckResult

	// Fix attempts to repair what Run found. Checks that can't fix
	// anything return nil.
	Fix() error
}

// RunAll executes checks one at a time, in order.
func RunAll(ctx context.Context, checks []Check) []CheckResult {
	results := make([]CheckResult, len(checks))
	for i, check := range checks {
		results[i] = run(ctx, check)
	}
	return results
}

// RunAllParallel executes every check concurrently. Results stay
// index-aligned with checks.
func RunAllParallel(ctx context.Context, checks []Check) []CheckResult {
	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup

	for i, check := range checks {
		wg.Add(1)
		go func(idx int, c Check) {
			defer wg.Done()
			results[idx] = run(ctx, c)
		}(i, check)
	}

	wg.Wait()
	return results
}

// FixAll runs Fix for every fixable issue and returns the names of the
// checks it repaired.
func FixAll(checks []Check, results []CheckResult) ([]string, error) {
	var fixed []string
	for i, r := range results {
		if i >= len(checks) || !r.Fixable || r.Status == StatusPass {
			continue
		}
		if err := checks[i].Fix(); err != nil {
			return fixed, fmt.Errorf("fixing %s: %w", r.Name, err)
		}
		fixed = append(fixed, r.Name)
	}
	return fixed, nil
}

// run fills in name and category so individual checks don't have to.
func run(ctx context.Context, c Check) CheckResult {
	r := c.Run(ctx)
	if r.Name == "" {
		r.Name = c.Name()
	}
	if r.Category == "" {
		r.Category = c.Category()
	}
	return r
}

// CountByStatus tallies results per status.
func CountByStatus(results []CheckResult) map[CheckStatus]int {
	counts := make(map[CheckStatus]int, 3)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}

// HasFailures reports whether any check failed.
func HasFailures(results []CheckResult) bool {
	return CountByStatus(results)[StatusFail] > 0
}

// HasIssues reports whether any check warned or failed.
func HasIssues(results []CheckResult) bool {
	c := CountByStatus(results)
	return c[StatusFail]+c[StatusWarn] > 0
}

// FixableCount is how many issues --fix would attempt.
func FixableCount(results []CheckResult) int {
	n := 0
	for _, r := range results {
		if r.Fixable && r.Status != StatusPass {
			n++
		}
	}
	return n
}

// Summary is the one-line verdict printed under the check list.
func Summary(results []CheckResult) string {
	c := CountByStatus(results)
	n := c[StatusWarn] + c[StatusFail]
	if n == 0 {
		return "Everything looks good"
	}
	return fmt.Sprintf("%d %s found", n, util.Pluralize(n, "issue", "issues"))
}

// Rows converts results for ui.RenderChecks.
func Rows(results []CheckResult) []ui.CheckRow {
	rows := make([]ui.CheckRow, len(results))
	for i, r := range results {
		rows[i] = ui.CheckRow{
			Status:     r.Status.String(),
			Category:   r.Category,
			Message:    r.Message,
			Suggestion: r.Suggestion,
		}
	}
	return rows
}

// failure turns err into a failed result, lifting the message and
// suggestion out of structured errors.
func failure(prefix string, err error) CheckResult {
	var fe *errors.Error
	if stderrors.As(err, &fe) {
		msg := fe.Message
		if prefix != "" {
			msg = prefix + ": " + msg
		}
		return CheckResult{Status: StatusFail, Message: msg, Suggestion: fe.Suggestion}
	}
	msg := err.Error()
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	return CheckResult{Status: StatusFail, Message: msg}
}
