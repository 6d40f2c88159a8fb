package parallel

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rileyhilliard/fleetrun/internal/exec"
	exectest "github.com/rileyhilliard/fleetrun/internal/exec/testing"
	"github.com/rileyhilliard/fleetrun/internal/logger"
	"github.com/rileyhilliard/fleetrun/internal/runner"
	"github.com/rileyhilliard/fleetrun/pkg/sshutil"
	"github.com/stretchr/testify/require"
)

// newFleet builds n runners for 10.0.0.1..n that all share one executor.
func newFleet(t *testing.T, n int, opts ...runner.Option) runner.Collection {
	t.Helper()
	addrs := make([]string, n)
	for i := range addrs {
		addrs[i] = fmt.Sprintf("10.0.0.%d", i+1)
	}
	base := []runner.Option{
		runner.WithLogger(logger.Noop()),
		runner.WithControlRegistry(sshutil.NewControlRegistry(t.TempDir())),
	}
	fleet, err := runner.MakeRunnerList(runner.FleetConfig{
		Addresses: addrs,
		User:      "ubuntu",
	}, append(base, opts...)...)
	require.NoError(t, err)
	return fleet
}

// targetOf pulls user@host out of an ssh argv: it sits just before the
// remote command.
func targetOf(spec exec.Spec) string {
	return spec.Args[len(spec.Args)-2]
}

func hostHandler(fn func(target string) exectest.Response) func(exec.Spec) exectest.Response {
	return func(spec exec.Spec) exectest.Response {
		return fn(targetOf(spec))
	}
}

// recordingObserver keeps every callback for assertions.
type recordingObserver struct {
	mu        sync.Mutex
	pending   []string
	started   []int
	lines     map[int][]string
	completed []HostResult
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{lines: make(map[int][]string)}
}

func (o *recordingObserver) HostsPending(hosts []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append([]string(nil), hosts...)
}

func (o *recordingObserver) HostStarted(index int, _ string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, index)
}

func (o *recordingObserver) HostOutput(index int, line []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lines[index] = append(o.lines[index], string(line))
}

func (o *recordingObserver) HostCompleted(r HostResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed = append(o.completed, r)
}

func (o *recordingObserver) linesFor(index int) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return strings.Join(o.lines[index], "|")
}
