package parallel

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/logger"
	"github.com/rileyhilliard/fleetrun/internal/runner"
)

// Job is the unit of work run against each host. It writes whatever output
// it has to out and returns the remote exit code. A returned error means the
// job couldn't run to completion on that host.
type Job func(ctx context.Context, r *runner.Runner, out io.Writer) (int, error)

// Observer is told about every host's progress. Calls for different hosts
// arrive concurrently.
type Observer interface {
	HostsPending(hosts []string)
	HostStarted(index int, host string)
	HostOutput(index int, line []byte)
	HostCompleted(result HostResult)
}

// Orchestrator runs one Job across a runner collection.
type Orchestrator struct {
	runners  runner.Collection
	config   Config
	observer Observer
	log      logger.Logger
}

// NewOrchestrator creates an orchestrator. A nil observer discards progress.
func NewOrchestrator(runners runner.Collection, cfg Config, observer Observer) *Orchestrator {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Orchestrator{
		runners:  runners,
		config:   cfg,
		observer: observer,
		log:      logger.Default(),
	}
}

// WithLogger sets the diagnostic logger.
func (o *Orchestrator) WithLogger(l logger.Logger) *Orchestrator {
	o.log = l
	return o
}

// Run executes job on every runner, at most MaxParallel at a time, and
// waits for all of them. Hosts are handed out in collection order from a
// shared queue. The returned error is only for problems that stop the
// fan-out from starting; per-host failures live in the Result.
func (o *Orchestrator) Run(ctx context.Context, job Job) (*Result, error) {
	if len(o.runners) == 0 {
		return nil, errors.NewUsage("No hosts to run on",
			"Add hosts to .fleetrun.yaml or pass --host.")
	}
	if job == nil {
		return nil, errors.NewUsage("Nothing to run", "")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var cancelOnce sync.Once
	stop := func() { cancelOnce.Do(cancel) }

	startTime := time.Now()

	results := make([]HostResult, len(o.runners))
	names := make([]string, len(o.runners))
	for i, r := range o.runners {
		names[i] = r.String()
		results[i] = HostResult{Index: i, Host: names[i], Status: HostPending, ExitCode: -1}
	}
	o.observer.HostsPending(names)

	queue := make(chan int, len(o.runners))
	for i := range o.runners {
		queue <- i
	}
	close(queue)

	numWorkers := len(o.runners)
	if o.config.MaxParallel > 0 && o.config.MaxParallel < numWorkers {
		numWorkers = o.config.MaxParallel
	}
	o.log.Debug("fan-out over %d hosts, %d at a time", len(o.runners), numWorkers)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.worker(ctx, job, queue, results, stop)
		}()
	}
	wg.Wait()

	return buildResult(results, time.Since(startTime)), nil
}

// worker pulls host indexes off the queue until it's empty. Each index is
// handled by exactly one worker, so results needs no lock. stop cancels the
// rest of this run.
func (o *Orchestrator) worker(ctx context.Context, job Job, queue <-chan int, results []HostResult, stop func()) {
	for i := range queue {
		if ctx.Err() != nil {
			results[i].Status = HostSkipped
			o.observer.HostCompleted(results[i])
			continue
		}

		results[i] = o.runHost(ctx, i, job)
		o.observer.HostCompleted(results[i])

		if !results[i].Success() && o.config.FailFast {
			o.log.Debug("fail-fast: %s failed, cancelling the rest", results[i].Host)
			stop()
		}
	}
}

func (o *Orchestrator) runHost(ctx context.Context, i int, job Job) HostResult {
	r := o.runners[i]
	res := HostResult{
		Index:     i,
		Host:      r.String(),
		Status:    HostRunning,
		StartTime: time.Now(),
	}
	o.observer.HostStarted(i, res.Host)

	hostCtx := ctx
	if o.config.Timeout > 0 {
		var cancel context.CancelFunc
		hostCtx, cancel = context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()
	}

	w := newHostWriter(func(line []byte) { o.observer.HostOutput(i, line) })
	code, err := job(hostCtx, r, w)
	w.Flush()

	res.EndTime = time.Now()
	res.Output = w.Bytes()
	res.ExitCode = code

	if err != nil && hostCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		err = errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Timed out on %s after %s", res.Host, o.config.Timeout),
			"Raise parallel.timeout in .fleetrun.yaml or pass --timeout.")
	}
	res.Err = err

	if err == nil && code == 0 {
		res.Status = HostPassed
	} else {
		res.Status = HostFailed
	}
	return res
}

func buildResult(results []HostResult, duration time.Duration) *Result {
	result := &Result{Hosts: results, Duration: duration}
	for i := range results {
		switch results[i].Status {
		case HostPassed:
			result.Passed++
		case HostSkipped, HostPending:
			results[i].Status = HostSkipped
			result.Skipped++
		default:
			result.Failed++
		}
	}
	return result
}

type nopObserver struct{}

func (nopObserver) HostsPending([]string)    {}
func (nopObserver) HostStarted(int, string)  {}
func (nopObserver) HostOutput(int, []byte)   {}
func (nopObserver) HostCompleted(HostResult) {}
