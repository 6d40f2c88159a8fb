// Package testing provides test doubles for the exec package.
package testing

import (
	"context"
	"io"
	"sync"

	"github.com/rileyhilliard/fleetrun/internal/exec"
)

// Response is what the fake returns for one Execute call.
type Response struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

// FakeExecutor records every Spec it's handed and replies from a script.
// It never spawns anything.
type FakeExecutor struct {
	mu sync.Mutex

	// Handler, when set, decides the response from the spec. It wins over
	// the queued responses.
	Handler func(spec exec.Spec) Response

	responses []Response
	Calls     []exec.Spec
}

// NewFakeExecutor creates a fake that succeeds with no output by default.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{}
}

// Queue appends responses, consumed in order. Once drained the fake
// succeeds silently.
func (f *FakeExecutor) Queue(rs ...Response) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, rs...)
	return f
}

// Execute records spec and replays the next response. Output is written to
// the stream writers when the spec asks for streaming and returned when it
// asks for capture, merged into Stdout unless SeparateStderr is set.
func (f *FakeExecutor) Execute(ctx context.Context, spec exec.Spec) (exec.Outcome, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, spec)
	var resp Response
	switch {
	case f.Handler != nil:
		handler := f.Handler
		f.mu.Unlock()
		resp = handler(spec)
		f.mu.Lock()
	case len(f.responses) > 0:
		resp = f.responses[0]
		f.responses = f.responses[1:]
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return exec.Outcome{ExitCode: -1}, err
	}
	if resp.Err != nil {
		return exec.Outcome{ExitCode: -1}, resp.Err
	}

	if spec.Stream {
		if spec.StreamOut != nil {
			_, _ = io.WriteString(spec.StreamOut, resp.Stdout)
		}
		errOut := spec.StreamErr
		if !spec.SeparateStderr {
			errOut = spec.StreamOut
		}
		if errOut != nil {
			_, _ = io.WriteString(errOut, resp.Stderr)
		}
	}

	out := exec.Outcome{ExitCode: resp.ExitCode}
	if spec.Capture {
		if spec.SeparateStderr {
			out.Stdout, out.Stderr = resp.Stdout, resp.Stderr
		} else {
			out.Stdout = resp.Stdout + resp.Stderr
		}
	}
	return out, nil
}

// LastCall returns the most recent spec, or false if none.
func (f *FakeExecutor) LastCall() (exec.Spec, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Calls) == 0 {
		return exec.Spec{}, false
	}
	return f.Calls[len(f.Calls)-1], true
}

// CallCount returns how many times Execute ran.
func (f *FakeExecutor) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// Reset clears recorded calls and queued responses.
func (f *FakeExecutor) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
	f.responses = nil
}

var _ exec.Executor = (*FakeExecutor)(nil)
