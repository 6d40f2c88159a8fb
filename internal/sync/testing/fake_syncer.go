// Package testing provides test doubles for the sync package.
package testing

import (
	"context"
	"sync"

	fsync "github.com/rileyhilliard/fleetrun/internal/sync"
)

// SyncCall records a call to the syncer.
type SyncCall struct {
	Remote  fsync.Remote
	Request fsync.Request
}

// FakeSyncer simulates rsync operations for testing.
// It records calls and returns configured results.
type FakeSyncer struct {
	mu sync.Mutex

	ShouldFail bool
	FailError  error

	// ProgressLines are written to Request.Progress on each call.
	ProgressLines []string

	Calls []SyncCall
}

// NewFakeSyncer creates a new fake syncer that succeeds by default.
func NewFakeSyncer() *FakeSyncer {
	return &FakeSyncer{}
}

// Sync records the call and replays the configured outcome.
func (f *FakeSyncer) Sync(ctx context.Context, remote fsync.Remote, req fsync.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, SyncCall{Remote: remote, Request: req})

	if err := ctx.Err(); err != nil {
		return err
	}

	for _, line := range f.ProgressLines {
		if req.Progress != nil {
			_, _ = req.Progress.Write([]byte(line + "\n"))
		}
		if req.OnProgress != nil {
			if p := fsync.ParseProgress(line); p != nil {
				req.OnProgress(*p)
			}
		}
	}

	if f.ShouldFail {
		return f.FailError
	}
	return nil
}

// SetFail configures the syncer to fail with the given error.
func (f *FakeSyncer) SetFail(err error) *FakeSyncer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ShouldFail = true
	f.FailError = err
	return f
}

// SetProgress configures progress lines to emit during sync.
func (f *FakeSyncer) SetProgress(lines ...string) *FakeSyncer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ProgressLines = lines
	return f
}

// CallCount returns how many times Sync ran.
func (f *FakeSyncer) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// LastCall returns the most recent sync call, or nil if none.
func (f *FakeSyncer) LastCall() *SyncCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Calls) == 0 {
		return nil
	}
	call := f.Calls[len(f.Calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (f *FakeSyncer) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
}

var _ fsync.Syncer = (*FakeSyncer)(nil)
