package exec

import (
	"os"
	"path/filepath"
	"sync"
)

// logTee copies output into a log file without ever failing the write.
// io.MultiWriter stops at the first failing writer, which would cut off
// capture and streaming too, so failures are recorded instead.
type logTee struct {
	mu   sync.Mutex
	f    *os.File
	err  error
	done bool
}

func openLogTee(path string) (*logTee, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &logTee{f: f}, nil
}

func (t *logTee) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err == nil && !t.done {
		if _, err := t.f.Write(p); err != nil {
			t.err = err
		}
	}
	return len(p), nil
}

// Err returns the first write error, if any.
func (t *logTee) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *logTee) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	return t.f.Close()
}
