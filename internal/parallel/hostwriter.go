package parallel

import (
	"bytes"
	"sync"
)

// maxOutputBufferSize limits memory usage for buffered host output (1MB per host)
const maxOutputBufferSize = 1 << 20

// maxLineSize bounds a line that never sees a newline (binary output, \r
// progress bars). Longer runs are handed on in pieces of this size.
const maxLineSize = 64 << 10

const truncatedMarker = "\n... output truncated (exceeded 1MB) ...\n"

// hostWriter keeps a capped copy of everything written and hands complete
// lines to onLine as they arrive.
type hostWriter struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	truncated bool
	partial   []byte
	onLine    func([]byte)
}

func newHostWriter(onLine func([]byte)) *hostWriter {
	return &hostWriter{onLine: onLine}
}

func (w *hostWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	room := maxOutputBufferSize - w.buf.Len()
	if len(p) <= room {
		w.buf.Write(p)
	} else {
		if room > 0 {
			w.buf.Write(p[:room])
		}
		w.truncated = true
	}

	w.partial = append(w.partial, p...)
	for {
		idx := bytes.IndexByte(w.partial, '\n')
		if idx < 0 {
			break
		}
		w.emit(w.partial[:idx])
		w.partial = w.partial[idx+1:]
	}
	for len(w.partial) >= maxLineSize {
		w.emit(w.partial[:maxLineSize])
		w.partial = w.partial[maxLineSize:]
	}
	return len(p), nil
}

// Flush emits a trailing line that never got its newline.
func (w *hostWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.partial) > 0 {
		w.emit(w.partial)
		w.partial = nil
	}
}

// Bytes returns the buffered output, with a marker if it was cut off.
func (w *hostWriter) Bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := append([]byte(nil), w.buf.Bytes()...)
	if w.truncated {
		out = append(out, truncatedMarker...)
	}
	return out
}

func (w *hostWriter) emit(line []byte) {
	if w.onLine == nil {
		return
	}
	line = bytes.TrimSuffix(line, []byte("\r"))
	w.onLine(append([]byte(nil), line...))
}
