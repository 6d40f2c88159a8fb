package parallel

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/fleetrun/internal/ui"
)

// OutputManager shows a fan-out as it happens. It implements Observer.
//
// Mode selection:
//   - progress: one live line per host (falls back to quiet without a TTY,
//     since the in-place redraw is meaningless in a pipe)
//   - stream: output lines as they arrive, prefixed with [host]
//   - verbose: each host's full output once it finishes
//   - quiet: nothing until the summary
type OutputManager struct {
	mode OutputMode
	w    io.Writer

	mu       sync.Mutex
	hosts    []string
	statuses []HostStatus
	width    int

	progress *ui.FleetProgress

	successStyle lipgloss.Style
	errorStyle   lipgloss.Style
	warnStyle    lipgloss.Style
	mutedStyle   lipgloss.Style
}

// NewOutputManager creates an output manager writing to w.
func NewOutputManager(mode OutputMode, w io.Writer, isTTY bool) *OutputManager {
	effective := mode
	if !isTTY && mode == OutputProgress {
		effective = OutputQuiet
	}

	m := &OutputManager{
		mode:         effective,
		w:            w,
		successStyle: ui.SuccessStyle(),
		errorStyle:   ui.ErrorStyle(),
		warnStyle:    ui.WarningStyle(),
		mutedStyle:   ui.MutedStyle(),
	}
	if effective == OutputProgress {
		m.progress = ui.NewFleetProgress(w, isTTY)
	}
	return m
}

// Mode returns the mode actually in use.
func (m *OutputManager) Mode() OutputMode {
	return m.mode
}

// HostsPending implements Observer.
func (m *OutputManager) HostsPending(hosts []string) {
	m.mu.Lock()
	m.hosts = append([]string(nil), hosts...)
	m.statuses = make([]HostStatus, len(hosts))
	m.width = 0
	for _, h := range hosts {
		if len(h) > m.width {
			m.width = len(h)
		}
	}
	progress := m.progress
	m.mu.Unlock()

	if progress != nil {
		progress.Init(hosts)
		progress.Start()
	}
}

// HostStarted implements Observer.
func (m *OutputManager) HostStarted(index int, host string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setStatus(index, HostRunning)

	switch m.mode {
	case OutputProgress:
		m.progress.Started(index)
	case OutputVerbose:
		fmt.Fprintf(m.w, "%s %s...\n", m.mutedStyle.Render(ui.SymbolProgress), host)
	case OutputStream, OutputQuiet:
	}
}

// HostOutput implements Observer.
func (m *OutputManager) HostOutput(index int, line []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.mode {
	case OutputProgress:
		m.progress.Line(index, string(line))
	case OutputStream:
		fmt.Fprintf(m.w, "%s %s\n", m.prefix(index), line)
	case OutputVerbose, OutputQuiet:
		// shown on completion or in the summary
	}
}

// HostCompleted implements Observer.
func (m *OutputManager) HostCompleted(result HostResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setStatus(result.Index, result.Status)

	switch m.mode {
	case OutputProgress:
		m.progress.Finished(result.Index, uiState(result.Status))
	case OutputStream:
		fmt.Fprintf(m.w, "%s %s\n", m.prefix(result.Index), m.statusText(result))
	case OutputVerbose:
		m.renderVerboseCompletion(result)
	case OutputQuiet:
	}
}

// Close stops the live display.
func (m *OutputManager) Close() {
	m.mu.Lock()
	progress := m.progress
	m.mu.Unlock()
	if progress != nil {
		progress.Stop()
	}
}

// Status returns host index's last known status.
func (m *OutputManager) Status(index int) HostStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.statuses) {
		return HostPending
	}
	return m.statuses[index]
}

func (m *OutputManager) setStatus(index int, s HostStatus) {
	if index >= 0 && index < len(m.statuses) {
		m.statuses[index] = s
	}
}

func (m *OutputManager) renderVerboseCompletion(result HostResult) {
	fmt.Fprintf(m.w, "\n%s\n", m.statusLine(result))
	if len(result.Output) > 0 {
		fmt.Fprintln(m.w, m.mutedStyle.Render(strings.Repeat("-", 40)))
		out := string(result.Output)
		fmt.Fprint(m.w, out)
		if !strings.HasSuffix(out, "\n") {
			fmt.Fprintln(m.w)
		}
	}
}

func (m *OutputManager) statusLine(result HostResult) string {
	return fmt.Sprintf("%s %s", result.Host, m.statusText(result))
}

func (m *OutputManager) statusText(result HostResult) string {
	switch result.Status {
	case HostPassed:
		return m.successStyle.Render(ui.SymbolSuccess) + " " + m.mutedStyle.Render(ui.FormatDuration(result.Duration()))
	case HostSkipped:
		return m.warnStyle.Render(ui.SymbolSkipped + " skipped")
	}
	detail := fmt.Sprintf("exit %d", result.ExitCode)
	if result.Err != nil {
		detail = firstLine(result.Err.Error())
	}
	return m.errorStyle.Render(ui.SymbolFail) + " " + m.mutedStyle.Render(detail)
}

func (m *OutputManager) prefix(index int) string {
	host := ""
	if index >= 0 && index < len(m.hosts) {
		host = m.hosts[index]
	}
	return m.mutedStyle.Render(fmt.Sprintf("[%-*s]", m.width, host))
}

func uiState(s HostStatus) ui.HostState {
	switch s {
	case HostRunning:
		return ui.HostStateRunning
	case HostPassed:
		return ui.HostStatePassed
	case HostFailed:
		return ui.HostStateFailed
	case HostSkipped:
		return ui.HostStateSkipped
	}
	return ui.HostStatePending
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
