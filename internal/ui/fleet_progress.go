package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// HostState is a host's position in a fleet-wide run.
type HostState int

const (
	HostStatePending HostState = iota
	HostStateRunning
	HostStatePassed
	HostStateFailed
	HostStateSkipped
)

type hostLine struct {
	Host      string
	State     HostState
	LastLine  string
	StartTime time.Time
	EndTime   time.Time
}

// FleetProgress redraws one status line per host in place while a fan-out
// runs. On a writer that isn't a terminal it renders nothing.
type FleetProgress struct {
	mu sync.Mutex

	hosts     []hostLine
	lineCount int
	frame     int

	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
	w        io.Writer
	isTTY    bool
}

// NewFleetProgress creates a progress display writing to w.
func NewFleetProgress(w io.Writer, isTTY bool) *FleetProgress {
	return &FleetProgress{w: w, isTTY: isTTY}
}

// Init lists every host as pending.
func (p *FleetProgress) Init(hosts []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hosts = make([]hostLine, len(hosts))
	for i, h := range hosts {
		p.hosts[i] = hostLine{Host: h}
	}
	p.renderLocked()
}

// Start begins the animation loop.
func (p *FleetProgress) Start() {
	p.mu.Lock()
	if p.running || !p.isTTY {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopChan = make(chan struct{})
	p.doneChan = make(chan struct{})
	p.mu.Unlock()

	go p.animate()
}

// Stop halts the animation and draws the final state.
func (p *FleetProgress) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	<-p.doneChan
}

// Started marks host index as running.
func (p *FleetProgress) Started(index int) {
	p.update(index, func(h *hostLine) {
		h.State = HostStateRunning
		h.StartTime = time.Now()
	})
}

// Line records the latest output line for host index.
func (p *FleetProgress) Line(index int, line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index >= 0 && index < len(p.hosts) {
		p.hosts[index].LastLine = line
	}
}

// Finished marks host index with its final state.
func (p *FleetProgress) Finished(index int, state HostState) {
	p.update(index, func(h *hostLine) {
		h.State = state
		h.EndTime = time.Now()
	})
}

// Counts returns how many hosts are in each state.
func (p *FleetProgress) Counts() map[HostState]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	counts := make(map[HostState]int)
	for _, h := range p.hosts {
		counts[h.State]++
	}
	return counts
}

func (p *FleetProgress) update(index int, fn func(*hostLine)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.hosts) {
		return
	}
	fn(&p.hosts[index])
	p.renderLocked()
}

func (p *FleetProgress) animate() {
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()
	defer close(p.doneChan)

	for {
		select {
		case <-p.stopChan:
			p.mu.Lock()
			p.renderLocked()
			p.mu.Unlock()
			return
		case <-ticker.C:
			p.mu.Lock()
			p.frame = (p.frame + 1) % len(spinnerFrames)
			p.renderLocked()
			p.mu.Unlock()
		}
	}
}

// renderLocked redraws all host lines in place. Must be called with lock held.
func (p *FleetProgress) renderLocked() {
	if !p.isTTY || len(p.hosts) == 0 {
		return
	}

	var sb strings.Builder
	if p.lineCount > 0 {
		fmt.Fprintf(&sb, "\x1b[%dA", p.lineCount)
	}
	for _, h := range p.hosts {
		sb.WriteString("\x1b[K")
		sb.WriteString(p.renderHostLine(h))
		sb.WriteString("\n")
	}
	fmt.Fprint(p.w, sb.String())
	p.lineCount = len(p.hosts)
}

func (p *FleetProgress) renderHostLine(h hostLine) string {
	var symbol string
	var style lipgloss.Style
	muted := MutedStyle()

	switch h.State {
	case HostStatePending:
		symbol, style = SymbolPending, muted
	case HostStateRunning:
		symbol = spinnerFrames[p.frame]
		style = lipgloss.NewStyle().Foreground(GradientColors[(p.frame/2)%len(GradientColors)])
	case HostStatePassed:
		symbol, style = SymbolSuccess, SuccessStyle()
	case HostStateFailed:
		symbol, style = SymbolFail, ErrorStyle()
	case HostStateSkipped:
		symbol, style = SymbolSkipped, WarningStyle()
	}

	line := fmt.Sprintf("%s %s", style.Render(symbol), h.Host)
	switch {
	case h.State == HostStateRunning && h.LastLine != "":
		line += " " + muted.Render(truncate(h.LastLine, 60))
	case !h.EndTime.IsZero() && !h.StartTime.IsZero():
		line += " " + muted.Render(FormatDuration(h.EndTime.Sub(h.StartTime)))
	}
	return line
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
