package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// PhaseDisplay prints one line per finished step of a command, such as
// "Connected" or "Synced", ahead of the command's own output.
type PhaseDisplay struct {
	w     io.Writer
	quiet bool
}

// NewPhaseDisplay creates a phase display writing to w.
func NewPhaseDisplay(w io.Writer) *PhaseDisplay {
	return &PhaseDisplay{w: w}
}

// SetQuiet suppresses everything but failures.
func (pd *PhaseDisplay) SetQuiet(quiet bool) {
	pd.quiet = quiet
}

// RenderSuccess shows: ● Synced to gpu-01 (0.3s)
func (pd *PhaseDisplay) RenderSuccess(name string, duration time.Duration) {
	if pd.quiet {
		return
	}
	fmt.Fprintln(pd.w, FormatPhase(SymbolComplete, ColorSuccess, name, FormatDuration(duration)))
}

// RenderFailed shows: ✗ Sync to gpu-01 failed (2.3s)
func (pd *PhaseDisplay) RenderFailed(name string, duration time.Duration) {
	fmt.Fprintln(pd.w, FormatPhase(SymbolFail, ColorError, name, FormatDuration(duration)))
}

// RenderSkipped shows: ⊘ Sync (nothing to send)
func (pd *PhaseDisplay) RenderSkipped(name, reason string) {
	if pd.quiet {
		return
	}
	if reason != "" {
		reason = "(" + reason + ")"
	}
	fmt.Fprintln(pd.w, FormatPhase(SymbolSkipped, ColorWarning, name, reason))
}

// RenderSubStatus renders an indented detail line under a phase.
func (pd *PhaseDisplay) RenderSubStatus(symbol, name, status string) {
	if pd.quiet {
		return
	}
	style := MutedStyle()
	fmt.Fprintf(pd.w, "  %s %s %s\n", style.Render(symbol), name, style.Render(status))
}

// CommandPrompt shows: $ nvidia-smi
func (pd *PhaseDisplay) CommandPrompt(cmd string) {
	if pd.quiet {
		return
	}
	fmt.Fprintf(pd.w, "%s %s\n", MutedStyle().Render("$"), cmd)
}

// FormatPhase returns a phase line without the trailing newline.
func FormatPhase(symbol string, symbolColor lipgloss.Color, name, timing string) string {
	symbolStyle := lipgloss.NewStyle().Foreground(symbolColor)
	if timing == "" {
		return fmt.Sprintf("%s %s", symbolStyle.Render(symbol), name)
	}
	return fmt.Sprintf("%s %s %s", symbolStyle.Render(symbol), name, MutedStyle().Render(timing))
}
