package parallel

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/fleetrun/internal/ui"
)

// SummaryConfig holds configuration for rendering the summary.
type SummaryConfig struct {
	// Title heads the summary, e.g. "nvidia-smi" or "push ./src".
	Title string
	// LogDir is where per-host logs were written, if anywhere.
	LogDir string
	// MaxOutputLines limits the output tail shown per failed host.
	MaxOutputLines int
	// ShowOutput prints every host's output, passed or not. Used for
	// quiet mode where nothing was shown live.
	ShowOutput bool
}

// DefaultSummaryConfig returns default summary configuration.
func DefaultSummaryConfig() SummaryConfig {
	return SummaryConfig{MaxOutputLines: 10}
}

// RenderSummaryTo prints per-host results in collection order followed by
// the totals.
func RenderSummaryTo(w io.Writer, result *Result, cfg SummaryConfig) {
	if result == nil {
		return
	}

	successStyle := ui.SuccessStyle()
	errorStyle := ui.ErrorStyle()
	warnStyle := ui.WarningStyle()
	mutedStyle := ui.MutedStyle()
	divider := mutedStyle.Render(strings.Repeat("─", 60))

	fmt.Fprintln(w)
	fmt.Fprintln(w, divider)
	fmt.Fprintln(w)

	title := "Fleet Summary"
	if cfg.Title != "" {
		title += ": " + cfg.Title
	}
	fmt.Fprintln(w, ui.HeaderStyle().Render(title))
	fmt.Fprintln(w)

	for i := range result.Hosts {
		hr := &result.Hosts[i]
		switch hr.Status {
		case HostPassed:
			fmt.Fprintf(w, "  %s %s %s\n",
				successStyle.Render(ui.SymbolSuccess),
				hr.Host,
				mutedStyle.Render(fmt.Sprintf("(%s)", ui.FormatDuration(hr.Duration()))))
			if cfg.ShowOutput {
				renderOutputTail(w, hr.Output, 0)
			}
		case HostSkipped:
			fmt.Fprintf(w, "  %s %s %s\n",
				warnStyle.Render(ui.SymbolSkipped),
				hr.Host,
				mutedStyle.Render("(skipped)"))
		default:
			fmt.Fprintf(w, "  %s %s %s\n",
				errorStyle.Render(ui.SymbolFail),
				hr.Host,
				mutedStyle.Render(fmt.Sprintf("(%s)", ui.FormatDuration(hr.Duration()))))
			fmt.Fprintf(w, "    %s\n", mutedStyle.Render(failureText(hr)))
			limit := cfg.MaxOutputLines
			if cfg.ShowOutput {
				limit = 0
			}
			renderOutputTail(w, hr.Output, limit)
		}
	}

	fmt.Fprintln(w)

	failedStyle := mutedStyle
	if result.Failed > 0 {
		failedStyle = errorStyle
	}
	fmt.Fprintf(w, "  %s %d passed  %s %d failed",
		successStyle.Render(ui.SymbolSuccess), result.Passed,
		failedStyle.Render(ui.SymbolFail), result.Failed)
	if result.Skipped > 0 {
		fmt.Fprintf(w, "  %s %d skipped", warnStyle.Render(ui.SymbolSkipped), result.Skipped)
	}
	fmt.Fprintf(w, "  %s %d total  %s\n",
		mutedStyle.Render(ui.SymbolComplete), len(result.Hosts),
		mutedStyle.Render(fmt.Sprintf("(%s)", ui.FormatDuration(result.Duration))))

	if cfg.LogDir != "" {
		logPath := cfg.LogDir
		if failed := result.FailedHosts(); len(failed) == 1 {
			logPath = filepath.Join(cfg.LogDir, SanitizeHostName(failed[0])+".log")
		}
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Logs:"), mutedStyle.Render(logPath))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, divider)
}

// FormatBriefSummary returns a one-line summary string.
func FormatBriefSummary(result *Result) string {
	if result == nil {
		return "No results"
	}
	total := len(result.Hosts)
	if result.Success() {
		return fmt.Sprintf("%d/%d hosts passed (%s)",
			result.Passed, total, ui.FormatDuration(result.Duration))
	}
	s := fmt.Sprintf("%d passed, %d failed", result.Passed, result.Failed)
	if result.Skipped > 0 {
		s += fmt.Sprintf(", %d skipped", result.Skipped)
	}
	return fmt.Sprintf("%s of %d hosts (%s)", s, total, ui.FormatDuration(result.Duration))
}

// SanitizeHostName turns a host label into a safe file name.
func SanitizeHostName(name string) string {
	result := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch c {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '@', '[', ']':
			result[i] = '-'
		default:
			result[i] = c
		}
	}
	return string(result)
}

func failureText(hr *HostResult) string {
	if hr.Err != nil {
		return firstLine(hr.Err.Error())
	}
	return fmt.Sprintf("exited %d", hr.ExitCode)
}

// renderOutputTail shows the last maxLines lines of output, or all of it
// when maxLines is 0.
func renderOutputTail(w io.Writer, output []byte, maxLines int) {
	text := strings.TrimRight(string(output), "\n")
	if text == "" {
		return
	}
	lines := strings.Split(text, "\n")

	mutedStyle := ui.MutedStyle()
	start := 0
	if maxLines > 0 && len(lines) > maxLines {
		start = len(lines) - maxLines
		fmt.Fprintf(w, "    %s\n", mutedStyle.Render(fmt.Sprintf("... (%d lines omitted)", start)))
	}
	for _, line := range lines[start:] {
		fmt.Fprintf(w, "    %s\n", mutedStyle.Render(line))
	}
}
