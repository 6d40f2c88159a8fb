// Package logs keeps per-host output from fleet runs on disk and prunes old
// runs according to the retention settings.
package logs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/parallel"
	"github.com/rileyhilliard/fleetrun/internal/util"
)

// LogWriter writes one fleet run's output. Each run gets its own directory
// holding <host>.log per host and a summary.json.
type LogWriter struct {
	dir    string // base log directory (~/.fleetrun/logs)
	runDir string // <base>/<run>-<timestamp>/
	closed bool
}

// SummaryJSON is the structure written to summary.json.
type SummaryJSON struct {
	Run       string           `json:"run"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
	Duration  string           `json:"duration"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	Total     int              `json:"total"`
	Hosts     []HostResultJSON `json:"hosts"`
}

// HostResultJSON is the per-host entry in summary.json.
type HostResultJSON struct {
	Index    int    `json:"index"`
	Host     string `json:"host"`
	Status   string `json:"status"`
	ExitCode int    `json:"exit_code"`
	Duration string `json:"duration"`
	LogFile  string `json:"log_file,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewLogWriter creates the run directory under baseDir right away.
func NewLogWriter(baseDir, runName string) (*LogWriter, error) {
	baseDir = util.ExpandHome(baseDir)
	timestamp := time.Now().Format("20060102-150405")
	runDir := filepath.Join(baseDir, fmt.Sprintf("%s-%s", parallel.SanitizeHostName(runName), timestamp))

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't create log directory "+runDir,
			"Check your permissions for "+baseDir+".")
	}

	return &LogWriter{dir: baseDir, runDir: runDir}, nil
}

// WriteHost writes one host's output to <host>.log.
func (w *LogWriter) WriteHost(host string, output []byte) error {
	if w.closed {
		return errors.New(errors.ErrExec, "Log writer is closed", "")
	}

	logPath := filepath.Join(w.runDir, parallel.SanitizeHostName(host)+".log")
	if err := os.WriteFile(logPath, output, 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			"Can't write host log "+logPath,
			"Check your permissions.")
	}
	return nil
}

// WriteResult writes every host's log plus summary.json.
func (w *LogWriter) WriteResult(result *parallel.Result, runName string) error {
	if result == nil {
		return nil
	}
	for i := range result.Hosts {
		hr := &result.Hosts[i]
		if hr.Status == parallel.HostSkipped {
			continue
		}
		if err := w.WriteHost(hr.Host, hr.Output); err != nil {
			return err
		}
	}
	return w.WriteSummary(result, runName)
}

// WriteSummary writes summary.json.
func (w *LogWriter) WriteSummary(result *parallel.Result, runName string) error {
	if w.closed {
		return errors.New(errors.ErrExec, "Log writer is closed", "")
	}
	if result == nil {
		return nil
	}

	end := time.Now()
	summary := SummaryJSON{
		Run:       runName,
		StartTime: end.Add(-result.Duration),
		EndTime:   end,
		Duration:  result.Duration.String(),
		Passed:    result.Passed,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
		Total:     len(result.Hosts),
		Hosts:     make([]HostResultJSON, len(result.Hosts)),
	}

	for i := range result.Hosts {
		hr := &result.Hosts[i]
		entry := HostResultJSON{
			Index:    hr.Index,
			Host:     hr.Host,
			Status:   hr.Status.String(),
			ExitCode: hr.ExitCode,
			Duration: hr.Duration().String(),
		}
		if hr.Status != parallel.HostSkipped {
			entry.LogFile = parallel.SanitizeHostName(hr.Host) + ".log"
		}
		if hr.Err != nil {
			entry.Error = hr.Err.Error()
		}
		summary.Hosts[i] = entry
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrExec, "Can't encode summary JSON", "")
	}

	summaryPath := filepath.Join(w.runDir, "summary.json")
	if err := os.WriteFile(summaryPath, data, 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			"Can't write summary file "+summaryPath,
			"Check your permissions.")
	}
	return nil
}

// Dir returns this run's directory.
func (w *LogWriter) Dir() string {
	return w.runDir
}

// BaseDir returns the base log directory.
func (w *LogWriter) BaseDir() string {
	return w.dir
}

// Close finalizes logging.
func (w *LogWriter) Close() error {
	w.closed = true
	return nil
}
