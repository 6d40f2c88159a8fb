// Package sync moves files between this machine and a remote node with
// rsync, tunnelled through the same ssh flags the command runner uses.
package sync

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/exec"
	"github.com/rileyhilliard/fleetrun/internal/logger"
	"github.com/rileyhilliard/fleetrun/internal/util"
	"github.com/rileyhilliard/fleetrun/pkg/sshutil"
)

// Rules applied to every transfer. Callers can add excludes but never
// remove these.
const (
	// GitExclude is the per-repo exclude file, relative to the source root.
	GitExclude = ".git/info/exclude"

	// DisplayOption is partial + progress, archive, verbose, compress.
	DisplayOption = "-Pavz"

	// FilterOption merges every .gitignore found while walking the tree.
	FilterOption = "--filter=dir-merge,- .gitignore"

	// ExcludeOption takes the path to an exclude file.
	ExcludeOption = "--exclude-from=%s"
)

// Remote is the ssh side of a transfer.
type Remote struct {
	// Name is used in error messages. Defaults to Address.
	Name    string
	User    string
	Address string

	// SSHOptions are the flags from sshutil.Options for this node.
	SSHOptions []string

	// SSHBinary defaults to "ssh".
	SSHBinary string
}

func (r Remote) displayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Address
}

// path renders user@host:path. IPv6 literals get brackets.
func (r Remote) path(p string) string {
	host := r.Address
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	if r.User != "" {
		host = r.User + "@" + host
	}
	return host + ":" + p
}

// Request describes one transfer.
type Request struct {
	Source string
	Target string

	// Up copies local Source to remote Target; otherwise remote Source is
	// copied to local Target.
	Up bool

	// Excludes are extra --exclude patterns appended after the fixed rules.
	Excludes []string

	// LogPath receives rsync's output when StreamLogs is set.
	LogPath    string
	StreamLogs bool

	// Progress, when set, receives rsync's output line by line as it runs.
	Progress io.Writer

	// OnProgress is called for each per-file progress line.
	OnProgress func(Progress)
}

// Syncer runs a transfer to completion.
type Syncer interface {
	Sync(ctx context.Context, remote Remote, req Request) error
}

// BuildArgs returns rsync's argv (without the rsync binary itself).
// Exported for testing command construction without running rsync.
func BuildArgs(remote Remote, req Request) ([]string, error) {
	if remote.Address == "" {
		return nil, errors.NewUsage("No remote address for sync",
			"Every node needs an address.")
	}
	if req.Source == "" || req.Target == "" {
		return nil, errors.NewUsage("Sync needs both a source and a target",
			"Usage: fleetrun push <local> <remote> or fleetrun pull <remote> <local>")
	}

	args := []string{DisplayOption, FilterOption}

	source := req.Source
	if req.Up {
		source = util.ExpandHome(source)
		// A trailing slash on source means "contents of", keep it as given.
		resolved := filepath.Clean(source)
		excludeFile := filepath.Join(resolved, GitExclude)
		if info, err := os.Stat(excludeFile); err == nil && !info.IsDir() {
			args = append(args, fmt.Sprintf(ExcludeOption, excludeFile))
		}
	}

	for _, pattern := range req.Excludes {
		if pattern == "" {
			continue
		}
		args = append(args, "--exclude="+pattern)
	}

	binary := remote.SSHBinary
	if binary == "" {
		binary = "ssh"
	}
	args = append(args, "-e", sshutil.RemoteShell(binary, remote.SSHOptions))

	if req.Up {
		args = append(args, source, remote.path(req.Target))
	} else {
		args = append(args, remote.path(req.Source), util.ExpandHome(req.Target))
	}
	return args, nil
}

// Engine runs rsync through an exec.Executor.
type Engine struct {
	executor exec.Executor
	log      logger.Logger
	rsync    string
}

// NewEngine creates an Engine. A nil executor uses exec.Local.
func NewEngine(executor exec.Executor, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Default()
	}
	if executor == nil {
		executor = exec.NewLocal(log)
	}
	return &Engine{executor: executor, log: log, rsync: "rsync"}
}

// WithBinary overrides the rsync binary.
func (e *Engine) WithBinary(path string) *Engine {
	if path != "" {
		e.rsync = path
	}
	return e
}

// Sync runs one transfer. A nonzero rsync exit comes back as an ErrSync
// error; nothing is retried.
func (e *Engine) Sync(ctx context.Context, remote Remote, req Request) error {
	args, err := BuildArgs(remote, req)
	if err != nil {
		return err
	}

	spec := exec.Spec{
		Args:    append([]string{e.rsync}, args...),
		Capture: true,
		LogPath: req.LogPath,
		TeeLog:  req.StreamLogs,
	}

	var done chan struct{}
	var pw *io.PipeWriter
	if req.Progress != nil || req.OnProgress != nil {
		var pr *io.PipeReader
		pr, pw = io.Pipe()
		done = make(chan struct{})
		go func() {
			defer close(done)
			streamOutput(pr, req.Progress, req.OnProgress)
		}()
		spec.Stream = true
		spec.StreamOut = pw
	}

	direction := "down"
	if req.Up {
		direction = "up"
	}
	e.log.Debug("rsync %s %s -> %s (%s)", direction, req.Source, req.Target, remote.displayName())

	out, err := e.executor.Execute(ctx, spec)
	if pw != nil {
		_ = pw.Close()
		<-done
	}
	if out.LogErr != nil {
		e.log.Warn("rsync log %s: %v", req.LogPath, out.LogErr)
	}

	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSync,
			fmt.Sprintf("Couldn't run rsync for %s", remote.displayName()),
			"Make sure rsync is installed locally: fleetrun doctor")
	}
	if out.ExitCode != 0 {
		return handleRsyncError(out.ExitCode, remote.displayName(), out.Stdout)
	}
	return nil
}

// streamOutput reads rsync output and writes each non-empty line to w.
// Both \n and \r end a line since rsync redraws progress with \r.
func streamOutput(r io.Reader, w io.Writer, onProgress func(Progress)) {
	scanner := bufio.NewScanner(r)
	scanner.Split(scanLinesWithCR)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if w != nil {
			fmt.Fprintln(w, line)
		}
		if onProgress != nil {
			if p := ParseProgress(line); p != nil {
				onProgress(*p)
			}
		}
	}
	// Drain so the writer side never blocks if the scanner gave up on an
	// overlong line.
	_, _ = io.Copy(io.Discard, r)
}

// scanLinesWithCR is bufio.ScanLines that also splits on \r.
func scanLinesWithCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			// \r\n yields an empty token, dropped by the caller.
			return i + 1, data[0:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// handleRsyncError maps rsync exit codes to readable errors.
// See: https://download.samba.org/pub/rsync/rsync.1
func handleRsyncError(exitCode int, hostName string, output string) error {
	var msg, suggestion string

	switch exitCode {
	case 1:
		msg = "rsync syntax or usage error"
		suggestion = "Check the sync excludes in .fleetrun.yaml for invalid patterns"
	case 2:
		msg = "rsync protocol incompatibility"
		suggestion = "Ensure rsync versions are compatible on local and remote"
	case 3:
		msg = "File selection error"
		suggestion = "Check that source paths exist and are readable"
	case 5:
		msg = "Error starting client-server protocol"
		suggestion = "Check that rsync is installed on " + hostName
	case 10:
		msg = "Error in socket I/O"
		suggestion = "Check network connectivity to " + hostName
	case 11:
		msg = "Error in file I/O"
		suggestion = "Check disk space and file permissions on both sides"
	case 12:
		msg = "Error in rsync protocol data stream"
		suggestion = "Often means rsync is missing on the remote, or the remote shell prints to stdout on login"
	case 23:
		msg = "Partial transfer due to error"
		suggestion = "Some files may have permission issues, check the output above"
	case 24:
		msg = "Partial transfer due to vanished source files"
		suggestion = "Files were modified during sync, this is usually harmless"
	case 255:
		msg = fmt.Sprintf("SSH connection to '%s' failed", hostName)
		suggestion = "Check that the host is reachable: fleetrun doctor"
	default:
		msg = fmt.Sprintf("rsync exited with code %d", exitCode)
		suggestion = "Check the output above for specific error details"
	}

	var cause error
	if tail := lastLines(output, 5); tail != "" {
		cause = fmt.Errorf("%s", tail)
	}
	return errors.WrapWithCode(cause, errors.ErrSync, msg, suggestion)
}

// lastLines returns up to n trailing non-empty lines of s.
func lastLines(s string, n int) string {
	lines := strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' })
	var kept []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, "\n  ")
}
