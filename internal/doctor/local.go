package doctor

import (
	"context"
	"fmt"
	"net"
	"os"
	osexec "os/exec"
	"strings"

	"github.com/rileyhilliard/fleetrun/internal/exec"
	fsync "github.com/rileyhilliard/fleetrun/internal/sync"
	"github.com/rileyhilliard/fleetrun/internal/util"
	"github.com/rileyhilliard/fleetrun/pkg/sshutil"
)

// SSHClientCheck verifies the OpenSSH client is installed.
type SSHClientCheck struct {
	Executor exec.Executor
	// LookPath defaults to os/exec.LookPath.
	LookPath func(string) (string, error)
}

func (c *SSHClientCheck) Name() string     { return "ssh_client" }
func (c *SSHClientCheck) Category() string { return CategoryLocal }

func (c *SSHClientCheck) Run(ctx context.Context) CheckResult {
	lookPath := c.LookPath
	if lookPath == nil {
		lookPath = osexec.LookPath
	}
	path, err := lookPath("ssh")
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    "ssh client not found in PATH",
			Suggestion: "Install OpenSSH: apt install openssh-client (Linux); macOS ships with it",
		}
	}

	// ssh -V prints its version on stderr.
	out, err := c.Executor.Execute(ctx, exec.Spec{
		Args:    []string{path, "-V"},
		Capture: true,
	})
	if err != nil || out.ExitCode != 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("ssh found at %s but 'ssh -V' failed", path),
		}
	}
	version := strings.TrimSpace(firstLine(out.Stdout))
	if version == "" {
		version = path
	}
	return CheckResult{Status: StatusPass, Message: "ssh: " + version}
}

func (c *SSHClientCheck) Fix() error { return nil }

// RsyncCheck verifies rsync is installed locally.
type RsyncCheck struct {
	Executor exec.Executor
	// Find defaults to sync.FindRsync.
	Find func() (string, error)
}

func (c *RsyncCheck) Name() string     { return "rsync_local" }
func (c *RsyncCheck) Category() string { return CategoryLocal }

func (c *RsyncCheck) Run(ctx context.Context) CheckResult {
	find := c.Find
	if find == nil {
		find = fsync.FindRsync
	}
	path, err := find()
	if err != nil {
		return failure("", err)
	}

	version, err := fsync.Version(ctx, c.Executor, path)
	if err != nil {
		r := failure("", err)
		r.Status = StatusWarn
		return r
	}
	return CheckResult{Status: StatusPass, Message: version}
}

func (c *RsyncCheck) Fix() error { return nil }

// SSHAgentCheck looks for a running agent. Only a warning: keys without a
// passphrase work without one.
type SSHAgentCheck struct {
	Executor exec.Executor
}

func (c *SSHAgentCheck) Name() string     { return "ssh_agent" }
func (c *SSHAgentCheck) Category() string { return CategorySSH }

func (c *SSHAgentCheck) Run(ctx context.Context) CheckResult {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "SSH agent not running",
			Suggestion: "Passphrase-protected keys need one: eval $(ssh-agent) && ssh-add",
		}
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "SSH agent socket not accessible",
			Suggestion: "Restart it: eval $(ssh-agent) && ssh-add",
		}
	}
	conn.Close() //nolint:errcheck

	out, err := c.Executor.Execute(ctx, exec.Spec{
		Args:           []string{"ssh-add", "-l"},
		Capture:        true,
		SeparateStderr: true,
	})
	if err != nil {
		return CheckResult{Status: StatusWarn, Message: "Cannot query SSH agent"}
	}
	// ssh-add -l exits 1 when the agent holds no keys.
	if out.ExitCode == 1 {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "SSH agent running but no keys loaded",
			Suggestion: "Add a key with: ssh-add",
		}
	}
	if out.ExitCode != 0 {
		return CheckResult{Status: StatusWarn, Message: "Cannot query SSH agent"}
	}

	keys := 0
	for _, line := range strings.Split(out.Stdout, "\n") {
		if strings.TrimSpace(line) != "" {
			keys++
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("SSH agent running with %d %s loaded", keys, util.Pluralize(keys, "key", "keys")),
	}
}

func (c *SSHAgentCheck) Fix() error { return nil }

// KeyCheck parses one identity file and checks its permissions.
type KeyCheck struct {
	Path string
	// Hosts lists who uses the key, for the message.
	Hosts []string
}

func (c *KeyCheck) Name() string     { return "key_" + c.Path }
func (c *KeyCheck) Category() string { return CategorySSH }

func (c *KeyCheck) Run(_ context.Context) CheckResult {
	info, err := sshutil.CheckPrivateKey(c.Path)
	if err != nil {
		return failure("", err)
	}

	tooOpen, err := sshutil.KeyPermissionsTooOpen(c.Path)
	if err != nil {
		return failure("Can't stat "+c.Path, err)
	}
	if tooOpen {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("%s is readable by other users; ssh will refuse it", c.Path),
			Suggestion: "Fix: chmod 600 " + c.Path,
			Fixable:    true,
		}
	}

	msg := fmt.Sprintf("%s (%s %s)", c.Path, info.Type, info.Fingerprint)
	if len(c.Hosts) > 0 {
		msg += fmt.Sprintf(" used by %d %s", len(c.Hosts), util.Pluralize(len(c.Hosts), "host", "hosts"))
	}
	return CheckResult{Status: StatusPass, Message: msg}
}

// Fix tightens the key to 0600.
func (c *KeyCheck) Fix() error {
	tooOpen, err := sshutil.KeyPermissionsTooOpen(c.Path)
	if err != nil {
		return err
	}
	if !tooOpen {
		return nil
	}
	if err := os.Chmod(c.Path, 0o600); err != nil {
		return fmt.Errorf("failed to fix permissions on %s: %w", c.Path, err)
	}
	return nil
}

// ControlDirCheck verifies the control-socket root is usable. It only
// matters when multiplexing is on.
type ControlDirCheck struct {
	Root string
}

func (c *ControlDirCheck) Name() string     { return "control_dir" }
func (c *ControlDirCheck) Category() string { return CategorySSH }

func (c *ControlDirCheck) Run(_ context.Context) CheckResult {
	info, err := os.Stat(c.Root)
	if os.IsNotExist(err) {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("Control socket dir %s will be created on first use", c.Root),
		}
	}
	if err != nil {
		return failure("Can't stat "+c.Root, err)
	}
	if !info.IsDir() {
		return CheckResult{
			Status:     StatusFail,
			Message:    fmt.Sprintf("%s exists but isn't a directory", c.Root),
			Suggestion: "Remove it: rm " + c.Root,
		}
	}
	if info.Mode().Perm()&0o077 != 0 {
		return CheckResult{
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Control socket dir %s is open to other users", c.Root),
			Suggestion: "Fix: chmod 700 " + c.Root,
			Fixable:    true,
		}
	}
	return CheckResult{Status: StatusPass, Message: "Control socket dir " + c.Root}
}

// Fix restricts the directory to its owner.
func (c *ControlDirCheck) Fix() error {
	info, err := os.Stat(c.Root)
	if err != nil || !info.IsDir() {
		return nil
	}
	return os.Chmod(c.Root, 0o700)
}

// NewLocalChecks creates the checks that don't depend on the config.
func NewLocalChecks(executor exec.Executor, controlRoot string) []Check {
	return []Check{
		&SSHClientCheck{Executor: executor},
		&RsyncCheck{Executor: executor},
		&SSHAgentCheck{Executor: executor},
		&ControlDirCheck{Root: controlRoot},
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
