package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/fleetrun/internal/exec"
	exectest "github.com/rileyhilliard/fleetrun/internal/exec/testing"
	"github.com/rileyhilliard/fleetrun/internal/logger"
	"github.com/rileyhilliard/fleetrun/internal/runner"
	"github.com/rileyhilliard/fleetrun/pkg/sshutil"
)

// cliEnv is an isolated home, working directory and fake executor for one
// test.
type cliEnv struct {
	dir   string
	home  string
	root  string
	fake  *exectest.FakeExecutor
	local *exectest.FakeExecutor
}

// setupCLI points every process-wide seam at temp dirs and fakes.
func setupCLI(t *testing.T) *cliEnv {
	t.Helper()

	env := &cliEnv{
		dir:   t.TempDir(),
		home:  t.TempDir(),
		fake:  exectest.NewFakeExecutor(),
		local: exectest.NewFakeExecutor(),
	}
	// unix socket paths have a short length limit
	root, err := os.MkdirTemp("/tmp", "fr")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(root) })
	env.root = root

	t.Setenv("HOME", env.home)
	t.Setenv("NO_COLOR", "1")
	t.Setenv(logger.DebugEnv, "")
	t.Chdir(env.dir)

	origFleet, origSSH, origRoot, origLocal := fleetOptions, sshConfigPath, controlRoot, localExecutor
	t.Cleanup(func() {
		fleetOptions, sshConfigPath, controlRoot, localExecutor = origFleet, origSSH, origRoot, origLocal
	})

	fleetOptions = func() []runner.Option {
		return []runner.Option{
			runner.WithExecutor(env.fake),
			runner.WithLogger(logger.Noop()),
			runner.WithControlRegistry(sshutil.NewControlRegistry(root)),
		}
	}
	sshConfigPath = func() string { return filepath.Join(env.home, ".ssh", "config") }
	controlRoot = func() string { return root }
	localExecutor = func() exec.Executor { return env.local }

	return env
}

// writeConfig writes a .fleetrun.yaml into the working directory.
func (e *cliEnv) writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, ".fleetrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimLeft(content, "\n")), 0o644))
	return path
}

const twoHostConfig = `
version: 1
user: ubuntu
hosts:
  - name: gpu-1
    address: 10.0.0.1
    tags: [gpu]
  - name: gpu-2
    address: 10.0.0.2
    tags: [gpu]
`

const oneHostConfig = `
version: 1
user: ubuntu
hosts:
  - name: gpu-1
    address: 10.0.0.1
`

type cliResult struct {
	stdout string
	stderr string
	err    error
}

// runCLI runs the root command with args and captures both streams.
func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// targetOf is user@host in an ssh argv.
func targetOf(spec exec.Spec) string {
	return spec.Args[len(spec.Args)-2]
}

// remoteOf is the remote command in an ssh argv.
func remoteOf(spec exec.Spec) string {
	return spec.Args[len(spec.Args)-1]
}
