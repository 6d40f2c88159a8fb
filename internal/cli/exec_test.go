package cli

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/exec"
	exectest "github.com/rileyhilliard/fleetrun/internal/exec/testing"
)

func TestExec_SingleHostStreamsOutput(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, oneHostConfig)
	env.fake.Queue(exectest.Response{Stdout: "hello\n"})

	res := runCLI(t, "exec", "--", "echo", "hello")
	require.NoError(t, res.err)

	assert.Equal(t, "hello\n", res.stdout)
	assert.Contains(t, res.stderr, "ubuntu@10.0.0.1 echo hello")

	call, ok := env.fake.LastCall()
	require.True(t, ok)
	assert.Equal(t, "ssh", call.Args[0])
	assert.Equal(t, "ubuntu@10.0.0.1", targetOf(call))
	assert.Equal(t, "echo hello", remoteOf(call))
	assert.Contains(t, call.Args, "-T")
	assert.True(t, call.Stream)
	assert.True(t, call.SeparateStderr)
}

func TestExec_QuietHidesPrompt(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, oneHostConfig)
	env.fake.Queue(exectest.Response{Stdout: "hello\n"})

	res := runCLI(t, "--quiet", "exec", "echo hello")
	require.NoError(t, res.err)
	assert.Equal(t, "hello\n", res.stdout)
	assert.Empty(t, res.stderr)
}

func TestExec_SingleHostPassesExitCode(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, oneHostConfig)
	env.fake.Queue(exectest.Response{ExitCode: 3, Stderr: "failed\n"})

	res := runCLI(t, "exec", "false")
	require.Error(t, res.err)

	code, ok := errors.GetExitCode(res.err)
	require.True(t, ok)
	assert.Equal(t, 3, code)
	assert.Contains(t, res.stderr, "failed")
}

func TestExec_CommandNotFoundHint(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, oneHostConfig)
	env.fake.Queue(exectest.Response{ExitCode: 127, Stderr: "bash: line 1: nvcc: command not found\n"})

	res := runCLI(t, "exec", "nvcc --version")
	require.Error(t, res.err)

	code, _ := errors.GetExitCode(res.err)
	assert.Equal(t, 127, code)
	assert.Contains(t, res.stderr, "nvcc")
}

func TestExec_TransportFailureIsSSHError(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, oneHostConfig)
	env.fake.Queue(exectest.Response{
		ExitCode: 255,
		Stderr:   "ssh: connect to host 10.0.0.1 port 22: Connection refused\n",
	})

	res := runCLI(t, "exec", "uptime")
	require.Error(t, res.err)
	assert.True(t, errors.IsCode(res.err, errors.ErrSSH))
	_, isExit := errors.GetExitCode(res.err)
	assert.False(t, isExit)
}

func TestExec_EnvAndWorkDir(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, oneHostConfig)

	res := runCLI(t, "exec", "-e", "CUDA_VISIBLE_DEVICES=0", "-C", "/data", "--", "python", "train.py")
	require.NoError(t, res.err)

	call, ok := env.fake.LastCall()
	require.True(t, ok)
	remote := remoteOf(call)
	assert.True(t, strings.HasPrefix(remote, "cd "), remote)
	assert.Contains(t, remote, "/data")
	assert.Contains(t, remote, "export CUDA_VISIBLE_DEVICES=")
	assert.True(t, strings.HasSuffix(remote, "python train.py"), remote)
}

func TestExec_InvalidEnvIsUsageError(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, oneHostConfig)

	res := runCLI(t, "exec", "--env", "NOPE", "uptime")
	require.Error(t, res.err)
	assert.True(t, errors.IsCode(res.err, errors.ErrUsage))
	assert.Zero(t, env.fake.CallCount())
}

func TestExec_ForwardAddsTunnel(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, oneHostConfig)

	res := runCLI(t, "exec", "-L", "8888", "jupyter lab")
	require.NoError(t, res.err)

	call, _ := env.fake.LastCall()
	assert.Contains(t, strings.Join(call.Args, " "), "-L 8888:localhost:8888")
}

func TestExec_TTYAllocatesTerminal(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, oneHostConfig)

	res := runCLI(t, "exec", "--tty", "htop")
	require.NoError(t, res.err)

	call, _ := env.fake.LastCall()
	assert.Contains(t, call.Args, "-tt")
	assert.NotContains(t, call.Args, "-T")
}

func TestExec_FleetRunsEveryHost(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, twoHostConfig)
	env.fake.Handler = func(spec exec.Spec) exectest.Response {
		return exectest.Response{Stdout: "up on " + targetOf(spec) + "\n"}
	}

	res := runCLI(t, "exec", "uptime")
	require.NoError(t, res.err)

	assert.Equal(t, 2, env.fake.CallCount())
	assert.Contains(t, res.stdout, "ubuntu@10.0.0.1")
	assert.Contains(t, res.stdout, "ubuntu@10.0.0.2")
	assert.Contains(t, res.stdout, "up on ubuntu@10.0.0.2")
	assert.Contains(t, res.stdout, "2 passed")
}

func TestExec_FleetFailureCarriesExitCode(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, twoHostConfig)
	env.fake.Handler = func(spec exec.Spec) exectest.Response {
		if targetOf(spec) == "ubuntu@10.0.0.2" {
			return exectest.Response{ExitCode: 4, Stdout: "disk full\n"}
		}
		return exectest.Response{}
	}

	res := runCLI(t, "exec", "make")
	require.Error(t, res.err)

	code, ok := errors.GetExitCode(res.err)
	require.True(t, ok)
	assert.Equal(t, 4, code)
	assert.Contains(t, res.stdout, "1 failed")
	assert.Contains(t, res.stdout, "disk full")
}

func TestExec_QuietFleetPrintsSummaryOnlyOnFailure(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, twoHostConfig)

	res := runCLI(t, "-q", "exec", "true")
	require.NoError(t, res.err)
	assert.NotContains(t, res.stdout, "Fleet Summary")
	assert.NotContains(t, res.stderr, "Fleet Summary")

	env.fake.Handler = func(exec.Spec) exectest.Response { return exectest.Response{ExitCode: 1} }
	res = runCLI(t, "-q", "exec", "false")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "Fleet Summary")
}

func TestExec_TagSelectsHosts(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, oneHostConfig+`  - name: cpu-1
    address: 10.0.1.1
    tags: [cpu]
`)

	res := runCLI(t, "exec", "--tag", "cpu", "nproc")
	require.NoError(t, res.err)

	require.Equal(t, 1, env.fake.CallCount())
	call, _ := env.fake.LastCall()
	assert.Equal(t, "ubuntu@10.0.1.1", targetOf(call))
}

func TestExec_UnknownHostSuggests(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, twoHostConfig)

	res := runCLI(t, "exec", "--host", "gpu-3", "uptime")
	require.Error(t, res.err)
	assert.True(t, errors.IsCode(res.err, errors.ErrConfig))
	assert.Zero(t, env.fake.CallCount())
}

func TestExec_ForwardNeedsOneHost(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, twoHostConfig)

	res := runCLI(t, "exec", "--forward", "8888", "jupyter lab")
	require.Error(t, res.err)
	assert.True(t, errors.IsCode(res.err, errors.ErrUsage))
	assert.Zero(t, env.fake.CallCount())
}

func TestExec_LogNeedsOneHost(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, twoHostConfig)

	res := runCLI(t, "exec", "--log", "out.log", "uptime")
	require.Error(t, res.err)
	assert.True(t, errors.IsCode(res.err, errors.ErrUsage))
}

func TestExec_AdHocHostWithoutConfig(t *testing.T) {
	env := setupCLI(t)

	res := runCLI(t, "exec", "--host", "root@10.9.9.9:2222", "uptime")
	require.NoError(t, res.err)

	call, ok := env.fake.LastCall()
	require.True(t, ok)
	assert.Equal(t, "root@10.9.9.9", targetOf(call))
	assert.Contains(t, call.Args, "Port=2222")
}

func TestExec_NoHostsConfigured(t *testing.T) {
	setupCLI(t)

	res := runCLI(t, "exec", "uptime")
	require.Error(t, res.err)
	assert.True(t, errors.IsCode(res.err, errors.ErrConfig))
}

func TestExec_SavesFleetLogs(t *testing.T) {
	env := setupCLI(t)
	logDir := filepath.Join(env.dir, "logs")
	env.writeConfig(t, twoHostConfig+`
logs:
  save: true
  dir: `+logDir+`
  keep_runs: 5
`)
	var n atomic.Int32
	env.fake.Handler = func(spec exec.Spec) exectest.Response {
		n.Add(1)
		return exectest.Response{Stdout: "ok\n"}
	}

	res := runCLI(t, "exec", "uptime")
	require.NoError(t, res.err)
	assert.EqualValues(t, 2, n.Load())

	runs, err := filepath.Glob(filepath.Join(logDir, "exec-*"))
	require.NoError(t, err)
	require.Len(t, runs, 1)
	_, err = os.Stat(filepath.Join(runs[0], "summary.json"))
	assert.NoError(t, err)
	assert.Contains(t, res.stdout, "Logs:")

	res = runCLI(t, "exec", "--no-logs", "uptime")
	require.NoError(t, res.err)
	runs, _ = filepath.Glob(filepath.Join(logDir, "exec-*"))
	assert.Len(t, runs, 1)
}
