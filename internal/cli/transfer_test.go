package cli

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/exec"
	exectest "github.com/rileyhilliard/fleetrun/internal/exec/testing"
)

const syncConfig = oneHostConfig + `
sync:
  exclude:
    - "*.ckpt"
`

func lastTwo(args []string) (string, string) {
	return args[len(args)-2], args[len(args)-1]
}

func TestPush_SingleHost(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, syncConfig)

	res := runCLI(t, "push", "./src", "/data/src")
	require.NoError(t, res.err)

	call, ok := env.fake.LastCall()
	require.True(t, ok)
	assert.Equal(t, "rsync", call.Args[0])
	assert.Contains(t, call.Args, "--exclude=*.ckpt")

	src, dst := lastTwo(call.Args)
	assert.Equal(t, "./src", src)
	assert.Equal(t, "ubuntu@10.0.0.1:/data/src", dst)
	assert.Contains(t, res.stderr, "Pushed to ubuntu@10.0.0.1")
}

func TestPush_ExcludeFlags(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, syncConfig)

	res := runCLI(t, "push", "-x", "data/", "--no-default-excludes", "./src", "/data/src")
	require.NoError(t, res.err)

	call, _ := env.fake.LastCall()
	assert.Contains(t, call.Args, "--exclude=data/")
	assert.NotContains(t, call.Args, "--exclude=*.ckpt")
}

func TestPush_FailureIsSyncError(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, syncConfig)
	env.fake.Queue(exectest.Response{ExitCode: 23, Stdout: "rsync: change_dir \"/nope\" failed\n"})

	res := runCLI(t, "push", "/nope", "/data")
	require.Error(t, res.err)
	assert.True(t, errors.IsCode(res.err, errors.ErrSync))
}

func TestPull_SingleHost(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, syncConfig)
	local := filepath.Join(env.dir, "results")

	res := runCLI(t, "--quiet", "pull", "/data/results/", local)
	require.NoError(t, res.err)
	assert.Empty(t, res.stderr)

	call, _ := env.fake.LastCall()
	src, dst := lastTwo(call.Args)
	assert.Equal(t, "ubuntu@10.0.0.1:/data/results/", src)
	assert.Equal(t, local, dst)
}

func TestPull_FleetWritesPerHostDirs(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, twoHostConfig)
	local := filepath.Join(env.dir, "results")

	res := runCLI(t, "pull", "/data/results", local)
	require.NoError(t, res.err)
	require.Equal(t, 2, env.fake.CallCount())

	var dsts []string
	for _, call := range env.fake.Calls {
		_, dst := lastTwo(call.Args)
		dsts = append(dsts, dst)
	}
	sort.Strings(dsts)
	sep := string(filepath.Separator)
	assert.Equal(t, []string{
		filepath.Join(local, "10.0.0.1") + sep,
		filepath.Join(local, "10.0.0.2") + sep,
	}, dsts)
	assert.Contains(t, res.stdout, "pull /data/results")
}

func TestPush_FleetFailure(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, twoHostConfig)
	env.fake.Handler = func(spec exec.Spec) exectest.Response {
		_, dst := lastTwo(spec.Args)
		if dst == "ubuntu@10.0.0.2:/data" {
			return exectest.Response{ExitCode: 12, Stdout: "rsync error: error in rsync protocol data stream\n"}
		}
		return exectest.Response{}
	}

	res := runCLI(t, "push", "./src", "/data")
	require.Error(t, res.err)
	_, ok := errors.GetExitCode(res.err)
	assert.True(t, ok)
	assert.Contains(t, res.stdout, "1 failed")
}

func TestTransfer_ArgCount(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, oneHostConfig)

	res := runCLI(t, "push", "./src")
	require.Error(t, res.err)
	assert.Zero(t, env.fake.CallCount())
}
