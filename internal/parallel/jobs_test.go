package parallel

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	exectest "github.com/rileyhilliard/fleetrun/internal/exec/testing"
	"github.com/rileyhilliard/fleetrun/internal/logger"
	"github.com/rileyhilliard/fleetrun/internal/runner"
	synctest "github.com/rileyhilliard/fleetrun/internal/sync/testing"
	"github.com/rileyhilliard/fleetrun/pkg/sshutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecJob_StreamsMergedWithoutLogFile(t *testing.T) {
	fake := exectest.NewFakeExecutor().Queue(exectest.Response{Stdout: "a\n", Stderr: "b\n"})
	fleet := newFleet(t, 1, runner.WithExecutor(fake))

	var out bytes.Buffer
	job := ExecJob(runner.Shell("nvidia-smi"), runner.RunOptions{
		LogPath:        "/tmp/shared.log",
		StreamLogs:     true,
		SeparateStderr: true,
	})
	code, err := job(context.Background(), fleet[0], &out)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "a\nb\n", out.String())

	spec, ok := fake.LastCall()
	require.True(t, ok)
	assert.True(t, spec.Stream)
	assert.False(t, spec.SeparateStderr)
	assert.False(t, spec.TeeLog)
	assert.Empty(t, spec.LogPath)
	assert.Equal(t, "nvidia-smi", spec.Args[len(spec.Args)-1])
}

func TestExecJob_RejectsLoginMode(t *testing.T) {
	fake := exectest.NewFakeExecutor()
	fleet := newFleet(t, 1, runner.WithExecutor(fake))

	code, err := ExecJob(runner.Shell(""), runner.RunOptions{Mode: runner.ModeLogin})(
		context.Background(), fleet[0], &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, -1, code)
	assert.True(t, errors.IsCode(err, errors.ErrUsage))
	assert.Equal(t, 0, fake.CallCount())
}

func TestPushJob(t *testing.T) {
	syncer := synctest.NewFakeSyncer().SetProgress("sending incremental file list", "train.py")
	fleet := newFleet(t, 1, runner.WithSyncer(syncer))

	var out bytes.Buffer
	code, err := PushJob("./src/", "~/work", runner.SyncOptions{Excludes: []string{"*.ckpt"}})(
		context.Background(), fleet[0], &out)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "sending incremental file list\ntrain.py\n", out.String())

	call := syncer.LastCall()
	require.NotNil(t, call)
	assert.True(t, call.Request.Up)
	assert.Equal(t, "./src/", call.Request.Source)
	assert.Equal(t, "~/work", call.Request.Target)
	assert.Equal(t, []string{"*.ckpt"}, call.Request.Excludes)
}

func TestPushJob_Failure(t *testing.T) {
	boom := errors.New(errors.ErrSync, "rsync failed", "")
	syncer := synctest.NewFakeSyncer().SetFail(boom)
	fleet := newFleet(t, 1, runner.WithSyncer(syncer))

	code, err := PushJob("./src/", "~/work", runner.SyncOptions{})(context.Background(), fleet[0], &bytes.Buffer{})
	assert.Equal(t, -1, code)
	assert.Equal(t, boom, err)
}

func TestPullJob_PerHostDirectories(t *testing.T) {
	syncer := synctest.NewFakeSyncer()
	fleet := newFleet(t, 2, runner.WithSyncer(syncer))

	result, err := NewOrchestrator(fleet, Config{MaxParallel: 1}, nil).
		Run(context.Background(), PullJob("~/work/results/", "out", true, runner.SyncOptions{}))
	require.NoError(t, err)
	require.True(t, result.Success())

	require.Equal(t, 2, syncer.CallCount())
	var targets []string
	for _, c := range syncer.Calls {
		assert.False(t, c.Request.Up)
		targets = append(targets, c.Request.Target)
	}
	sep := string(filepath.Separator)
	assert.ElementsMatch(t, []string{
		filepath.Join("out", "10.0.0.1") + sep,
		filepath.Join("out", "10.0.0.2") + sep,
	}, targets)
}

func TestPullJob_PerHostDirectoriesKeepPortsApart(t *testing.T) {
	syncer := synctest.NewFakeSyncer()
	fleet, err := runner.MakeRunnerList(runner.FleetConfig{
		Addresses: []string{"127.0.0.1", "127.0.0.1", "10.0.0.9"},
		Ports:     []int{10022, 10023, 22},
		User:      "ubuntu",
	}, runner.WithSyncer(syncer),
		runner.WithLogger(logger.Noop()),
		runner.WithControlRegistry(sshutil.NewControlRegistry(t.TempDir())))
	require.NoError(t, err)

	result, err := NewOrchestrator(fleet, Config{MaxParallel: 1}, nil).
		Run(context.Background(), PullJob("~/work/results/", "out", true, runner.SyncOptions{}))
	require.NoError(t, err)
	require.True(t, result.Success())

	var targets []string
	for _, c := range syncer.Calls {
		targets = append(targets, c.Request.Target)
	}
	sep := string(filepath.Separator)
	assert.ElementsMatch(t, []string{
		filepath.Join("out", "127.0.0.1_10022") + sep,
		filepath.Join("out", "127.0.0.1_10023") + sep,
		filepath.Join("out", "10.0.0.9") + sep,
	}, targets)
}

func TestPullJob_SharedTarget(t *testing.T) {
	syncer := synctest.NewFakeSyncer()
	fleet := newFleet(t, 1, runner.WithSyncer(syncer))

	_, err := PullJob("~/work/model.pt", "./model.pt", false, runner.SyncOptions{})(
		context.Background(), fleet[0], &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "./model.pt", syncer.LastCall().Request.Target)
}

func TestCloseJob(t *testing.T) {
	fake := exectest.NewFakeExecutor()
	r, err := runner.New(runner.Identity{Address: "10.0.0.1", ControlName: "train"},
		runner.WithExecutor(fake),
		runner.WithLogger(logger.Noop()),
		runner.WithControlRegistry(sshutil.NewControlRegistry(t.TempDir())))
	require.NoError(t, err)

	code, err := CloseJob()(context.Background(), r, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	spec, ok := fake.LastCall()
	require.True(t, ok)
	assert.Contains(t, spec.Args, "-O")
	assert.Contains(t, spec.Args, "exit")
}
