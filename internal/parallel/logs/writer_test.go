package logs

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rileyhilliard/fleetrun/internal/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogWriter(t *testing.T) {
	tmpDir := t.TempDir()

	writer, err := NewLogWriter(tmpDir, "exec")
	require.NoError(t, err)

	assert.DirExists(t, writer.Dir())
	assert.True(t, strings.HasPrefix(filepath.Base(writer.Dir()), "exec-"))
	assert.True(t, strings.HasPrefix(writer.Dir(), tmpDir))
	assert.Equal(t, tmpDir, writer.BaseDir())
}

func TestNewLogWriter_SanitizesRunName(t *testing.T) {
	writer, err := NewLogWriter(t.TempDir(), "push:./src")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(writer.Dir()), "push-.-src-"))
}

func TestNewLogWriter_TildeExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	writer, err := NewLogWriter("~/.fleetrun/logs", "exec")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(writer.Dir(), filepath.Join(home, ".fleetrun", "logs")))
}

func TestLogWriter_WriteHost(t *testing.T) {
	writer, err := NewLogWriter(t.TempDir(), "exec")
	require.NoError(t, err)

	require.NoError(t, writer.WriteHost("ubuntu@10.0.0.1", []byte("hello\n")))

	content, err := os.ReadFile(filepath.Join(writer.Dir(), "ubuntu-10.0.0.1.log"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(content))
}

func TestLogWriter_Closed(t *testing.T) {
	writer, err := NewLogWriter(t.TempDir(), "exec")
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	assert.Error(t, writer.WriteHost("h", nil))
	assert.Error(t, writer.WriteSummary(&parallel.Result{}, "exec"))
}

func TestLogWriter_WriteResult(t *testing.T) {
	writer, err := NewLogWriter(t.TempDir(), "exec")
	require.NoError(t, err)

	start := time.Now()
	result := &parallel.Result{
		Hosts: []parallel.HostResult{
			{Index: 0, Host: "ubuntu@gpu-01", Status: parallel.HostPassed, Output: []byte("ok\n"), StartTime: start, EndTime: start.Add(time.Second)},
			{Index: 1, Host: "ubuntu@gpu-02", Status: parallel.HostFailed, ExitCode: -1, Err: errors.New("Couldn't connect")},
			{Index: 2, Host: "ubuntu@gpu-03", Status: parallel.HostSkipped},
		},
		Duration: time.Second,
		Passed:   1,
		Failed:   1,
		Skipped:  1,
	}
	require.NoError(t, writer.WriteResult(result, "nvidia-smi"))

	assert.FileExists(t, filepath.Join(writer.Dir(), "ubuntu-gpu-01.log"))
	assert.FileExists(t, filepath.Join(writer.Dir(), "ubuntu-gpu-02.log"))
	assert.NoFileExists(t, filepath.Join(writer.Dir(), "ubuntu-gpu-03.log"))

	data, err := os.ReadFile(filepath.Join(writer.Dir(), "summary.json"))
	require.NoError(t, err)

	var summary SummaryJSON
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, "nvidia-smi", summary.Run)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Hosts, 3)
	assert.Equal(t, "passed", summary.Hosts[0].Status)
	assert.Equal(t, "ubuntu-gpu-01.log", summary.Hosts[0].LogFile)
	assert.Equal(t, "Couldn't connect", summary.Hosts[1].Error)
	assert.Equal(t, -1, summary.Hosts[1].ExitCode)
	assert.Empty(t, summary.Hosts[2].LogFile)
}

func TestLogWriter_WriteResultNil(t *testing.T) {
	writer, err := NewLogWriter(t.TempDir(), "exec")
	require.NoError(t, err)
	assert.NoError(t, writer.WriteResult(nil, "exec"))
	assert.NoFileExists(t, filepath.Join(writer.Dir(), "summary.json"))
}
