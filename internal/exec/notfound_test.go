package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/fleetrun/internal/errors"
)

func TestIsCommandNotFound(t *testing.T) {
	tests := []struct {
		stderr string
		code   int
		want   string
		found  bool
	}{
		{"bash: torchrun: command not found", 127, "torchrun", true},
		{"zsh: command not found: nvidia-smi", 127, "nvidia-smi", true},
		{"sh: 1: ray: not found", 127, "ray", true},
		{"-bash: ./launch.sh: No such file or directory", 127, "./launch.sh", true},
		{"conda: not found", 127, "conda", true},
		// exit 127 alone is enough; the name stays unknown
		{"Segmentation fault", 127, "", true},
		{"Error: checkpoint not found", 1, "", false},
		{"Permission denied", 126, "", false},
		{"", 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.stderr, func(t *testing.T) {
			name, found := IsCommandNotFound(tt.stderr, tt.code)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, name)
		})
	}
}

func TestIsDependencyNotFound(t *testing.T) {
	tests := []struct {
		stderr string
		want   string
		found  bool
	}{
		{"make: go: No such file or directory\nmake: *** [test] Error 1", "go", true},
		{"env: python3: No such file or directory", "python3", true},
		{"/bin/sh: nvcc: not found", "nvcc", true},
		{"'cargo' is not recognized as an internal or external command", "cargo", true},
		{"make: *** No rule to make target 'train'.  Stop.", "", false},
		{"CUDA out of memory", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.stderr, func(t *testing.T) {
			name, found := IsDependencyNotFound(tt.stderr)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, name)
		})
	}
}

func TestHandleExecError_CommandNotFound(t *testing.T) {
	err := HandleExecError("gpu-1", "python train.py", "bash: python: command not found", 127)

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrExec))
	assert.Contains(t, err.Error(), "'python' not found in PATH on gpu-1")
	assert.Contains(t, err.Error(), "Install 'python' on gpu-1")
	assert.Contains(t, err.Error(), "fleetrun shell gpu-1")
	assert.Contains(t, err.Error(), "fleetrun exec --host gpu-1")
}

func TestHandleExecError_DependencyNotFound(t *testing.T) {
	// make exits 2 when its child is missing
	err := HandleExecError("head", "make test", "make: go: No such file or directory\nmake: *** [test] Error 1", 2)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "'go' not found in PATH on head")
}

func TestHandleExecError_ExtractsCommandFromInput(t *testing.T) {
	err := HandleExecError("", "rustup show", "some error", 127)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "'rustup' not found in PATH on <host>")
}

func TestHandleExecError_NotCommandNotFound(t *testing.T) {
	assert.NoError(t, HandleExecError("gpu-1", "pytest", "2 failed, 10 passed", 1))
}
