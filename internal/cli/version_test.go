package cli

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"dev", "dev"},
		{"1.2.0", "v1.2.0"},
		{"v1.2.0", "v1.2.0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatVersion(tt.in), tt.in)
	}
}

func TestVersionCmd(t *testing.T) {
	setupCLI(t)
	origV, origC, origD := version, commit, date
	t.Cleanup(func() { SetVersionInfo(origV, origC, origD) })
	SetVersionInfo("1.4.2", "abc1234", "2026-01-02")

	res := runCLI(t, "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "fleetrun v1.4.2")
	assert.Contains(t, res.stdout, "commit: abc1234")
	assert.Contains(t, res.stdout, "built: 2026-01-02")
	assert.Contains(t, res.stdout, runtime.GOOS+"/"+runtime.GOARCH)

	res = runCLI(t, "version", "--short")
	require.NoError(t, res.err)
	assert.Equal(t, "1.4.2\n", res.stdout)
}
