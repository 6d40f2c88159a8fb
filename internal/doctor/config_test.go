package doctor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCheck(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".fleetrun.yaml")
		require.NoError(t, os.WriteFile(path, []byte("hosts:\n  - address: 10.0.0.1\n  - address: 10.0.0.2\n"), 0o644))

		check := &ConfigCheck{Path: path}
		r := check.Run(context.Background())
		assert.Equal(t, StatusPass, r.Status)
		assert.Contains(t, r.Message, "2 hosts")
		require.NotNil(t, check.Config)
		assert.Equal(t, path, check.ConfigPath)
	})

	t.Run("no hosts", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".fleetrun.yaml")
		require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

		check := &ConfigCheck{Path: path}
		r := check.Run(context.Background())
		assert.Equal(t, StatusWarn, r.Status)
		assert.NotNil(t, check.Config)
	})

	t.Run("invalid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".fleetrun.yaml")
		require.NoError(t, os.WriteFile(path, []byte("hosts:\n  - name: orphan\n"), 0o644))

		check := &ConfigCheck{Path: path}
		r := check.Run(context.Background())
		assert.Equal(t, StatusFail, r.Status)
		assert.Contains(t, r.Message, "no address")
		assert.NotEmpty(t, r.Suggestion)
		assert.Nil(t, check.Config)
	})

	t.Run("missing explicit path", func(t *testing.T) {
		r := (&ConfigCheck{Path: filepath.Join(t.TempDir(), "nope.yaml")}).Run(context.Background())
		assert.Equal(t, StatusFail, r.Status)
		assert.Contains(t, r.Message, "not found")
	})
}
