package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/fleetrun/internal/config"
	"github.com/rileyhilliard/fleetrun/internal/errors"
)

func TestHostsList(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, twoHostConfig)

	for _, args := range [][]string{{"hosts"}, {"hosts", "list"}, {"hosts", "ls"}} {
		res := runCLI(t, args...)
		require.NoError(t, res.err, args)
		assert.Contains(t, res.stdout, "NAME")
		assert.Contains(t, res.stdout, "gpu-1")
		assert.Contains(t, res.stdout, "10.0.0.2")
		assert.Contains(t, res.stdout, "ubuntu")
		assert.Contains(t, res.stdout, "22")
	}
}

func TestHostsList_Filtered(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, twoHostConfig)

	res := runCLI(t, "hosts", "--host", "gpu-2")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "gpu-2")
	assert.NotContains(t, res.stdout, "gpu-1")
}

func TestHostsList_ResolvesSSHConfig(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, `
hosts:
  - address: trainer
`)
	sshDir := filepath.Join(env.home, ".ssh")
	require.NoError(t, os.MkdirAll(sshDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(sshDir, "config"), []byte(`Host trainer
  HostName 192.168.7.20
  User ml
  Port 2200
`), 0o600))

	res := runCLI(t, "hosts")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "192.168.7.20")
	assert.Contains(t, res.stdout, "2200")
	assert.Contains(t, res.stdout, "ml")

	res = runCLI(t, "hosts", "list", "--ssh-config")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "ALIAS")
	assert.Contains(t, res.stdout, "trainer")
}

func TestHostsList_Empty(t *testing.T) {
	setupCLI(t)

	res := runCLI(t, "hosts")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "no hosts configured")
}

func TestHostsAdd(t *testing.T) {
	env := setupCLI(t)
	path := env.writeConfig(t, "# fleet for the lab\n"+twoHostConfig)

	res := runCLI(t, "hosts", "add", "root@10.0.0.3:2222", "--name", "gpu-3", "-t", "gpu", "-t", "a100")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Added gpu-3")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Hosts, 3)
	h := cfg.Hosts[2]
	assert.Equal(t, "gpu-3", h.Name)
	assert.Equal(t, "10.0.0.3", h.Address)
	assert.Equal(t, 2222, h.Port)
	assert.Equal(t, "root", h.User)
	assert.Equal(t, []string{"gpu", "a100"}, h.Tags)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# fleet for the lab")
}

func TestHostsAdd_Duplicate(t *testing.T) {
	env := setupCLI(t)
	path := env.writeConfig(t, twoHostConfig)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	res := runCLI(t, "hosts", "add", "10.0.0.9", "--name", "gpu-1")
	require.Error(t, res.err)
	assert.True(t, errors.IsCode(res.err, errors.ErrConfig))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestHostsAdd_NeedsConfigFile(t *testing.T) {
	setupCLI(t)

	res := runCLI(t, "hosts", "add", "10.0.0.9")
	require.Error(t, res.err)
	assert.True(t, errors.IsCode(res.err, errors.ErrConfig))
}

func TestHostsAdd_BadSpec(t *testing.T) {
	env := setupCLI(t)
	env.writeConfig(t, twoHostConfig)

	res := runCLI(t, "hosts", "add", "10.0.0.9:99999")
	require.Error(t, res.err)
	assert.True(t, errors.IsCode(res.err, errors.ErrUsage))
}

func TestOrDash(t *testing.T) {
	assert.Equal(t, "-", orDash(""))
	assert.Equal(t, "x", orDash("x"))
}
