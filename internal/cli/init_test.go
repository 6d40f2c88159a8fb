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

func TestInit_WritesHosts(t *testing.T) {
	env := setupCLI(t)

	res := runCLI(t, "init", "--host", "ubuntu@10.0.0.1", "--host", "10.0.0.2:2222", "--user", "ml", "--non-interactive")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Created .fleetrun.yaml with 2 hosts")
	assert.Contains(t, res.stdout, "fleetrun doctor")

	cfg, err := config.Load(filepath.Join(env.dir, config.ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, "ml", cfg.User)
	require.Len(t, cfg.Hosts, 2)
	assert.Equal(t, "ubuntu", cfg.Hosts[0].User)
	assert.Equal(t, "10.0.0.2", cfg.Hosts[1].Address)
	assert.Equal(t, 2222, cfg.Hosts[1].Port)
	assert.NotEmpty(t, cfg.Sync.Exclude)
}

func TestInit_NoHostsSuggestsAdding(t *testing.T) {
	setupCLI(t)

	res := runCLI(t, "init", "--non-interactive")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "with 0 hosts")
	assert.Contains(t, res.stdout, "fleetrun hosts add")
}

func TestInit_ExplicitPath(t *testing.T) {
	env := setupCLI(t)
	path := filepath.Join(env.dir, "fleets", "lab.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	res := runCLI(t, "--config", path, "init", "-H", "10.0.0.1")
	require.NoError(t, res.err)
	assert.FileExists(t, path)
	assert.NoFileExists(t, filepath.Join(env.dir, config.ConfigFileName))
}

func TestInit_ExistingConfig(t *testing.T) {
	env := setupCLI(t)
	path := env.writeConfig(t, twoHostConfig)

	res := runCLI(t, "init", "--host", "10.0.0.7")
	require.Error(t, res.err)
	assert.True(t, errors.IsCode(res.err, errors.ErrConfig))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Hosts, 2)

	res = runCLI(t, "init", "--host", "10.0.0.7", "--force")
	require.NoError(t, res.err)
	cfg, err = config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Hosts, 1)
	assert.Equal(t, "10.0.0.7", cfg.Hosts[0].Address)
}

func TestInit_BadHost(t *testing.T) {
	env := setupCLI(t)

	res := runCLI(t, "init", "--host", "@10.0.0.1")
	require.Error(t, res.err)
	assert.True(t, errors.IsCode(res.err, errors.ErrUsage))
	assert.NoFileExists(t, filepath.Join(env.dir, config.ConfigFileName))
}

func TestParseHostList(t *testing.T) {
	hosts, err := parseHostList(" ubuntu@10.0.0.1, 10.0.0.2:2200 ,,")
	require.NoError(t, err)
	require.Len(t, hosts, 2)
	assert.Equal(t, "ubuntu", hosts[0].User)
	assert.Equal(t, 2200, hosts[1].Port)

	_, err = parseHostList(" , ")
	assert.Error(t, err)

	_, err = parseHostList("10.0.0.1:0")
	assert.Error(t, err)
}
