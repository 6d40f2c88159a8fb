package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/util"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".fleetrun.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/fleetrun"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix is prepended to environment overrides, e.g. FLEETRUN_USER.
	EnvPrefix = "FLEETRUN"
)

// Load reads config from path. Top-level scalars can be overridden from
// the environment: FLEETRUN_USER, FLEETRUN_PARALLEL_MAX_PARALLEL and so on.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found: "+path,
				"Run 'fleetrun init' to create one, or point at it with --config.")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't read "+path,
			"Check the file is valid YAML.")
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .fleetrun.yaml in current directory
// 3. .fleetrun.yaml in parent directories (stops at git root or home)
// 4. ~/.config/fleetrun/config.yaml (global defaults)
//
// Returns "" when nothing is found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Config file not found: "+explicit,
					"Check the path is correct.")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Can't access config file: "+explicit,
				"Check file permissions.")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Can't determine current directory",
			"Check directory permissions.")
	}

	if path := filepath.Join(cwd, ConfigFileName); fileExists(path) {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	dir := cwd
	for !isGitRoot(dir) {
		parent := filepath.Dir(dir)
		if parent == dir || (home != "" && parent == home) {
			break
		}
		dir = parent
		if path := filepath.Join(dir, ConfigFileName); fileExists(path) {
			return path, nil
		}
	}

	if home != "" {
		if path := filepath.Join(home, GlobalConfigDir, GlobalConfigFile); fileExists(path) {
			return path, nil
		}
	}
	return "", nil
}

// LoadOrDefault loads the config Find locates (honoring explicit), or
// returns defaults when there is none. The returned path is "" for
// defaults.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		v := newViper()
		cfg, err := parseConfig(v, "")
		return cfg, "", err
	}
	cfg, err := Load(path)
	return cfg, path, err
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults registers every scalar key so environment overrides reach
// Unmarshal even when the file doesn't mention the key.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("user", d.User)
	v.SetDefault("identity_file", d.IdentityFile)
	v.SetDefault("control_name", d.ControlName)
	v.SetDefault("proxy_command", d.ProxyCommand)
	v.SetDefault("connect_timeout", d.ConnectTimeout.String())
	v.SetDefault("sync.exclude", d.Sync.Exclude)
	v.SetDefault("parallel.max_parallel", d.Parallel.MaxParallel)
	v.SetDefault("parallel.fail_fast", d.Parallel.FailFast)
	v.SetDefault("parallel.timeout", "0s")
	v.SetDefault("parallel.output", d.Parallel.Output)
	v.SetDefault("logs.save", d.Logs.Save)
	v.SetDefault("logs.dir", d.Logs.Dir)
	v.SetDefault("logs.keep_runs", d.Logs.KeepRuns)
	v.SetDefault("logs.keep_days", d.Logs.KeepDays)
	v.SetDefault("logs.max_size_mb", d.Logs.MaxSizeMB)
}

func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		where := "your config"
		if path != "" {
			where = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML in "+where+". Durations look like 30s or 5m.")
	}
	if cfg.Hosts == nil {
		cfg.Hosts = []Host{}
	}

	cfg.IdentityFile = util.ExpandHome(cfg.IdentityFile)
	for i := range cfg.Hosts {
		cfg.Hosts[i].IdentityFile = util.ExpandHome(cfg.Hosts[i].IdentityFile)
	}
	return cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// isGitRoot checks if a directory is a git repository root.
func isGitRoot(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}
