// Package config loads and writes .fleetrun.yaml, the per-project fleet
// definition, and turns it into runners.
package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete .fleetrun.yaml file.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// Connection defaults shared by every host.
	User           string        `yaml:"user,omitempty" mapstructure:"user"`
	IdentityFile   string        `yaml:"identity_file,omitempty" mapstructure:"identity_file"`
	ControlName    string        `yaml:"control_name,omitempty" mapstructure:"control_name"`
	ProxyCommand   string        `yaml:"proxy_command,omitempty" mapstructure:"proxy_command"`
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty" mapstructure:"connect_timeout"`

	Hosts []Host `yaml:"hosts" mapstructure:"hosts"`

	Sync     SyncConfig     `yaml:"sync" mapstructure:"sync"`
	Parallel ParallelConfig `yaml:"parallel" mapstructure:"parallel"`
	Logs     LogsConfig     `yaml:"logs" mapstructure:"logs"`
}

// Host is one fleet member. Address may be an IP, a DNS name, or an alias
// from ~/.ssh/config.
type Host struct {
	// Name labels the host in output and selects it with --host. Defaults
	// to Address.
	Name    string `yaml:"name,omitempty" mapstructure:"name"`
	Address string `yaml:"address" mapstructure:"address"`
	Port    int    `yaml:"port,omitempty" mapstructure:"port"`

	// Per-host overrides of the connection defaults.
	User         string `yaml:"user,omitempty" mapstructure:"user"`
	IdentityFile string `yaml:"identity_file,omitempty" mapstructure:"identity_file"`

	// Tags for filtering hosts with --tag.
	Tags []string `yaml:"tags,omitempty" mapstructure:"tags"`
}

// Label is the name shown for h.
func (h Host) Label() string {
	if h.Name != "" {
		return h.Name
	}
	return h.Address
}

// SyncConfig controls push and pull.
type SyncConfig struct {
	// Exclude patterns (rsync syntax), added after .gitignore rules.
	Exclude []string `yaml:"exclude" mapstructure:"exclude"`
}

// ParallelConfig controls fleet-wide fan-out.
type ParallelConfig struct {
	MaxParallel int           `yaml:"max_parallel" mapstructure:"max_parallel"`
	FailFast    bool          `yaml:"fail_fast" mapstructure:"fail_fast"`
	Timeout     time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
	// Output is one of progress, stream, verbose, quiet.
	Output string `yaml:"output" mapstructure:"output"`
}

// LogsConfig controls per-run log files and their retention.
type LogsConfig struct {
	// Save writes each fleet run's per-host output under Dir.
	Save bool   `yaml:"save" mapstructure:"save"`
	Dir  string `yaml:"dir" mapstructure:"dir"`

	// Retention. Zero disables a rule.
	KeepRuns  int `yaml:"keep_runs" mapstructure:"keep_runs"`
	KeepDays  int `yaml:"keep_days,omitempty" mapstructure:"keep_days"`
	MaxSizeMB int `yaml:"max_size_mb,omitempty" mapstructure:"max_size_mb"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:        CurrentConfigVersion,
		ConnectTimeout: 30 * time.Second,
		Hosts:          []Host{},
		Sync: SyncConfig{
			Exclude: []string{
				".git/",
				".venv/",
				"__pycache__/",
				"*.pyc",
				"node_modules/",
				".DS_Store",
			},
		},
		Parallel: ParallelConfig{
			Output: "progress",
		},
		Logs: LogsConfig{
			Dir:      "~/.fleetrun/logs",
			KeepRuns: 20,
		},
	}
}
