package doctor

import (
	"context"
	"fmt"

	"github.com/rileyhilliard/fleetrun/internal/config"
	"github.com/rileyhilliard/fleetrun/internal/util"
)

// ConfigCheck finds, loads and validates .fleetrun.yaml. After Run, Config
// holds the loaded config when it was usable.
type ConfigCheck struct {
	Path string // explicit path, or empty to search

	Config     *config.Config
	ConfigPath string
}

func (c *ConfigCheck) Name() string     { return "config" }
func (c *ConfigCheck) Category() string { return CategoryConfig }

func (c *ConfigCheck) Run(_ context.Context) CheckResult {
	path, err := config.Find(c.Path)
	if err != nil {
		return failure("", err)
	}
	if path == "" {
		return CheckResult{
			Status:     StatusFail,
			Message:    "No config file found",
			Suggestion: "Run 'fleetrun init' to create " + config.ConfigFileName,
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return failure("", err)
	}
	if err := config.Validate(cfg); err != nil {
		return failure(path, err)
	}

	c.Config = cfg
	c.ConfigPath = path

	if len(cfg.Hosts) == 0 {
		return CheckResult{
			Status:     StatusWarn,
			Message:    fmt.Sprintf("%s has no hosts", path),
			Suggestion: "Add some with 'fleetrun hosts add user@address'",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s (%d %s)", path, len(cfg.Hosts), util.Pluralize(len(cfg.Hosts), "host", "hosts")),
	}
}

func (c *ConfigCheck) Fix() error { return nil }
