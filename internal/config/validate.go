package config

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/parallel"
)

// Validate checks cfg for errors a run would otherwise hit halfway through.
// Each error carries a suggestion pointing at the section to fix.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig, "No config loaded", "Run 'fleetrun init' to create one.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but fleetrun only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade fleetrun to read this file.")
	}

	if cfg.ConnectTimeout < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("connect_timeout can't be negative (got %s)", cfg.ConnectTimeout),
			"Use something like 30s, or leave it out for the default.")
	}

	if err := validateHosts(cfg.Hosts); err != nil {
		return err
	}
	if err := validateParallel(cfg.Parallel); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(),
			"Check the 'parallel' section in your .fleetrun.yaml.")
	}
	if err := validateLogs(cfg.Logs); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(),
			"Check the 'logs' section in your .fleetrun.yaml.")
	}
	return nil
}

func validateHosts(hosts []Host) error {
	seen := make(map[string]int, len(hosts))
	for i, h := range hosts {
		if strings.TrimSpace(h.Address) == "" {
			label := h.Name
			if label == "" {
				label = fmt.Sprintf("#%d", i+1)
			}
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Host %s has no address", label),
				"Every entry under hosts: needs an address (IP, DNS name or ~/.ssh/config alias).")
		}
		if strings.ContainsAny(h.Address, " \t@") {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Host address %q looks wrong", h.Address),
				"Put the user in the user: field, not the address.")
		}
		if h.Port < 0 || h.Port > 65535 {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Host %s has port %d, which is out of range", h.Label(), h.Port),
				"Ports go from 1 to 65535. Leave it out for 22.")
		}

		label := h.Label()
		if prev, dup := seen[label]; dup {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Hosts #%d and #%d are both called %q", prev+1, i+1, label),
				"Give one of them a distinct name: field.")
		}
		seen[label] = i
	}
	return nil
}

func validateParallel(p ParallelConfig) error {
	if p.MaxParallel < 0 {
		return fmt.Errorf("max_parallel can't be negative (got %d)", p.MaxParallel)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("parallel timeout can't be negative (got %s)", p.Timeout)
	}
	if _, err := parallel.ParseOutputMode(p.Output); err != nil {
		return err
	}
	return nil
}

func validateLogs(l LogsConfig) error {
	if l.KeepRuns < 0 {
		return fmt.Errorf("keep_runs can't be negative (got %d)", l.KeepRuns)
	}
	if l.KeepDays < 0 {
		return fmt.Errorf("keep_days can't be negative (got %d)", l.KeepDays)
	}
	if l.MaxSizeMB < 0 {
		return fmt.Errorf("max_size_mb can't be negative (got %d)", l.MaxSizeMB)
	}
	if l.Save && l.Dir == "" {
		return fmt.Errorf("logs.save is on but logs.dir is empty")
	}
	return nil
}
