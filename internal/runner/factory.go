package runner

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/pkg/sshutil"
)

// FleetConfig is shared by every node of a fleet.
type FleetConfig struct {
	// Addresses is required and non-empty.
	Addresses []string

	// Ports, when set, must line up with Addresses one to one. Empty means
	// 22 everywhere.
	Ports []int

	User         string
	PrivateKey   string
	ControlName  string
	ProxyCommand string

	ConnectTimeout time.Duration
}

// Collection is an ordered set of runners, index-aligned with the
// FleetConfig addresses.
type Collection []*Runner

// Addresses returns each runner's address, in order.
func (c Collection) Addresses() []string {
	out := make([]string, len(c))
	for i, r := range c {
		out[i] = r.Address()
	}
	return out
}

// MakeRunnerList builds one Runner per address. Runners share user, key
// and proxy but each gets its own control socket, derived from the fleet
// control name plus address and port.
func MakeRunnerList(cfg FleetConfig, opts ...Option) (Collection, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.NewUsage("No host addresses given",
			"List at least one host under hosts: in .fleetrun.yaml.")
	}
	if cfg.Ports != nil && len(cfg.Ports) != len(cfg.Addresses) {
		return nil, errors.NewUsage(
			fmt.Sprintf("Got %d ports for %d addresses", len(cfg.Ports), len(cfg.Addresses)),
			"Give a port for every address, or none to use 22 everywhere.")
	}

	runners := make(Collection, 0, len(cfg.Addresses))
	for i, addr := range cfg.Addresses {
		port := 0
		if cfg.Ports != nil {
			port = cfg.Ports[i]
		}
		if port == 0 {
			port = sshutil.DefaultPort
		}

		controlName := ""
		if cfg.ControlName != "" {
			controlName = cfg.ControlName + "-" + addr + "-" + strconv.Itoa(port)
		}

		r, err := New(Identity{
			Address:        addr,
			User:           cfg.User,
			PrivateKey:     cfg.PrivateKey,
			Port:           port,
			ControlName:    controlName,
			ProxyCommand:   cfg.ProxyCommand,
			ConnectTimeout: cfg.ConnectTimeout,
		}, opts...)
		if err != nil {
			return nil, err
		}
		runners = append(runners, r)
	}
	return runners, nil
}
