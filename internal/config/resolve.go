package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/parallel"
	"github.com/rileyhilliard/fleetrun/internal/runner"
	"github.com/rileyhilliard/fleetrun/internal/util"
	"github.com/rileyhilliard/fleetrun/pkg/sshutil"
)

// ResolvedHost is a Host with every connection setting filled in.
type ResolvedHost struct {
	Label        string
	Address      string
	Port         int
	User         string
	IdentityFile string
	ProxyCommand string
	Tags         []string
}

// ResolveHosts fills in each host's connection settings. A field set on
// the host wins, then whatever ~/.ssh/config says for the address, then
// the top-level defaults. sshCfg may be nil.
func (c *Config) ResolveHosts(hosts []Host, sshCfg *sshutil.SSHConfig) []ResolvedHost {
	out := make([]ResolvedHost, len(hosts))
	for i, h := range hosts {
		entry := sshCfg.Resolve(h.Address)

		out[i] = ResolvedHost{
			Label:        h.Label(),
			Address:      entry.Address,
			Port:         firstInt(h.Port, entry.Port),
			User:         firstString(h.User, entry.User, c.User),
			IdentityFile: util.ExpandHome(firstString(h.IdentityFile, entry.IdentityFile, c.IdentityFile)),
			ProxyCommand: firstString(entry.ProxyCommand, c.ProxyCommand),
			Tags:         h.Tags,
		}
	}
	return out
}

// SelectHosts picks hosts by label or address and by tag. No names and no
// tags means every host. A host matching any name or carrying any tag is
// selected; config order is kept.
func (c *Config) SelectHosts(names, tags []string) ([]Host, error) {
	if len(c.Hosts) == 0 {
		return nil, errors.New(errors.ErrConfig, "No hosts configured",
			"Add hosts to .fleetrun.yaml with 'fleetrun hosts add' or 'fleetrun init'.")
	}
	if len(names) == 0 && len(tags) == 0 {
		return append([]Host(nil), c.Hosts...), nil
	}

	wanted := make(map[int]bool)
	for _, name := range names {
		found := false
		for i, h := range c.Hosts {
			if h.Label() == name || h.Address == name {
				wanted[i] = true
				found = true
			}
		}
		if !found {
			return nil, unknownHostError(name, c.hostLabels())
		}
	}

	for _, tag := range tags {
		found := false
		for i, h := range c.Hosts {
			if hasTag(h, tag) {
				wanted[i] = true
				found = true
			}
		}
		if !found {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("No host is tagged %q", tag),
				"Add tags: [\""+tag+"\"] to the hosts you mean.")
		}
	}

	var selected []Host
	for i, h := range c.Hosts {
		if wanted[i] {
			selected = append(selected, h)
		}
	}
	return selected, nil
}

// BuildFleet turns resolved hosts into runners, in order. Hosts sharing
// user, key and proxy are built by one MakeRunnerList call.
func (c *Config) BuildFleet(hosts []ResolvedHost, opts ...runner.Option) (runner.Collection, error) {
	if len(hosts) == 0 {
		return nil, errors.NewUsage("No hosts selected",
			"Check --host and --tag against the hosts in .fleetrun.yaml.")
	}

	type groupKey struct {
		user, key, proxy string
	}
	var order []groupKey
	groups := make(map[groupKey][]int)
	for i, h := range hosts {
		k := groupKey{h.User, h.IdentityFile, h.ProxyCommand}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	fleet := make(runner.Collection, len(hosts))
	for _, k := range order {
		idx := groups[k]
		fc := runner.FleetConfig{
			Addresses:      make([]string, len(idx)),
			Ports:          make([]int, len(idx)),
			User:           k.user,
			PrivateKey:     k.key,
			ControlName:    c.ControlName,
			ProxyCommand:   k.proxy,
			ConnectTimeout: c.ConnectTimeout,
		}
		for j, i := range idx {
			fc.Addresses[j] = hosts[i].Address
			fc.Ports[j] = hosts[i].Port
		}

		runners, err := runner.MakeRunnerList(fc, opts...)
		if err != nil {
			return nil, err
		}
		for j, i := range idx {
			fleet[i] = runners[j]
		}
	}
	return fleet, nil
}

// ParallelSettings converts the parallel section for the orchestrator.
func (c *Config) ParallelSettings() (parallel.Config, error) {
	mode, err := parallel.ParseOutputMode(c.Parallel.Output)
	if err != nil {
		return parallel.Config{}, errors.WrapWithCode(err, errors.ErrConfig, err.Error(),
			"Set parallel.output to progress, stream, verbose or quiet.")
	}
	return parallel.Config{
		MaxParallel: c.Parallel.MaxParallel,
		FailFast:    c.Parallel.FailFast,
		Timeout:     c.Parallel.Timeout,
		OutputMode:  mode,
	}, nil
}

// ParseHostSpec reads [user@]address[:port] as typed on the command line.
func ParseHostSpec(spec string) (Host, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Host{}, errors.NewUsage("Empty host", "Use address, user@address or user@address:port.")
	}

	var h Host
	if at := strings.LastIndex(spec, "@"); at >= 0 {
		h.User = spec[:at]
		spec = spec[at+1:]
		if h.User == "" {
			return Host{}, errors.NewUsage("Missing user before @", "Drop the @ or put a user name in front of it.")
		}
	}

	// Bracketed IPv6 literal, optionally with a port.
	if strings.HasPrefix(spec, "[") {
		end := strings.Index(spec, "]")
		if end < 0 {
			return Host{}, errors.NewUsage(fmt.Sprintf("Unclosed [ in %q", spec), "IPv6 addresses look like [::1]:22.")
		}
		h.Address = spec[1:end]
		rest := spec[end+1:]
		if rest != "" {
			if !strings.HasPrefix(rest, ":") {
				return Host{}, errors.NewUsage(fmt.Sprintf("Unexpected %q after address", rest), "")
			}
			port, err := parsePort(rest[1:])
			if err != nil {
				return Host{}, err
			}
			h.Port = port
		}
	} else if i := strings.LastIndex(spec, ":"); i >= 0 && strings.Count(spec, ":") == 1 {
		h.Address = spec[:i]
		port, err := parsePort(spec[i+1:])
		if err != nil {
			return Host{}, err
		}
		h.Port = port
	} else {
		h.Address = spec
	}

	if h.Address == "" {
		return Host{}, errors.NewUsage("Missing address", "Use address, user@address or user@address:port.")
	}
	return h, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, errors.NewUsage(fmt.Sprintf("Invalid port %q", s), "Ports go from 1 to 65535.")
	}
	return port, nil
}

func (c *Config) hostLabels() []string {
	labels := make([]string, len(c.Hosts))
	for i, h := range c.Hosts {
		labels[i] = h.Label()
	}
	return labels
}

func unknownHostError(name string, labels []string) error {
	suggestion := "Configured hosts: " + util.JoinOrNone(labels)
	if similar := util.SuggestSimilar(name, labels, 3); len(similar) > 0 {
		suggestion = "Did you mean " + strings.Join(similar, " or ") + "?"
	}
	return errors.New(errors.ErrConfig, fmt.Sprintf("Unknown host %q", name), suggestion)
}

func hasTag(h Host, tag string) bool {
	for _, t := range h.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstInt(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
