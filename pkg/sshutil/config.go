package sshutil

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// HostEntry is what ~/.ssh/config says about one concrete alias.
type HostEntry struct {
	Alias        string
	Address      string // HostName, or the alias itself when unset
	User         string
	Port         int // 0 when the config doesn't set one
	IdentityFile string
	ProxyCommand string
}

// Summary returns a short description for pickers and the hosts listing.
func (h HostEntry) Summary() string {
	var parts []string
	if h.Address != "" && h.Address != h.Alias {
		parts = append(parts, h.Address)
	}
	if h.User != "" {
		parts = append(parts, "user: "+h.User)
	}
	if h.Port != 0 && h.Port != DefaultPort {
		parts = append(parts, "port: "+strconv.Itoa(h.Port))
	}
	if h.ProxyCommand != "" {
		parts = append(parts, "via proxy")
	}
	if len(parts) == 0 {
		return h.Alias
	}
	return strings.Join(parts, ", ")
}

// SSHConfig wraps a decoded ssh config file.
type SSHConfig struct {
	cfg *ssh_config.Config
}

// DefaultSSHConfigPath returns ~/.ssh/config.
func DefaultSSHConfigPath() string {
	return filepath.Join(homeDir(), ".ssh", "config")
}

// LoadSSHConfig decodes the ssh config at path. A missing file yields an
// empty config rather than an error. Everything from the first Match block
// onward is ignored since the decoder can't evaluate Match criteria.
func LoadSSHConfig(path string) (*SSHConfig, error) {
	content, err := readUntilMatch(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &SSHConfig{}, nil
		}
		return nil, err
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	return &SSHConfig{cfg: cfg}, nil
}

// Aliases returns every concrete alias (no wildcard patterns), resolved and
// sorted by name. Duplicate aliases keep their first occurrence.
func (c *SSHConfig) Aliases() []HostEntry {
	if c == nil || c.cfg == nil {
		return nil
	}

	seen := make(map[string]bool)
	var entries []HostEntry
	for _, host := range c.cfg.Hosts {
		for _, pattern := range host.Patterns {
			alias := pattern.String()
			if strings.ContainsAny(alias, "*?!") || seen[alias] {
				continue
			}
			seen[alias] = true
			entries = append(entries, c.Resolve(alias))
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Alias < entries[j].Alias
	})
	return entries
}

// Resolve looks up the settings that apply to alias, wildcard blocks
// included. An alias the config doesn't mention resolves to itself.
func (c *SSHConfig) Resolve(alias string) HostEntry {
	entry := HostEntry{Alias: alias, Address: alias}
	if c == nil || c.cfg == nil {
		return entry
	}

	get := func(key string) string {
		v, _ := c.cfg.Get(alias, key)
		return strings.TrimSpace(v)
	}

	if v := get("HostName"); v != "" {
		entry.Address = v
	}
	entry.User = get("User")
	if v := get("Port"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			entry.Port = port
		}
	}
	if v := get("IdentityFile"); v != "" {
		entry.IdentityFile = expandPath(v)
	}
	entry.ProxyCommand = get("ProxyCommand")
	return entry
}

// readUntilMatch returns the file content up to the first Match directive.
func readUntilMatch(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "match ") {
			return []byte(strings.Join(lines[:i], "\n")), nil
		}
	}
	return content, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
