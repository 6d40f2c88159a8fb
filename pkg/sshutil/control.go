package sshutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rileyhilliard/fleetrun/internal/errors"
)

// ControlKey identifies one multiplexed session.
type ControlKey struct {
	User string
	Host string
	Port int
	Name string // hashed control name
}

// String renders the key as user@host:port/name.
func (k ControlKey) String() string {
	target := k.Host
	if k.User != "" {
		target = k.User + "@" + k.Host
	}
	return fmt.Sprintf("%s:%d/%s", target, k.Port, k.Name)
}

// ControlRegistry tracks which control-socket directories this process has
// handed out. Directories are created on first use and never removed here;
// stale sockets are cleaned up by the clean command.
type ControlRegistry struct {
	mu      sync.Mutex
	root    string
	entries map[ControlKey]string
}

// NewControlRegistry creates a registry rooted at root.
func NewControlRegistry(root string) *ControlRegistry {
	return &ControlRegistry{
		root:    root,
		entries: make(map[ControlKey]string),
	}
}

var (
	defaultRegistry     *ControlRegistry
	defaultRegistryOnce sync.Once
)

// DefaultControlRegistry returns the process-wide registry rooted at
// DefaultControlRoot().
func DefaultControlRegistry() *ControlRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewControlRegistry(DefaultControlRoot())
	})
	return defaultRegistry
}

// DefaultControlRoot returns /tmp/fleetrun_ssh_<user>. /tmp rather than
// os.TempDir() keeps socket paths short on macOS.
func DefaultControlRoot() string {
	return filepath.Join("/tmp", "fleetrun_ssh_"+localUser())
}

// Root returns the directory holding the per-name socket directories.
func (r *ControlRegistry) Root() string {
	return r.root
}

// Dir returns the socket directory for a hashed control name without
// touching the filesystem.
func (r *ControlRegistry) Dir(name string) string {
	return filepath.Join(r.root, name)
}

// Ensure makes sure the socket directory for key exists and records the key.
// Safe to call concurrently; only the first call for a directory creates it.
func (r *ControlRegistry) Ensure(key ControlKey) (string, error) {
	if key.Name == "" {
		return "", errors.NewUsage("Control socket name is empty",
			"Multiplexing is opt-in; only call Ensure for identities with a control name.")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if dir, ok := r.entries[key]; ok {
		return dir, nil
	}

	dir := r.Dir(key.Name)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't create SSH control socket dir %s", dir),
			"Check permissions on "+r.root+", or remove it and retry.")
	}

	r.entries[key] = dir
	return dir, nil
}

// Entries returns every key handed out so far, sorted for stable output.
func (r *ControlRegistry) Entries() []ControlKey {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]ControlKey, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

func localUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "root"
}
