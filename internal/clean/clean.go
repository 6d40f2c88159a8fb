// Package clean finds and removes what multiplexed ssh sessions leave
// behind: dead control sockets and the empty directories that held them.
package clean

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rileyhilliard/fleetrun/internal/parallel"
	"github.com/rileyhilliard/fleetrun/internal/runner"
)

// dialTimeout bounds the liveness dial on each socket.
const dialTimeout = 200 * time.Millisecond

// Socket is one entry under the control root.
type Socket struct {
	Path string // full path, <root>/<control name>/<socket>
	Name string // hashed control name it belongs to
	// Alive means a master answered on the socket.
	Alive bool
	// EmptyDir marks a control-name directory with no sockets left in it.
	EmptyDir bool
}

// Discover lists the control sockets under root. A missing root means
// nothing to clean.
func Discover(root string) ([]Socket, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("can't read control socket root %s: %w", root, err)
	}

	var found []Socket
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		sockets := 0
		for _, f := range files {
			if f.Type()&os.ModeSocket == 0 {
				continue
			}
			sockets++
			path := filepath.Join(dir, f.Name())
			found = append(found, Socket{
				Path:  path,
				Name:  entry.Name(),
				Alive: alive(path),
			})
		}
		if sockets == 0 && len(files) == 0 {
			found = append(found, Socket{Path: dir, Name: entry.Name(), EmptyDir: true})
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	return found, nil
}

// Stale filters sockets down to the ones safe to delete: dead sockets and
// empty directories.
func Stale(sockets []Socket) []Socket {
	var out []Socket
	for _, s := range sockets {
		if !s.Alive {
			out = append(out, s)
		}
	}
	return out
}

// Remove deletes the given entries. Each path is checked against root
// first; only paths exactly one or two levels below it are eligible.
// Returns the paths removed and any errors.
func Remove(root string, sockets []Socket) (removed []string, errs []error) {
	for _, s := range sockets {
		if err := validateRemovalTarget(root, s); err != nil {
			errs = append(errs, fmt.Errorf("refusing to delete %q: %s", s.Path, err))
			continue
		}
		if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", s.Path, err))
			continue
		}
		removed = append(removed, s.Path)
	}
	return removed, errs
}

// validateRemovalTarget only accepts paths that Discover could have
// produced for root: <root>/<name> for an empty dir, <root>/<name>/<sock>
// for a socket.
func validateRemovalTarget(root string, s Socket) error {
	if strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("empty path")
	}
	if root == "" || filepath.Clean(root) == "/" {
		return fmt.Errorf("control root %q is not a safe place to delete from", root)
	}

	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(s.Path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("path is outside %s", root)
	}

	parts := strings.Split(rel, string(filepath.Separator))
	want := 2
	if s.EmptyDir {
		want = 1
	}
	if len(parts) != want {
		return fmt.Errorf("path is %d levels below the root, expected %d", len(parts), want)
	}
	if parts[0] != s.Name {
		return fmt.Errorf("path is not under control name %s", s.Name)
	}
	if s.Alive {
		return fmt.Errorf("a master is still listening")
	}
	return nil
}

// alive reports whether something accepts connections on the socket.
func alive(path string) bool {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return false
	}
	conn.Close() //nolint:errcheck
	return true
}

// CloseMasters asks every runner's master connection to exit, all hosts
// at once. Runners without multiplexing pass trivially.
func CloseMasters(ctx context.Context, fleet runner.Collection) (*parallel.Result, error) {
	orch := parallel.NewOrchestrator(fleet, parallel.Config{OutputMode: parallel.OutputQuiet}, nil)
	return orch.Run(ctx, parallel.CloseJob())
}
