package runner

import (
	"sort"
	"strings"

	"github.com/rileyhilliard/fleetrun/internal/util"
)

// Command is either one shell string or an argument list. An argument list
// is joined with single spaces, unquoted, exactly as a shell string would be
// typed.
type Command struct {
	shell string
	argv  []string
}

// Shell wraps a shell string.
func Shell(s string) Command {
	return Command{shell: s}
}

// Argv wraps an argument list.
func Argv(args ...string) Command {
	return Command{argv: args}
}

// String returns the remote shell string.
func (c Command) String() string {
	if c.argv != nil {
		return strings.Join(c.argv, " ")
	}
	return c.shell
}

// IsEmpty reports whether there's nothing to run.
func (c Command) IsEmpty() bool {
	return strings.TrimSpace(c.String()) == ""
}

// remoteCommand prefixes cmd with a cd into workDir and exports for env.
func remoteCommand(cmd string, env map[string]string, workDir string) string {
	var parts []string
	if workDir != "" {
		parts = append(parts, "cd "+util.ShellQuotePreserveTilde(workDir))
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var prefix strings.Builder
	for _, k := range keys {
		prefix.WriteString("export " + k + "=" + util.ShellQuote(env[k]) + "; ")
	}

	if cmd != "" {
		parts = append(parts, prefix.String()+cmd)
	} else if prefix.Len() > 0 {
		parts = append(parts, strings.TrimSuffix(prefix.String(), " "))
	}
	return strings.Join(parts, " && ")
}
