package exec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rileyhilliard/fleetrun/internal/errors"
)

// Shell messages for a missing program. Only trusted alongside exit 127.
var notFoundShell = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bash: (\S+): command not found`),
	regexp.MustCompile(`(?i)zsh: command not found: (\S+)`),
	regexp.MustCompile(`(?i)sh: \d+: (\S+): not found`),
	regexp.MustCompile(`(?i)-bash: (\S+): No such file or directory`),
	regexp.MustCompile(`(?i)(\S+): not found`),
	regexp.MustCompile(`(?i)(\S+): command not found`),
}

// Messages from a wrapper (make, env shebangs, scripts) whose child program
// is missing. The wrapper picks its own exit code.
var notFoundNested = []*regexp.Regexp{
	regexp.MustCompile(`(?i)make: (\S+): No such file or directory`),
	regexp.MustCompile(`(?i)'(\S+)' is not recognized`),
	regexp.MustCompile(`(?i)/bin/sh: (\S+): not found`),
	regexp.MustCompile(`(?i)env: (\S+): No such file or directory`),
}

func firstMatch(patterns []*regexp.Regexp, s string) (string, bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(s); len(m) > 1 {
			return m[1], true
		}
	}
	return "", false
}

// IsCommandNotFound reports whether a remote command exited 127, and names
// the missing program when the shell said which one it was.
func IsCommandNotFound(stderr string, exitCode int) (string, bool) {
	if exitCode != 127 {
		return "", false
	}
	name, _ := firstMatch(notFoundShell, stderr)
	return name, true
}

// IsDependencyNotFound detects a wrapper failing because a program it runs
// is missing, whatever the exit code.
func IsDependencyNotFound(stderr string) (string, bool) {
	return firstMatch(notFoundNested, stderr)
}

// HandleExecError turns a remote command-not-found failure into an error
// with a PATH hint. It returns nil when output doesn't look like one.
// host names the node the command ran on, for the suggested commands.
func HandleExecError(host, cmd, output string, exitCode int) error {
	cmdName, notFound := IsCommandNotFound(output, exitCode)
	if !notFound {
		cmdName, notFound = IsDependencyNotFound(output)
	}
	if !notFound {
		return nil
	}

	if cmdName == "" {
		cmdName = "command"
		if parts := strings.Fields(cmd); len(parts) > 0 {
			cmdName = parts[0]
		}
	}
	if host == "" {
		host = "<host>"
	}

	suggestion := fmt.Sprintf(`Non-interactive ssh sessions skip most shell profiles, so tools
installed under ~/.local/bin, conda or nvm are often missing from PATH.

Fixes:

1. Install '%s' on %s

2. Check what a login shell sees:
   fleetrun shell %s
   which %s

3. Call it by absolute path, or export PATH in the command itself:
   fleetrun exec --host %s -- 'export PATH=$HOME/.local/bin:$PATH; %s'`,
		cmdName, host, host, cmdName, host, cmd)

	return errors.New(errors.ErrExec,
		fmt.Sprintf("'%s' not found in PATH on %s", cmdName, host),
		suggestion)
}
