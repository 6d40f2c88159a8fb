package runner

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/fleetrun/internal/errors"
)

// Mode controls pseudo-terminal allocation.
type Mode int

const (
	// ModeNonInteractive disables the pty. Safe for scripts.
	ModeNonInteractive Mode = iota

	// ModeInteractive forces a pty for commands that prompt, while output
	// is still handled by the caller.
	ModeInteractive

	// ModeLogin hands the local terminal to a remote shell. Output can't
	// be captured.
	ModeLogin
)

var modeNames = map[Mode]string{
	ModeNonInteractive: "non-interactive",
	ModeInteractive:    "interactive",
	ModeLogin:          "login",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ttyFlag is the ssh flag for the mode.
func (m Mode) ttyFlag() string {
	if m == ModeNonInteractive {
		return "-T"
	}
	return "-tt"
}

// ParseMode accepts the names printed by String, case-insensitively.
// Empty means ModeNonInteractive.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ModeNonInteractive, nil
	}
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, errors.NewUsage(fmt.Sprintf("Unknown mode %q", s),
		"Use one of: non-interactive, interactive, login")
}
