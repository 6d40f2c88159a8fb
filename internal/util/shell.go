// Package util holds small helpers shared across fleetrun's packages.
package util

import "strings"

// ShellQuote single-quotes s for a POSIX shell.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ShellQuotePreserveTilde quotes a remote path but leaves a leading "~/"
// bare so the remote shell still expands it. "~user/" forms are quoted.
func ShellQuotePreserveTilde(path string) string {
	switch {
	case path == "~":
		return path
	case strings.HasPrefix(path, "~/"):
		return "~/" + ShellQuote(path[2:])
	default:
		return ShellQuote(path)
	}
}

// plainWord reports whether s needs no quoting for a shell or rsync.
func plainWord(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.ContainsRune("@%+=:,./-_", c):
		default:
			return false
		}
	}
	return true
}

// RsyncQuote quotes s for rsync's -e splitter. It has no backslash escapes;
// a doubled quote inside quotes stands for one literal quote.
func RsyncQuote(s string) string {
	if plainWord(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// RsyncJoin joins args into a single -e value that rsync splits back into
// the same words.
func RsyncJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = RsyncQuote(a)
	}
	return strings.Join(quoted, " ")
}
