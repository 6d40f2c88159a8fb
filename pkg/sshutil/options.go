// Package sshutil builds the OpenSSH client flags shared by every ssh and
// rsync invocation against a host, and tracks the control sockets used for
// connection multiplexing.
package sshutil

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rileyhilliard/fleetrun/internal/util"
)

const (
	// DefaultPort is used when an identity doesn't name one.
	DefaultPort = 22

	// DefaultConnectTimeout bounds transport establishment. Nothing bounds
	// a command once the connection is up.
	DefaultConnectTimeout = 30 * time.Second

	// controlPersist keeps an idle control master alive between calls.
	controlPersist = "300s"

	// controlNameLength is the number of hex chars kept from the hashed
	// control name. Unix socket paths are limited to ~104 bytes and %C
	// already expands to 40.
	controlNameLength = 10
)

// OptionsConfig holds everything that influences the flag list.
type OptionsConfig struct {
	// PrivateKey is passed with -i when non-empty.
	PrivateKey string

	// ControlName enables multiplexing when non-empty. It should already be
	// hashed with HashControlName.
	ControlName string

	// ControlRoot is the directory holding per-name socket directories.
	// Defaults to DefaultControlRoot().
	ControlRoot string

	// ProxyCommand is passed through as -o ProxyCommand=... when non-empty.
	ProxyCommand string

	// Port is emitted as -o Port=N when positive.
	Port int

	// Timeout is the connect timeout. Zero means DefaultConnectTimeout.
	Timeout time.Duration
}

// Options returns the ordered ssh flags for cfg. The same cfg always yields
// the same slice, which is what lets rsync's -e string embed it verbatim.
func Options(cfg OptionsConfig) []string {
	var opts []string

	if cfg.PrivateKey != "" {
		opts = append(opts, "-i", cfg.PrivateKey)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	var pairs [][2]string
	if cfg.Port > 0 {
		pairs = append(pairs, [2]string{"Port", fmt.Sprintf("%d", cfg.Port)})
	}
	pairs = append(pairs,
		// First contact with a freshly provisioned node has no known host key.
		[2]string{"StrictHostKeyChecking", "no"},
		[2]string{"UserKnownHostsFile", os.DevNull},
		[2]string{"IdentitiesOnly", "yes"},
		[2]string{"ExitOnForwardFailure", "yes"},
		[2]string{"ServerAliveInterval", "5"},
		[2]string{"ServerAliveCountMax", "3"},
		[2]string{"ConnectTimeout", fmt.Sprintf("%ds", int(timeout.Round(time.Second)/time.Second))},
		[2]string{"ForwardAgent", "yes"},
		// Nothing can answer a password or host-key prompt.
		[2]string{"BatchMode", "yes"},
	)

	if cfg.ControlName != "" {
		root := cfg.ControlRoot
		if root == "" {
			root = DefaultControlRoot()
		}
		pairs = append(pairs,
			[2]string{"ControlMaster", "auto"},
			[2]string{"ControlPath", filepath.Join(root, cfg.ControlName, "%C")},
			[2]string{"ControlPersist", controlPersist},
		)
	}

	if cfg.ProxyCommand != "" {
		pairs = append(pairs, [2]string{"ProxyCommand", cfg.ProxyCommand})
	}

	for _, kv := range pairs {
		opts = append(opts, "-o", kv[0]+"="+kv[1])
	}
	return opts
}

// RemoteShell renders ssh plus opts as a single string for rsync's -e flag.
// Words containing spaces (a ProxyCommand, a key path) are quoted the way
// rsync's own splitter expects, so it rebuilds the same argv.
func RemoteShell(sshBinary string, opts []string) string {
	if sshBinary == "" {
		sshBinary = "ssh"
	}
	if len(opts) == 0 {
		return util.RsyncQuote(sshBinary)
	}
	return util.RsyncQuote(sshBinary) + " " + util.RsyncJoin(opts)
}

// HashControlName shortens an arbitrary control name to a fixed-length,
// filesystem-safe identifier.
func HashControlName(name string) string {
	if name == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(name))
	return fmt.Sprintf("%x", sum[:])[:controlNameLength]
}
