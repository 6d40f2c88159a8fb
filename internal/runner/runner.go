// Package runner executes commands and file transfers on one remote node
// through the OpenSSH client, and builds runner sets for whole fleets.
package runner

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rileyhilliard/fleetrun/internal/errors"
	"github.com/rileyhilliard/fleetrun/internal/exec"
	"github.com/rileyhilliard/fleetrun/internal/logger"
	fsync "github.com/rileyhilliard/fleetrun/internal/sync"
	"github.com/rileyhilliard/fleetrun/pkg/sshutil"
)

// Identity is everything needed to reach one node.
type Identity struct {
	Address string
	User    string

	// PrivateKey is checked for existence on each call, not at construction.
	PrivateKey string

	// Port defaults to 22.
	Port int

	// ControlName turns on connection multiplexing. It's hashed before use,
	// so any string works.
	ControlName string

	ProxyCommand string

	// ConnectTimeout defaults to sshutil.DefaultConnectTimeout.
	ConnectTimeout time.Duration
}

// Runner talks to one node. It holds no connection state of its own and is
// safe for concurrent use.
type Runner struct {
	id          Identity
	controlName string

	registry  *sshutil.ControlRegistry
	executor  exec.Executor
	syncer    fsync.Syncer
	log       logger.Logger
	sshBinary string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithExecutor replaces the process executor.
func WithExecutor(e exec.Executor) Option {
	return func(r *Runner) { r.executor = e }
}

// WithSyncer replaces the rsync engine.
func WithSyncer(s fsync.Syncer) Option {
	return func(r *Runner) { r.syncer = s }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithControlRegistry sets where control sockets live.
func WithControlRegistry(reg *sshutil.ControlRegistry) Option {
	return func(r *Runner) { r.registry = reg }
}

// WithSSHBinary overrides the ssh client binary.
func WithSSHBinary(path string) Option {
	return func(r *Runner) { r.sshBinary = path }
}

// New validates id and returns a Runner. Nothing touches the network.
func New(id Identity, opts ...Option) (*Runner, error) {
	if id.Address == "" {
		return nil, errors.NewUsage("Runner needs a host address",
			"Set address for every host in .fleetrun.yaml.")
	}
	if id.Port < 0 {
		return nil, errors.NewUsage(fmt.Sprintf("Invalid port %d for %s", id.Port, id.Address),
			"Ports must be positive; leave it out for the default of 22.")
	}
	if id.Port == 0 {
		id.Port = sshutil.DefaultPort
	}
	if id.ConnectTimeout <= 0 {
		id.ConnectTimeout = sshutil.DefaultConnectTimeout
	}

	r := &Runner{
		id:          id,
		controlName: sshutil.HashControlName(id.ControlName),
		sshBinary:   "ssh",
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.log == nil {
		r.log = logger.Default()
	}
	if r.registry == nil {
		r.registry = sshutil.DefaultControlRegistry()
	}
	if r.executor == nil {
		r.executor = exec.NewLocal(r.log)
	}
	if r.syncer == nil {
		r.syncer = fsync.NewEngine(r.executor, r.log)
	}
	return r, nil
}

// Identity returns the node identity with defaults applied.
func (r *Runner) Identity() Identity {
	return r.id
}

// Address returns the node's host address.
func (r *Runner) Address() string {
	return r.id.Address
}

// Port returns the ssh port.
func (r *Runner) Port() int {
	return r.id.Port
}

// ControlName returns the hashed control name, or "" without multiplexing.
func (r *Runner) ControlName() string {
	return r.controlName
}

// Target renders user@address, or just the address without a user.
func (r *Runner) Target() string {
	if r.id.User == "" {
		return r.id.Address
	}
	return r.id.User + "@" + r.id.Address
}

// String is used in logs and error messages.
func (r *Runner) String() string {
	if r.id.Port == sshutil.DefaultPort {
		return r.Target()
	}
	return r.Target() + ":" + strconv.Itoa(r.id.Port)
}

// SSHOptions returns the connection flags shared by ssh and rsync.
func (r *Runner) SSHOptions() []string {
	return sshutil.Options(sshutil.OptionsConfig{
		PrivateKey:   r.id.PrivateKey,
		ControlName:  r.controlName,
		ControlRoot:  r.registry.Root(),
		ProxyCommand: r.id.ProxyCommand,
		Port:         r.id.Port,
		Timeout:      r.id.ConnectTimeout,
	})
}

// prepare runs the lazy checks every call needs before spawning anything.
func (r *Runner) prepare() error {
	if r.id.PrivateKey != "" {
		if err := sshutil.RequireKeyFile(r.id.PrivateKey); err != nil {
			return err
		}
	}
	if r.controlName != "" {
		_, err := r.registry.Ensure(sshutil.ControlKey{
			User: r.id.User,
			Host: r.id.Address,
			Port: r.id.Port,
			Name: r.controlName,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
