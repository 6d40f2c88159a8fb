// Package cli implements the fleetrun command-line interface.
//
// Every command is a cobra.Command built by a constructor so tests can
// run a fresh tree. Commands load .fleetrun.yaml, pick hosts with --host
// and --tag, build a runner per host and hand the work to the runner
// directly (one host) or to the parallel orchestrator (several hosts).
//
// # Command Structure
//
//	fleetrun exec -- <command>   - Run a command on the selected hosts
//	fleetrun shell [host]        - Open a login shell on one host
//	fleetrun push <src> [dst]    - rsync local files to every host
//	fleetrun pull <src> [dst]    - rsync files back from every host
//	fleetrun doctor              - Diagnose local tools, keys and hosts
//	fleetrun clean               - Remove stale control sockets and logs
//	fleetrun init                - Create .fleetrun.yaml
//	fleetrun hosts [list|add]    - Inspect and extend the fleet
//
// # Flag Handling
//
// Global flags (--config, --verbose, --quiet, --no-color) live on the root
// command. Host selection flags are added with addHostFlags.
//
// # Exit Codes
//
// A remote command's exit code is passed through as the process exit
// code via errors.ExitError. Usage errors exit 2, everything else 1.
package cli
