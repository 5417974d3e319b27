// Package daemon coordinates the long-running bundlewatch process.
//
// It wires configuration, the remote checker, the local document source, the
// prompt surfaces, the optional history store, and the control API around a
// single watcher, with flock-based locking to prevent multiple instances.
//
// Keep orchestration logic here: detection and prompting live in their own
// packages while the daemon focuses on startup, shutdown, and wiring.
package daemon
