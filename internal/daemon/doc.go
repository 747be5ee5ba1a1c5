// Package daemon coordinates the long-running proctor process.
//
// It wires configuration, the SQLite store, the analysis coordinator, the
// violation state machine, and the broadcast fan-out into a single lifecycle
// with flock-based locking to prevent multiple instances. While running it
// supervises the analysis workers and serves the admin listener (Prometheus
// metrics, health, and interview summaries).
//
// Keep orchestration logic here: analysis and policy live in their own
// packages while the daemon focuses on startup, shutdown, and wiring.
package daemon
