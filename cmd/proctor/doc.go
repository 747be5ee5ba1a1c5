// Package main hosts the proctor CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the proctoring daemon, analyzes frame
// files offline, and exposes the violation state machine to operators:
// creating sessions, recording status changes and violations, suspending
// interviews, and printing the admin summary. It centralizes configuration
// resolution and logging setup so subcommands can focus on output.
//
// Keep this package lean: behaviour belongs in the internal packages and is
// only surfaced here.
package main
