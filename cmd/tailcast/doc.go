// Package main hosts the tailcast CLI entrypoint and command graph.
//
// The Cobra command tree runs the daemon in the foreground (serve), controls a
// detached daemon (start, stop, status), follows a running daemon over its
// WebSocket endpoint, prints the last lines of the watched file locally, and
// scaffolds configuration. Behavior lives in the internal packages; commands
// here only resolve configuration and render output.
package main
