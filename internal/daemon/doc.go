// Package daemon hosts the long-running tailcast service: it holds the
// single-instance lock, runs preflight checks, and owns the tail engine and
// the HTTP server for their lifetime.
package daemon
