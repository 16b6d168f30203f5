// Package preflight provides readiness checks for the filesystem paths
// tailcast depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before starting the engine and refuses to start
//     when a check fails.
//   - The CLI "tailcast status" command prints the same results when no daemon
//     answers, so a misconfigured path is visible without starting one.
package preflight
