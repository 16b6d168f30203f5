// Package tail reads lines from the end of append-only text files.
//
// LastLines reconstructs the final N lines by reading fixed-size chunks
// backward from the end of the file, so catch-up cost depends on N and line
// length rather than file size. NewLines extracts the complete lines appended
// after a byte offset and reports where the next read should start.
//
// Both operations are stateless: every call opens and closes its own handle
// through an afero filesystem, which lets catch-up reads run concurrently with
// the follow loop and lets tests use an in-memory filesystem.
package tail
