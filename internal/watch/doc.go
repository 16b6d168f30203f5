// Package watch detects append-only growth of a single file.
//
// A Watcher turns fsnotify events into raw notifications. A Detector coalesces
// those notifications with a single-slot debounce timer and, once a burst
// settles, runs exactly one size check that reads the appended delta and
// advances the shared Offset.
package watch
