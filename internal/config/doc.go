// Package config loads, normalizes, and validates tailcast configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TAILCAST_FILE. The Config type centralizes every knob the daemon and CLI
// need: the watched file and its reader tuning, the subscriber server, the
// state directory that holds the lock and daemon log, and log output.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
