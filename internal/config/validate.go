package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable. The watched path is optional
// here because client commands never read it; daemon entrypoints call
// RequireWatchPath as well.
func (c *Config) Validate() error {
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// RequireWatchPath reports a descriptive error when no file is configured.
func (c *Config) RequireWatchPath() error {
	if strings.TrimSpace(c.Watch.Path) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/tailcast/config.toml"
	}
	return fmt.Errorf("watch.path is required. Set TAILCAST_FILE env var or edit %s (create with 'tailcast config init')", defaultPath)
}

func (c *Config) validateWatch() error {
	if err := ensurePositive(
		namedValue{"watch.debounce_ms", c.Watch.DebounceMS},
		namedValue{"watch.chunk_size", c.Watch.ChunkSize},
	); err != nil {
		return err
	}
	if c.Watch.CatchupLines < 0 {
		return fmt.Errorf("watch.catchup_lines must not be negative")
	}
	switch c.Watch.TruncatePolicy {
	case "hold", "reset":
	default:
		return fmt.Errorf("watch.truncate_policy must be hold or reset, got %q", c.Watch.TruncatePolicy)
	}
	if c.Watch.Path != "" && c.Paths.StateDir != "" {
		if filepath.Clean(c.Watch.Path) == filepath.Clean(c.DaemonLogPath()) {
			return errors.New("watch.path must not be the daemon log file in paths.state_dir")
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind must be host:port: %w", err)
	}
	return ensurePositive(
		namedValue{"server.send_buffer", c.Server.SendBuffer},
		namedValue{"server.write_timeout_seconds", c.Server.WriteTimeoutSeconds},
		namedValue{"server.ping_interval_seconds", c.Server.PingIntervalSeconds},
	)
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format must be console, json, or auto, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

type namedValue struct {
	key   string
	value int
}

func ensurePositive(values ...namedValue) error {
	for _, v := range values {
		if v.value <= 0 {
			return fmt.Errorf("%s must be positive", v.key)
		}
	}
	return nil
}
