package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeWatch(); err != nil {
		return err
	}
	c.normalizeServer()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeWatch() error {
	c.Watch.Path = strings.TrimSpace(c.Watch.Path)
	if c.Watch.Path == "" {
		if value, ok := os.LookupEnv("TAILCAST_FILE"); ok {
			c.Watch.Path = strings.TrimSpace(value)
		}
	}
	var err error
	if c.Watch.Path, err = expandPath(c.Watch.Path); err != nil {
		return fmt.Errorf("watch.path: %w", err)
	}
	if c.Watch.DebounceMS == 0 {
		c.Watch.DebounceMS = defaultDebounceMS
	}
	if c.Watch.ChunkSize == 0 {
		c.Watch.ChunkSize = defaultChunkSize
	}
	c.Watch.TruncatePolicy = strings.ToLower(strings.TrimSpace(c.Watch.TruncatePolicy))
	if c.Watch.TruncatePolicy == "" {
		c.Watch.TruncatePolicy = defaultTruncatePolicy
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		if value, ok := os.LookupEnv("TAILCAST_BIND"); ok {
			c.Server.Bind = strings.TrimSpace(value)
		}
	}
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.Server.Token = strings.TrimSpace(c.Server.Token)
	if c.Server.Token == "" {
		if value, ok := os.LookupEnv("TAILCAST_TOKEN"); ok {
			c.Server.Token = strings.TrimSpace(value)
		}
	}
	if c.Server.SendBuffer == 0 {
		c.Server.SendBuffer = defaultSendBuffer
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = defaultWriteTimeoutSeconds
	}
	if c.Server.PingIntervalSeconds == 0 {
		c.Server.PingIntervalSeconds = defaultPingIntervalSeconds
	}
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	var err error
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
