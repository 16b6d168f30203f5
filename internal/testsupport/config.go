package testsupport

import (
	"path/filepath"
	"testing"

	"tailcast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The watched file lives under <base>/logs/app.log and is not created; the
// server binds an ephemeral port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Watch.Path = filepath.Join(base, "logs", "app.log")
	cfgVal.Watch.DebounceMS = 30
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Server.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithWatchContent creates the watched file with the given content.
func WithWatchContent(content string) ConfigOption {
	return func(b *configBuilder) {
		WriteFile(b.t, b.cfg.Watch.Path, content)
	}
}

// WithToken sets the server bearer token.
func WithToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.Token = token
	}
}

// WithCatchupLines overrides the catch-up batch size.
func WithCatchupLines(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Watch.CatchupLines = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
