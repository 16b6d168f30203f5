package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"tailcast/internal/config"
	"tailcast/internal/daemon"
	"tailcast/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	daemon     *daemon.Daemon
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	homeDir := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("TAILCAST_FILE", "")
	t.Setenv("TAILCAST_BIND", "")
	t.Setenv("TAILCAST_TOKEN", "")

	configPath := filepath.Join(homeDir, ".config", "tailcast", "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

// startDaemon runs an in-process daemon and rewrites the config with its
// bound address so client commands can reach it.
func (e *cliTestEnv) startDaemon(t *testing.T) {
	t.Helper()

	d, err := daemon.New(e.cfg, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
		cancel()
	})
	e.daemon = d
	e.cfg.Server.Bind = d.Addr()
	writeTestConfig(t, e.configPath, e.cfg)
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[watch]\npath = %q\ndebounce_ms = %d\n\n[server]\nbind = %q\ntoken = %q\n\n[paths]\nstate_dir = %q\n",
		cfg.Watch.Path,
		cfg.Watch.DebounceMS,
		cfg.Server.Bind,
		cfg.Server.Token,
		cfg.Paths.StateDir,
	)
	testsupport.WriteFile(t, path, content)
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	return runCLIContext(context.Background(), args, configPath, &bytes.Buffer{}, &bytes.Buffer{})
}

func runCLIContext(ctx context.Context, args []string, configPath string, stdout, stderr interface {
	Write([]byte) (int, error)
	String() string
}) (string, string, error) {
	cmd := newRootCommand()
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

// syncBuffer is a bytes.Buffer safe for a writer and a concurrent poller.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
