package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"tailcast/internal/daemon"
	"tailcast/internal/testsupport"
)

func TestStatusWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithWatchContent("x\n"))
	env.cfg.Server.Bind = "127.0.0.1:1"
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "Watched directory")
	if strings.Contains(out, "Subscribers") {
		t.Fatalf("engine table must be omitted when offline: %q", out)
	}
}

func TestStatusWithRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithWatchContent("hello\n"), testsupport.WithToken("secret"))
	env.startDaemon(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running at "+env.daemon.Addr())
	requireContains(t, out, "Subscribers")
	requireContains(t, out, env.cfg.Watch.Path)
	requireContains(t, out, "hold")
}

func TestStopWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"stop"}, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestStartRequiresWatchPath(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Watch.Path = ""
	if err := os.WriteFile(env.configPath, []byte("[paths]\nstate_dir = \""+env.cfg.Paths.StateDir+"\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, err := runCLI(t, []string{"start"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "watch.path is required") {
		t.Fatalf("expected watch path error, got %v", err)
	}
}

func TestServeRunsUntilCancelled(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithWatchContent(""))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, _, err := runCLIContext(ctx, []string{"serve", "--log-level", "warn"}, env.configPath, &syncBuffer{}, &syncBuffer{})
		done <- err
	}()

	pidPath := daemon.PIDPath(env.cfg.Paths.StateDir)
	deadline := time.Now().Add(3 * time.Second)
	for {
		if _, err := os.Stat(pidPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("serve never wrote its pid file")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
	if _, err := os.Stat(pidPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected pid file removed, got %v", err)
	}
}
