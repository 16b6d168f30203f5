package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"tailcast/internal/testsupport"
)

func TestFollowPrintsCatchUpAndAppendedLines(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithWatchContent("boot\n"), testsupport.WithToken("tok"))
	env.startDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stdout := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		_, _, err := runCLIContext(ctx, []string{"follow"}, env.configPath, stdout, &syncBuffer{})
		done <- err
	}()

	waitForOutput(t, stdout, "boot\n")
	// Wait for registration before appending so the line arrives as a broadcast.
	deadline := time.Now().Add(3 * time.Second)
	for env.daemon.Status().Engine.Subscribers == 0 {
		if time.Now().After(deadline) {
			t.Fatal("follower never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	testsupport.AppendFile(t, env.cfg.Watch.Path, "ready\n")
	waitForOutput(t, stdout, "boot\nready\n")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("follow returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("follow did not return after cancellation")
	}
}

func TestFollowWithoutDaemonFails(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Server.Bind = "127.0.0.1:1"
	writeTestConfig(t, env.configPath, env.cfg)

	_, _, err := runCLI(t, []string{"follow"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "tailcast start") {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func waitForOutput(t *testing.T, buf *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if buf.String() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected output %q, got %q", want, buf.String())
}
