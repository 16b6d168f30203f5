package daemonctl

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"testing"
	"time"

	"tailcast/internal/client"
	"tailcast/internal/daemon"
	"tailcast/internal/testsupport"
)

func TestReadPID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := daemon.PIDPath(cfg.Paths.StateDir)

	if _, err := ReadPID(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	testsupport.WriteFile(t, path, "1234\n")
	pid, err := ReadPID(path)
	if err != nil || pid != 1234 {
		t.Fatalf("ReadPID = %d, %v", pid, err)
	}
	testsupport.WriteFile(t, path, "garbage")
	if _, err := ReadPID(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStopWithoutDaemonReportsNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := StopAndTerminate(cfg, 10*time.Millisecond); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestProcessInfoDetectsLiveProcess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFile(t, daemon.PIDPath(cfg.Paths.StateDir), strconv.Itoa(os.Getpid()))
	pid, alive := ProcessInfo(cfg)
	if !alive || pid != os.Getpid() {
		t.Fatalf("ProcessInfo = %d, %v", pid, alive)
	}
}

func TestStopAndTerminateSignalsProcess(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("sleep unavailable: %v", err)
	}
	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	cfg := testsupport.NewConfig(t)
	testsupport.WriteFile(t, daemon.PIDPath(cfg.Paths.StateDir), strconv.Itoa(cmd.Process.Pid))

	result, err := StopAndTerminate(cfg, 2*time.Second)
	if err != nil {
		t.Fatalf("StopAndTerminate: %v", err)
	}
	if result.PID != cmd.Process.Pid {
		t.Fatalf("unexpected pid %d", result.PID)
	}
	select {
	case <-exited:
	case <-time.After(3 * time.Second):
		t.Fatal("process did not exit")
	}
}

func TestWaitForReadyTimesOutWithoutServer(t *testing.T) {
	c, err := client.New("127.0.0.1:1", "")
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	if err := WaitForReady(context.Background(), c, 300*time.Millisecond); err == nil {
		t.Fatal("expected timeout error")
	}
}
