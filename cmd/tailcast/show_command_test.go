package main

import (
	"path/filepath"
	"testing"

	"tailcast/internal/testsupport"
)

func TestShowPrintsLastLines(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithWatchContent("one\ntwo\n\nthree\nfour\n"))

	out, _, err := runCLI(t, []string{"show", "-n", "3"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if out != "\nthree\nfour\n" {
		t.Fatalf("unexpected output %q", out)
	}

	out, _, err = runCLI(t, []string{"show", "-n", "0"}, env.configPath)
	if err != nil || out != "" {
		t.Fatalf("show -n 0 = %q, %v", out, err)
	}
}

func TestShowAcceptsExplicitFile(t *testing.T) {
	env := setupCLITestEnv(t)
	other := filepath.Join(testsupport.BaseDir(env.cfg), "other.log")
	testsupport.WriteFile(t, other, "a\nb")

	out, _, err := runCLI(t, []string{"show", "-n", "1", other}, env.configPath)
	if err != nil {
		t.Fatalf("show file: %v", err)
	}
	if out != "b\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestShowMissingFileFails(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"show"}, env.configPath); err == nil {
		t.Fatal("expected error for a file that does not exist")
	}
	if _, _, err := runCLI(t, []string{"show", "-n", "-1"}, env.configPath); err == nil {
		t.Fatal("expected error for a negative line count")
	}
}
