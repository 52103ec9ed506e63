package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), app+" version: ") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestMigrateRejectsUnknownAction(t *testing.T) {
	rootCmd.SetArgs([]string{"migrate", "sideways"})
	defer rootCmd.SetArgs(nil)
	var errOut bytes.Buffer
	rootCmd.SetErr(&errOut)

	if err := rootCmd.Execute(); err == nil {
		t.Fatalf("expected invalid argument error")
	}
}

func TestMigrateRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ENV", "dev")
	t.Chdir(t.TempDir())
	rootCmd.SetArgs([]string{"migrate", "version"})
	defer rootCmd.SetArgs(nil)
	var errOut bytes.Buffer
	rootCmd.SetErr(&errOut)

	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}

func TestWorkerRequiresQueue(t *testing.T) {
	t.Setenv("SUBMISSIONS_SQS_QUEUE_URL", "")
	t.Chdir(t.TempDir())
	rootCmd.SetArgs([]string{"worker"})
	defer rootCmd.SetArgs(nil)
	var errOut bytes.Buffer
	rootCmd.SetErr(&errOut)

	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "SUBMISSIONS_SQS_QUEUE_URL") {
		t.Fatalf("expected queue url error, got %v", err)
	}
}
