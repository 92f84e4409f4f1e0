package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestAPICmd_Help(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"api", "--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("api --help failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "read-only") {
		t.Errorf("expected help to mention 'read-only', got: %s", out)
	}
	if !strings.Contains(out, "start") {
		t.Errorf("expected help to list 'start' subcommand, got: %s", out)
	}
}

func TestAPIStartCmd_Help(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"api", "start", "--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("api start --help failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "--addr") {
		t.Errorf("expected help to mention '--addr' flag, got: %s", out)
	}
	if !strings.Contains(out, "adjutant.yaml") {
		t.Errorf("expected default config path 'adjutant.yaml', got: %s", out)
	}
}

func TestAPIStartCmd_MissingConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"api", "start", "--config", "/nonexistent/adjutant.yaml"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

func TestAPIStartCmd_UnsupportedDriver(t *testing.T) {
	dir := t.TempDir()
	cfgPath := dir + "/adjutant.yaml"
	if err := writeTestFile(cfgPath, "storage:\n  driver: postgres\n"); err != nil {
		t.Fatal(err)
	}

	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"api", "start", "--config", cfgPath})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "not supported") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "not supported")
	}
}
