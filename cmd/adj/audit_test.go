package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nvasko/adjutant/internal/audit"
	"github.com/nvasko/adjutant/internal/config"
	"github.com/nvasko/adjutant/internal/db"
	"github.com/nvasko/adjutant/internal/models"
)

func TestAuditCmd_Help(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"audit", "--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("audit --help failed: %v", err)
	}

	out := buf.String()
	for _, sub := range []string{"recent", "prune"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to list %q subcommand, got: %s", sub, out)
		}
	}
}

func TestAuditRecentCmd_MissingConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"audit", "recent", "--config", "/nonexistent/adjutant.yaml"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

// seedAudit writes entries into the sqlite database the config points at.
func seedAudit(t *testing.T, cfgPath string, entries []audit.Entry) {
	t.Helper()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	gormDB, err := db.Connect(cfg.Storage)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatal(err)
	}
	logger, err := audit.NewLogger(audit.LoggerOpts{DB: gormDB, LogContent: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		logger.Log(e)
	}
}

func TestAuditRecentCmd_Empty(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "")
	seedAudit(t, cfgPath, nil)

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"audit", "recent", "--config", cfgPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("audit recent failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No audit entries found.") {
		t.Errorf("expected empty message, got: %s", buf.String())
	}
}

func TestAuditRecentCmd_Filters(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "")
	seedAudit(t, cfgPath, []audit.Entry{
		{Kind: models.AuditMessage, UserID: "U1", Payload: "hello from u1"},
		{Kind: models.AuditMessage, UserID: "U2", Payload: "hello from u2"},
		{Kind: models.AuditSecurity, UserID: "U1", Payload: "blocked input", Blocked: true},
	})

	tests := []struct {
		name    string
		args    []string
		want    []string
		exclude []string
	}{
		{
			name: "all entries",
			args: []string{"audit", "recent", "--config", cfgPath},
			want: []string{"hello from u1", "hello from u2", "blocked input", "BLOCKED"},
		},
		{
			name:    "filter by user",
			args:    []string{"audit", "recent", "--config", cfgPath, "--user", "U2"},
			want:    []string{"hello from u2"},
			exclude: []string{"hello from u1", "blocked input"},
		},
		{
			name:    "filter by kind",
			args:    []string{"audit", "recent", "--config", cfgPath, "--kind", "security"},
			want:    []string{"blocked input"},
			exclude: []string{"hello from u1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetArgs(tt.args)

			if err := cmd.Execute(); err != nil {
				t.Fatalf("audit recent failed: %v", err)
			}
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("expected output to contain %q, got: %s", w, out)
				}
			}
			for _, e := range tt.exclude {
				if strings.Contains(out, e) {
					t.Errorf("expected output to not contain %q, got: %s", e, out)
				}
			}
		})
	}
}

func TestAuditRecentCmd_Limit(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "")
	seedAudit(t, cfgPath, []audit.Entry{
		{Kind: models.AuditMessage, UserID: "U1", Payload: "first"},
		{Kind: models.AuditMessage, UserID: "U1", Payload: "second"},
		{Kind: models.AuditMessage, UserID: "U1", Payload: "third"},
	})

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"audit", "recent", "--config", cfgPath, "--limit", "1"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("audit recent failed: %v", err)
	}

	// Newest first, so only the last seeded entry shows.
	out := buf.String()
	if !strings.Contains(out, "third") {
		t.Errorf("expected newest entry, got: %s", out)
	}
	if strings.Contains(out, "first") || strings.Contains(out, "second") {
		t.Errorf("expected older entries to be cut, got: %s", out)
	}
}

func TestAuditPruneCmd(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "")
	seedAudit(t, cfgPath, []audit.Entry{
		{Kind: models.AuditMessage, UserID: "U1", Payload: "recent entry"},
	})

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"audit", "prune", "--config", cfgPath})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("audit prune failed: %v", err)
	}

	// The only entry is inside the retention window, so nothing goes.
	if !strings.Contains(buf.String(), "Pruned 0 audit entries") {
		t.Errorf("expected prune summary, got: %s", buf.String())
	}
}
