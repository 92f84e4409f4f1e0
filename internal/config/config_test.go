package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fullYAML = `
storage:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  database: adjutant
  user: adjutant
  password: hunter2

llm:
  model: claude-sonnet-4-20250514
  max_tokens: 2048
  timeout_sec: 60

security:
  level: strict
  rate_limit_requests: 10
  rate_limit_window_sec: 30
  rate_limit_block_sec: 120

confirm:
  timeout_sec: 600
  sweep_cron: "*/2 * * * *"

conversation:
  idle_timeout_sec: 900
  max_history: 10

audit:
  retention_days: 30
  log_content: true

bot:
  platform: slack
  mode: multi_agent
  streaming: true
  step_budget: 8
  channel: C012345
  authorized_users: ["U111", "U222"]
  slack:
    app_token: xapp-test
    bot_token: xoxb-test

api:
  enabled: true
  addr: 0.0.0.0:9000

github:
  owner: nvasko
  repos: ["adjutant", "dotfiles"]
`

const minimalYAML = `
bot:
  platform: discord
  discord:
    bot_token: token
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Storage.Driver != "mysql" {
		t.Errorf("Storage.Driver = %q, want mysql", cfg.Storage.Driver)
	}
	if cfg.Storage.Port != 3307 {
		t.Errorf("Storage.Port = %d, want 3307", cfg.Storage.Port)
	}
	if cfg.Security.Level != "strict" {
		t.Errorf("Security.Level = %q, want strict", cfg.Security.Level)
	}
	if cfg.Security.RateLimitRequests != 10 {
		t.Errorf("RateLimitRequests = %d, want 10", cfg.Security.RateLimitRequests)
	}
	if cfg.Confirm.TimeoutSec != 600 {
		t.Errorf("Confirm.TimeoutSec = %d, want 600", cfg.Confirm.TimeoutSec)
	}
	if cfg.Bot.Mode != "multi_agent" {
		t.Errorf("Bot.Mode = %q, want multi_agent", cfg.Bot.Mode)
	}
	if !cfg.Bot.Streaming {
		t.Error("Bot.Streaming = false, want true")
	}
	if cfg.Bot.StepBudget != 8 {
		t.Errorf("Bot.StepBudget = %d, want 8", cfg.Bot.StepBudget)
	}
	if len(cfg.Bot.AuthorizedUsers) != 2 {
		t.Errorf("AuthorizedUsers = %v, want 2 entries", cfg.Bot.AuthorizedUsers)
	}
	if cfg.GitHub.Owner != "nvasko" {
		t.Errorf("GitHub.Owner = %q, want nvasko", cfg.GitHub.Owner)
	}
}

func TestParse_MinimalDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("Storage.Driver = %q, want sqlite default", cfg.Storage.Driver)
	}
	if cfg.Storage.Path != "adjutant.db" {
		t.Errorf("Storage.Path = %q, want adjutant.db", cfg.Storage.Path)
	}
	if cfg.Security.Level != "moderate" {
		t.Errorf("Security.Level = %q, want moderate default", cfg.Security.Level)
	}
	if cfg.Security.RateLimitRequests != 30 {
		t.Errorf("RateLimitRequests = %d, want 30 default", cfg.Security.RateLimitRequests)
	}
	if cfg.Security.RateLimitBlockSec != 300 {
		t.Errorf("RateLimitBlockSec = %d, want 300 default", cfg.Security.RateLimitBlockSec)
	}
	if cfg.Confirm.TimeoutSec != 300 {
		t.Errorf("Confirm.TimeoutSec = %d, want 300 default", cfg.Confirm.TimeoutSec)
	}
	if cfg.Conversation.IdleTimeoutSec != 1800 {
		t.Errorf("IdleTimeoutSec = %d, want 1800 default", cfg.Conversation.IdleTimeoutSec)
	}
	if cfg.Conversation.MaxHistory != 20 {
		t.Errorf("MaxHistory = %d, want 20 default", cfg.Conversation.MaxHistory)
	}
	if cfg.Bot.Mode != "agent" {
		t.Errorf("Bot.Mode = %q, want agent default", cfg.Bot.Mode)
	}
	if cfg.Bot.StepBudget != 6 {
		t.Errorf("Bot.StepBudget = %d, want 6 default", cfg.Bot.StepBudget)
	}
	if cfg.LLM.Model == "" {
		t.Error("LLM.Model default not applied")
	}
	if cfg.Audit.RetentionDays != 90 {
		t.Errorf("RetentionDays = %d, want 90 default", cfg.Audit.RetentionDays)
	}
	if cfg.Audit.LogContent {
		t.Error("Audit.LogContent = true, want false default")
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("storage: [not a map"))
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "bad driver",
			yaml: "storage:\n  driver: postgres\n",
			want: "storage.driver",
		},
		{
			name: "mysql without database",
			yaml: "storage:\n  driver: mysql\n",
			want: "storage.database",
		},
		{
			name: "bad security level",
			yaml: "security:\n  level: paranoid\n",
			want: "security.level",
		},
		{
			name: "bad mode",
			yaml: "bot:\n  mode: swarm\n",
			want: "bot.mode",
		},
		{
			name: "bad platform",
			yaml: "bot:\n  platform: irc\n",
			want: "bot.platform",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adjutant.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bot.Platform != "discord" {
		t.Errorf("Bot.Platform = %q, want discord", cfg.Bot.Platform)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
