// Package config provides YAML-based configuration loading for Adjutant.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Adjutant configuration, loaded from adjutant.yaml.
type Config struct {
	Storage      StorageConfig      `yaml:"storage"`
	LLM          LLMConfig          `yaml:"llm"`
	Security     SecurityConfig     `yaml:"security"`
	Confirm      ConfirmConfig      `yaml:"confirm"`
	Conversation ConversationConfig `yaml:"conversation"`
	Audit        AuditConfig        `yaml:"audit"`
	Bot          BotConfig          `yaml:"bot"`
	API          APIConfig          `yaml:"api"`
	GitHub       GitHubConfig       `yaml:"github"`
}

// StorageConfig selects and configures the backing database.
type StorageConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "mysql"
	Path     string `yaml:"path"`   // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// LLMConfig holds settings for the Anthropic-backed agent model.
type LLMConfig struct {
	APIKeyEnv  string `yaml:"api_key_env"` // env var holding the API key
	Model      string `yaml:"model"`
	MaxTokens  int    `yaml:"max_tokens"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// SecurityConfig controls the inbound security gate.
type SecurityConfig struct {
	Level              string `yaml:"level"` // strict, moderate, permissive
	RateLimitRequests  int    `yaml:"rate_limit_requests"`
	RateLimitWindowSec int    `yaml:"rate_limit_window_sec"`
	RateLimitBlockSec  int    `yaml:"rate_limit_block_sec"`
	MaxInputLength     int    `yaml:"max_input_length"`
}

// ConfirmConfig controls the pending-action confirmation store.
type ConfirmConfig struct {
	TimeoutSec int    `yaml:"timeout_sec"`
	SweepCron  string `yaml:"sweep_cron"` // 5-field cron for the expiry sweep
}

// ConversationConfig controls conversation persistence and resumption.
type ConversationConfig struct {
	IdleTimeoutSec int `yaml:"idle_timeout_sec"`
	MaxHistory     int `yaml:"max_history"`
}

// AuditConfig controls the audit trail.
type AuditConfig struct {
	RetentionDays int    `yaml:"retention_days"`
	LogContent    bool   `yaml:"log_content"` // false stores content hashes instead of raw text
	PruneCron     string `yaml:"prune_cron"`
}

// BotConfig configures the chat front end.
type BotConfig struct {
	Platform        string        `yaml:"platform"` // "slack" or "discord"
	Mode            string        `yaml:"mode"`     // "agent" or "multi_agent"
	Streaming       bool          `yaml:"streaming"`
	StepBudget      int           `yaml:"step_budget"`
	Channel         string        `yaml:"channel"`
	BriefingCron    string        `yaml:"briefing_cron"`    // 5-field cron for the daily briefing; empty disables it
	AuthorizedUsers []string      `yaml:"authorized_users"` // empty = anyone
	Slack           SlackConfig   `yaml:"slack"`
	Discord         DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack Socket Mode credentials.
type SlackConfig struct {
	AppToken string `yaml:"app_token"`
	BotToken string `yaml:"bot_token"`
}

// DiscordConfig holds the Discord bot token.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
}

// APIConfig configures the read-only HTTP API.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// GitHubConfig configures the GitHub tool runner.
type GitHubConfig struct {
	TokenEnv string   `yaml:"token_env"`
	Owner    string   `yaml:"owner"`
	Repos    []string `yaml:"repos"` // repos listed/searched by default
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "adjutant.db"
	}
	if c.Storage.Host == "" {
		c.Storage.Host = "127.0.0.1"
	}
	if c.Storage.Port == 0 {
		c.Storage.Port = 3306
	}
	if c.Storage.User == "" {
		c.Storage.User = "root"
	}
	if c.LLM.APIKeyEnv == "" {
		c.LLM.APIKeyEnv = "ANTHROPIC_API_KEY"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "claude-sonnet-4-20250514"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 4096
	}
	if c.LLM.TimeoutSec == 0 {
		c.LLM.TimeoutSec = 120
	}
	if c.Security.Level == "" {
		c.Security.Level = "moderate"
	}
	if c.Security.RateLimitRequests == 0 {
		c.Security.RateLimitRequests = 30
	}
	if c.Security.RateLimitWindowSec == 0 {
		c.Security.RateLimitWindowSec = 60
	}
	if c.Security.RateLimitBlockSec == 0 {
		c.Security.RateLimitBlockSec = 300
	}
	if c.Security.MaxInputLength == 0 {
		c.Security.MaxInputLength = 10000
	}
	if c.Confirm.TimeoutSec == 0 {
		c.Confirm.TimeoutSec = 300
	}
	if c.Confirm.SweepCron == "" {
		c.Confirm.SweepCron = "* * * * *"
	}
	if c.Conversation.IdleTimeoutSec == 0 {
		c.Conversation.IdleTimeoutSec = 30 * 60
	}
	if c.Conversation.MaxHistory == 0 {
		c.Conversation.MaxHistory = 20
	}
	if c.Audit.RetentionDays == 0 {
		c.Audit.RetentionDays = 90
	}
	if c.Audit.PruneCron == "" {
		c.Audit.PruneCron = "0 4 * * *"
	}
	if c.Bot.Mode == "" {
		c.Bot.Mode = "agent"
	}
	if c.Bot.StepBudget == 0 {
		c.Bot.StepBudget = 6
	}
	if c.API.Addr == "" {
		c.API.Addr = "127.0.0.1:8787"
	}
	if c.GitHub.TokenEnv == "" {
		c.GitHub.TokenEnv = "GITHUB_TOKEN"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Storage.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("storage.driver %q is not supported (sqlite, mysql)", c.Storage.Driver))
	}
	if c.Storage.Driver == "mysql" && c.Storage.Database == "" {
		errs = append(errs, "storage.database is required for mysql")
	}
	switch c.Security.Level {
	case "strict", "moderate", "permissive":
	default:
		errs = append(errs, fmt.Sprintf("security.level %q is not supported (strict, moderate, permissive)", c.Security.Level))
	}
	switch c.Bot.Mode {
	case "agent", "multi_agent":
	default:
		errs = append(errs, fmt.Sprintf("bot.mode %q is not supported (agent, multi_agent)", c.Bot.Mode))
	}
	if c.Bot.Platform != "" && c.Bot.Platform != "slack" && c.Bot.Platform != "discord" {
		errs = append(errs, fmt.Sprintf("bot.platform %q is not supported (slack, discord)", c.Bot.Platform))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// APIKey resolves the Anthropic API key from the configured env var.
func (c *Config) APIKey() string {
	return os.Getenv(c.LLM.APIKeyEnv)
}

// GitHubToken resolves the GitHub token from the configured env var.
func (c *Config) GitHubToken() string {
	return os.Getenv(c.GitHub.TokenEnv)
}
