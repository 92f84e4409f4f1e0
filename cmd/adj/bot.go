package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvasko/adjutant/internal/agent"
	"github.com/nvasko/adjutant/internal/audit"
	"github.com/nvasko/adjutant/internal/bot"
	discordadapter "github.com/nvasko/adjutant/internal/bot/discord"
	slackadapter "github.com/nvasko/adjutant/internal/bot/slack"
	"github.com/nvasko/adjutant/internal/config"
	"github.com/nvasko/adjutant/internal/confirm"
	"github.com/nvasko/adjutant/internal/conversation"
	"github.com/nvasko/adjutant/internal/db"
	"github.com/nvasko/adjutant/internal/llm"
	"github.com/nvasko/adjutant/internal/security"
	"github.com/nvasko/adjutant/internal/tools"
)

func newBotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Manage the chat assistant",
		Long:  "The bot connects Adjutant's agent to a chat platform (Slack, Discord).",
	}

	cmd.AddCommand(newBotStartCmd())
	return cmd
}

func newBotStartCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the assistant daemon",
		Long:  "Connects to the configured chat platform and answers messages with the agent.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBotStart(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "adjutant.yaml", "path to Adjutant config file")
	return cmd
}

func runBotStart(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Bot.Platform == "" {
		return fmt.Errorf("bot: no platform configured in %s (add bot.platform)", configPath)
	}
	apiKey := cfg.APIKey()
	if apiKey == "" {
		return fmt.Errorf("bot: %s is not set", cfg.LLM.APIKeyEnv)
	}

	gormDB, err := db.Connect(cfg.Storage)
	if err != nil {
		return err
	}

	auditLog, err := audit.NewLogger(audit.LoggerOpts{
		DB:            gormDB,
		LogContent:    cfg.Audit.LogContent,
		RetentionDays: cfg.Audit.RetentionDays,
	})
	if err != nil {
		return err
	}

	gate, err := security.NewGate(security.GateOpts{
		Level:             cfg.Security.Level,
		RateLimitRequests: cfg.Security.RateLimitRequests,
		RateLimitWindow:   time.Duration(cfg.Security.RateLimitWindowSec) * time.Second,
		RateLimitBlock:    time.Duration(cfg.Security.RateLimitBlockSec) * time.Second,
		MaxInputLength:    cfg.Security.MaxInputLength,
		Audit:             auditLog,
	})
	if err != nil {
		return err
	}

	confirms, err := confirm.NewStore(confirm.StoreOpts{
		DB:      gormDB,
		Timeout: time.Duration(cfg.Confirm.TimeoutSec) * time.Second,
	})
	if err != nil {
		return err
	}

	convs, err := conversation.NewStore(conversation.StoreOpts{
		DB:          gormDB,
		IdleTimeout: time.Duration(cfg.Conversation.IdleTimeoutSec) * time.Second,
		MaxHistory:  cfg.Conversation.MaxHistory,
	})
	if err != nil {
		return err
	}

	client, err := llm.NewAnthropic(llm.AnthropicOpts{
		APIKey:    apiKey,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, err := tools.NewRegistry(tools.Catalog())
	if err != nil {
		return err
	}
	mux, err := tools.NewMux(registry)
	if err != nil {
		return err
	}
	if err := tools.RegisterSearch(mux, gormDB); err != nil {
		return err
	}
	if token := cfg.GitHubToken(); token != "" && cfg.GitHub.Owner != "" {
		if _, err := tools.NewGitHub(ctx, mux, tools.GitHubOpts{
			Token: token,
			Owner: cfg.GitHub.Owner,
			Repos: cfg.GitHub.Repos,
		}); err != nil {
			return err
		}
		fmt.Fprintf(out, "GitHub tools enabled for %s\n", cfg.GitHub.Owner)
	}

	assistant, err := buildAssistant(cfg, client, registry, mux, convs, confirms, auditLog)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Assistant mode: %s\n", cfg.Bot.Mode)

	adapter, err := createAdapter(cfg)
	if err != nil {
		return err
	}

	var briefing *bot.Briefing
	if cfg.Bot.BriefingCron != "" {
		if briefing, err = bot.NewBriefing(mux); err != nil {
			return err
		}
		fmt.Fprintf(out, "Daily briefing scheduled (%s)\n", cfg.Bot.BriefingCron)
	}

	daemon, err := bot.NewDaemon(bot.DaemonOpts{
		Adapter:       adapter,
		Assistant:     assistant,
		Gate:          gate,
		Confirmations: confirms,
		Audit:         auditLog,
		Authorized:    cfg.Bot.AuthorizedUsers,
		Streaming:     cfg.Bot.Streaming,
		SweepCron:     cfg.Confirm.SweepCron,
		PruneCron:     cfg.Audit.PruneCron,
		Briefing:      briefing,
		BriefingCron:  cfg.Bot.BriefingCron,
		Out:           out,
	})
	if err != nil {
		return err
	}

	// Handle OS signals for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return daemon.Run(ctx)
}

// specialistTools maps each routing domain to its tool subset.
var specialistTools = map[agent.Domain][]string{
	agent.DomainCalendar: tools.CalendarTools,
	agent.DomainEmail:    tools.EmailTools,
	agent.DomainGitHub:   tools.GitHubTools,
	agent.DomainResearch: tools.ResearchTools,
}

// buildAssistant constructs the single-agent executor or the multi-agent
// orchestrator depending on bot.mode.
func buildAssistant(cfg *config.Config, client llm.Client, registry *tools.Registry, mux *tools.Mux, convs *conversation.Store, confirms *confirm.Store, auditLog *audit.Logger) (bot.Assistant, error) {
	now := time.Now()

	if cfg.Bot.Mode == "agent" {
		return agent.NewExecutor(agent.ExecutorOpts{
			LLM:           client,
			Registry:      registry,
			Runner:        mux,
			Conversations: convs,
			Confirmations: confirms,
			Audit:         auditLog,
			System:        agent.SystemPrompt(now),
			StepBudget:    cfg.Bot.StepBudget,
		})
	}

	chatRegistry, err := tools.NewRegistry(nil)
	if err != nil {
		return nil, err
	}
	chat, err := agent.NewExecutor(agent.ExecutorOpts{
		LLM:           client,
		Registry:      chatRegistry,
		Conversations: convs,
		Confirmations: confirms,
		Audit:         auditLog,
		System:        agent.ChatSystemPrompt(now),
	})
	if err != nil {
		return nil, err
	}

	specialists := make(map[agent.Domain]*agent.Executor, len(specialistTools))
	for domain, names := range specialistTools {
		subset, err := registry.Subset(names...)
		if err != nil {
			return nil, err
		}
		spec, err := agent.NewExecutor(agent.ExecutorOpts{
			LLM:           client,
			Registry:      subset,
			Runner:        mux,
			Conversations: convs,
			Confirmations: confirms,
			Audit:         auditLog,
			System:        agent.DomainSystemPrompt(domain, now),
			StepBudget:    cfg.Bot.StepBudget,
		})
		if err != nil {
			return nil, err
		}
		specialists[domain] = spec
	}

	return agent.NewOrchestrator(agent.OrchestratorOpts{
		Chat:          chat,
		Specialists:   specialists,
		LLM:           client,
		Conversations: convs,
		Audit:         auditLog,
	})
}

// createAdapter builds a platform adapter from the config.
func createAdapter(cfg *config.Config) (bot.Adapter, error) {
	switch cfg.Bot.Platform {
	case "slack":
		return slackadapter.New(slackadapter.AdapterOpts{
			AppToken:  cfg.Bot.Slack.AppToken,
			BotToken:  cfg.Bot.Slack.BotToken,
			ChannelID: cfg.Bot.Channel,
		})
	case "discord":
		return discordadapter.New(discordadapter.AdapterOpts{
			BotToken:  cfg.Bot.Discord.BotToken,
			ChannelID: cfg.Bot.Channel,
		})
	default:
		return nil, fmt.Errorf("bot: unsupported platform %q", cfg.Bot.Platform)
	}
}
