package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nvasko/adjutant/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		outputPath string
		platform   string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long: `Writes a starter adjutant.yaml with sensible defaults.

With --platform, prompts for the platform's bot tokens. Token input is
hidden when run from a terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, outputPath, platform, force)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "adjutant.yaml", "where to write the config file")
	cmd.Flags().StringVar(&platform, "platform", "", "chat platform to configure (slack, discord)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func runConfigInit(cmd *cobra.Command, outputPath, platform string, force bool) error {
	out := cmd.OutOrStdout()

	switch platform {
	case "", "slack", "discord":
	default:
		return fmt.Errorf("config: unsupported platform %q (slack, discord)", platform)
	}

	if _, err := os.Stat(outputPath); err == nil && !force {
		return fmt.Errorf("config: %s already exists (use --force to overwrite)", outputPath)
	}

	botSection, err := renderBotSection(cmd, platform, newSecretPrompter(cmd))
	if err != nil {
		return err
	}

	data := []byte(fmt.Sprintf(starterConfig, botSection))

	// Parse what we are about to write so a broken starter never lands on disk.
	if _, err := config.Parse(data); err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, data, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", outputPath, err)
	}

	fmt.Fprintf(out, "Wrote %s\n", outputPath)
	if platform == "" {
		fmt.Fprintln(out, "No chat platform configured. Set bot.platform and its tokens before running 'adj bot start'.")
	}
	return nil
}

func renderBotSection(cmd *cobra.Command, platform string, prompt *secretPrompter) (string, error) {
	switch platform {
	case "slack":
		appToken, err := prompt.read("Slack app token (xapp-...)")
		if err != nil {
			return "", err
		}
		botToken, err := prompt.read("Slack bot token (xoxb-...)")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("  platform: slack\n  slack:\n    app_token: %q\n    bot_token: %q", appToken, botToken), nil
	case "discord":
		botToken, err := prompt.read("Discord bot token")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("  platform: discord\n  discord:\n    bot_token: %q", botToken), nil
	default:
		return "  # platform: slack", nil
	}
}

// secretPrompter reads secrets one line at a time. Input echo is disabled
// when stdin is a terminal; otherwise it falls back to plain line reads.
// A single scanner is shared across reads so buffered input is not lost
// between prompts.
type secretPrompter struct {
	out     io.Writer
	in      io.Reader
	scanner *bufio.Scanner
}

func newSecretPrompter(cmd *cobra.Command) *secretPrompter {
	return &secretPrompter{out: cmd.OutOrStdout(), in: cmd.InOrStdin()}
}

func (p *secretPrompter) read(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)

	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("config: read secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	if p.scanner == nil {
		p.scanner = bufio.NewScanner(p.in)
	}
	if p.scanner.Scan() {
		return strings.TrimSpace(p.scanner.Text()), nil
	}
	if err := p.scanner.Err(); err != nil {
		return "", fmt.Errorf("config: read secret: %w", err)
	}
	return "", fmt.Errorf("config: no input for %s", label)
}

const starterConfig = `# Adjutant configuration.

storage:
  driver: sqlite
  path: adjutant.db

llm:
  api_key_env: ANTHROPIC_API_KEY
  model: claude-sonnet-4-20250514
  max_tokens: 4096

security:
  level: moderate
  rate_limit_requests: 30
  rate_limit_window_sec: 60

confirm:
  timeout_sec: 300

conversation:
  idle_timeout_sec: 1800
  max_history: 20

audit:
  retention_days: 90
  log_content: false

bot:
  mode: agent
  streaming: false
  authorized_users: []
  # briefing_cron: "0 8 * * 1-5"
%s

api:
  enabled: false
  addr: 127.0.0.1:8787

github:
  token_env: GITHUB_TOKEN
  owner: ""
  repos: []
`
