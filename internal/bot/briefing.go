package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nvasko/adjutant/internal/tools"
)

// Briefing composes the proactive daily message from the assistant's
// read-only tools: today's calendar, active tasks, and open pull requests.
// Sections whose backing service is not wired are skipped, so a partial
// install still gets a greeting and whatever data is available.
type Briefing struct {
	runner tools.Runner
}

// NewBriefing creates a Briefing over the given tool runner.
func NewBriefing(runner tools.Runner) (*Briefing, error) {
	if runner == nil {
		return nil, errors.New("bot: tool runner is required")
	}
	return &Briefing{runner: runner}, nil
}

// Compose renders the briefing text for the given time. A failing section
// is logged and dropped rather than sinking the whole briefing.
func (b *Briefing) Compose(ctx context.Context, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Here's your briefing for %s.\n", greeting(now), now.Format("Monday, January 2"))

	sections := []struct {
		title string
		tool  string
		args  map[string]any
	}{
		{"Calendar", tools.GetCalendarEvents, map[string]any{"date": "today"}},
		{"Tasks", tools.ListTasks, map[string]any{"filter": "today"}},
		{"Pull requests", tools.GitHubPRs, map[string]any{"state": "open"}},
	}
	for _, s := range sections {
		out, err := b.runner.Run(ctx, s.tool, s.args)
		if err != nil {
			if !errors.Is(err, tools.ErrNotConfigured) {
				log.Printf("bot: briefing %s: %v", s.tool, err)
			}
			continue
		}
		if out = strings.TrimSpace(out); out == "" {
			continue
		}
		fmt.Fprintf(&sb, "\n*%s*\n%s\n", s.title, out)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// greeting picks a salutation by local hour.
func greeting(now time.Time) string {
	switch h := now.Hour(); {
	case h < 12:
		return "Good morning!"
	case h < 17:
		return "Good afternoon!"
	default:
		return "Good evening!"
	}
}
