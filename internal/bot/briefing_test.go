package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nvasko/adjutant/internal/tools"
)

// stubRunner returns canned tool output keyed by tool name. Tools with no
// entry behave as unconfigured.
type stubRunner struct {
	out  map[string]string
	errs map[string]error
}

func (r *stubRunner) Run(_ context.Context, name string, _ map[string]any) (string, error) {
	if err, ok := r.errs[name]; ok {
		return "", err
	}
	if out, ok := r.out[name]; ok {
		return out, nil
	}
	return "", tools.ErrNotConfigured
}

func TestNewBriefing_RequiresRunner(t *testing.T) {
	if _, err := NewBriefing(nil); err == nil {
		t.Fatal("expected error for nil runner")
	}
}

func TestBriefing_ComposeAllSections(t *testing.T) {
	b, err := NewBriefing(&stubRunner{out: map[string]string{
		tools.GetCalendarEvents: "09:30 standup\n14:00 design review",
		tools.ListTasks:         "- file expense report",
		tools.GitHubPRs:         "#41 fix flaky retry test (open)",
	}})
	if err != nil {
		t.Fatalf("NewBriefing: %v", err)
	}

	morning := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	text := b.Compose(context.Background(), morning)

	if !strings.HasPrefix(text, "Good morning!") {
		t.Errorf("greeting missing: %q", text)
	}
	if !strings.Contains(text, "Monday, March 9") {
		t.Errorf("date missing: %q", text)
	}
	for _, want := range []string{
		"*Calendar*", "09:30 standup",
		"*Tasks*", "file expense report",
		"*Pull requests*", "#41 fix flaky retry test",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("briefing missing %q:\n%s", want, text)
		}
	}
}

func TestBriefing_SkipsUnconfiguredAndFailingSections(t *testing.T) {
	b, err := NewBriefing(&stubRunner{
		out:  map[string]string{tools.GetCalendarEvents: "10:00 dentist"},
		errs: map[string]error{tools.GitHubPRs: errors.New("api rate limited")},
	})
	if err != nil {
		t.Fatalf("NewBriefing: %v", err)
	}

	text := b.Compose(context.Background(), time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC))
	if !strings.Contains(text, "10:00 dentist") {
		t.Errorf("calendar section missing:\n%s", text)
	}
	if strings.Contains(text, "*Tasks*") || strings.Contains(text, "*Pull requests*") {
		t.Errorf("briefing includes empty sections:\n%s", text)
	}
}

func TestGreeting_ByHour(t *testing.T) {
	cases := []struct {
		hour int
		want string
	}{
		{8, "Good morning!"},
		{11, "Good morning!"},
		{12, "Good afternoon!"},
		{16, "Good afternoon!"},
		{17, "Good evening!"},
		{23, "Good evening!"},
	}
	for _, tc := range cases {
		now := time.Date(2026, 3, 9, tc.hour, 0, 0, 0, time.UTC)
		if got := greeting(now); got != tc.want {
			t.Errorf("greeting at %02d:00 = %q, want %q", tc.hour, got, tc.want)
		}
	}
}
