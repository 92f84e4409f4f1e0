package llm

import (
	"errors"
	"testing"
	"time"
)

func TestNewAnthropic_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts AnthropicOpts
	}{
		{"missing api key", AnthropicOpts{Model: "claude-sonnet-4-20250514"}},
		{"missing model", AnthropicOpts{APIKey: "key"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAnthropic(tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewAnthropic_Defaults(t *testing.T) {
	a, err := NewAnthropic(AnthropicOpts{APIKey: "key", Model: "claude-sonnet-4-20250514"})
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}
	if a.maxTokens != defaultMaxTokens {
		t.Errorf("maxTokens = %d, want %d", a.maxTokens, defaultMaxTokens)
	}
	if a.timeout != defaultTimeout {
		t.Errorf("timeout = %v, want %v", a.timeout, defaultTimeout)
	}

	a, err = NewAnthropic(AnthropicOpts{
		APIKey: "key", Model: "m", MaxTokens: 1024, Timeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}
	if a.maxTokens != 1024 || a.timeout != 10*time.Second {
		t.Errorf("overrides not applied: %d %v", a.maxTokens, a.timeout)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("401 unauthorized"), false},
		{errors.New("invalid request"), false},
		{errors.New("429 too many requests"), true},
		{errors.New("rate limit exceeded"), true},
		{errors.New("503 service unavailable"), true},
		{errors.New("api overloaded"), true},
	}
	for _, tt := range tests {
		if got := isRetryable(tt.err); got != tt.want {
			t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestBuildParams_ToolsAndSystem(t *testing.T) {
	a, _ := NewAnthropic(AnthropicOpts{APIKey: "key", Model: "m", MaxTokens: 100})
	params := a.buildParams(Request{
		System: "be terse",
		Messages: []Message{
			{Role: RoleUser, Content: "hello"},
		},
		Tools: []ToolDef{{
			Name:        "search_messages",
			Description: "search indexed content",
			Properties:  map[string]any{"query": map[string]any{"type": "string"}},
			Required:    []string{"query"},
		}},
	})

	if params.MaxTokens != 100 {
		t.Errorf("MaxTokens = %d", params.MaxTokens)
	}
	if len(params.System) != 1 || params.System[0].Text != "be terse" {
		t.Errorf("System = %+v", params.System)
	}
	if len(params.Tools) != 1 || params.Tools[0].OfTool.Name != "search_messages" {
		t.Errorf("Tools = %+v", params.Tools)
	}
	if len(params.Messages) != 1 {
		t.Errorf("Messages = %+v", params.Messages)
	}
}

func TestBuildMessages_SkipsEmptyTurns(t *testing.T) {
	msgs := buildMessages([]Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "t1", Name: "x", Args: "{}"}}},
		{Role: RoleUser, ToolResults: []ToolResult{{ID: "t1", Content: "ok"}}},
	})
	if len(msgs) != 3 {
		t.Errorf("got %d messages, want 3 (empty turn dropped)", len(msgs))
	}
}
