package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultMaxTokens  = 4096
	defaultTimeout    = 2 * time.Minute
	maxRetries        = 3
	initialBackoff    = time.Second
	maxBackoff        = 30 * time.Second
	backoffMultiplier = 2
)

// Anthropic is the production Client over the Anthropic Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int
	timeout   time.Duration
}

// AnthropicOpts configures the Anthropic client.
type AnthropicOpts struct {
	APIKey    string
	Model     string
	MaxTokens int           // defaults to 4096
	Timeout   time.Duration // per-call deadline, defaults to 2 minutes
}

// NewAnthropic builds a Client talking to the Anthropic API.
func NewAnthropic(opts AnthropicOpts) (*Anthropic, error) {
	if opts.APIKey == "" {
		return nil, errors.New("llm: api key is required")
	}
	if opts.Model == "" {
		return nil, errors.New("llm: model is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Anthropic{
		client:    anthropic.NewClient(option.WithAPIKey(opts.APIKey)),
		model:     anthropic.Model(opts.Model),
		maxTokens: maxTokens,
		timeout:   timeout,
	}, nil
}

// Complete runs one non-streaming completion, retrying transient API
// failures with exponential backoff.
func (a *Anthropic) Complete(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	params := a.buildParams(req)

	var msg *anthropic.Message
	err := withRetry(ctx, func() error {
		var callErr error
		msg, callErr = a.client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		return Response{}, fmt.Errorf("llm: complete: %w", err)
	}
	return parseMessage(msg), nil
}

// Stream runs one streaming completion, handing each text delta to sink.
// Tool calls and the stop reason come back in the final Response.
func (a *Anthropic) Stream(ctx context.Context, req Request, sink func(delta string) error) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	stream := a.client.Messages.NewStreaming(ctx, a.buildParams(req))
	msg := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return Response{}, fmt.Errorf("llm: accumulate event: %w", err)
		}
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && sink != nil {
				if err := sink(delta.Text); err != nil {
					cancel()
					return Response{}, fmt.Errorf("llm: stream sink: %w", err)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return Response{}, fmt.Errorf("llm: stream: %w", err)
	}
	return parseMessage(&msg), nil
}

func (a *Anthropic) buildParams(req Request) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: int64(maxTokens),
		Messages:  buildMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	for _, tool := range req.Tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: tool.Properties,
					Required:   tool.Required,
				},
			},
		})
	}
	return params
}

func buildMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		var blocks []anthropic.ContentBlockParamUnion
		if m.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(m.Content))
		}
		for _, tc := range m.ToolCalls {
			blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, json.RawMessage(tc.Args), tc.Name))
		}
		for _, tr := range m.ToolResults {
			blocks = append(blocks, anthropic.NewToolResultBlock(tr.ID, tr.Content, tr.IsError))
		}
		if len(blocks) == 0 {
			continue
		}
		if m.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

func parseMessage(msg *anthropic.Message) Response {
	resp := Response{StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Text += b.Text
		case anthropic.ToolUseBlock:
			args, err := json.Marshal(b.Input)
			if err != nil {
				args = []byte("{}")
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:   b.ID,
				Name: b.Name,
				Args: string(args),
			})
		}
	}
	return resp
}

func withRetry(ctx context.Context, call func() error) error {
	backoff := initialBackoff
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = call()
		if err == nil {
			return nil
		}
		if !isRetryable(err) || attempt == maxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= backoffMultiplier
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return err
}

// isRetryable reports whether the error looks like a rate limit or a
// transient server failure. Anything else fails the call immediately.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "rate limit") ||
		strings.Contains(s, "too many requests") ||
		strings.Contains(s, "429") ||
		strings.Contains(s, "overloaded") ||
		strings.Contains(s, "500") ||
		strings.Contains(s, "502") ||
		strings.Contains(s, "503") ||
		strings.Contains(s, "504")
}
