// Package llm defines the model-client contract the agent executor speaks,
// plus the Anthropic implementation behind it. Keeping the interface small
// lets tests drive the executor with a scripted client.
package llm

import "context"

// Message roles on the request side.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Stop reasons on the response side.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
)

// ToolCall is a model-requested tool invocation. Args is the raw JSON
// argument object exactly as the model produced it.
type ToolCall struct {
	ID   string
	Name string
	Args string
}

// ToolResult feeds a tool's output back to the model on the next turn.
type ToolResult struct {
	ID      string
	Content string
	IsError bool
}

// Message is one turn of model context. Assistant turns may carry the tool
// calls the model made; user turns may carry the matching results.
type Message struct {
	Role        string
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ToolDef describes one tool offered to the model.
type ToolDef struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// Request is a single completion call.
type Request struct {
	System    string
	Messages  []Message
	Tools     []ToolDef
	MaxTokens int
}

// Response is what the model produced: accumulated text, any tool calls,
// and why it stopped.
type Response struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
}

// Client is the model API surface the rest of the code depends on. Stream
// behaves like Complete but hands text deltas to sink as they arrive; a
// sink error cancels the stream and fails the call.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Stream(ctx context.Context, req Request, sink func(delta string) error) (Response, error)
}
