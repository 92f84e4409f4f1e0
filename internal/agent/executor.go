// Package agent drives the LLM tool-calling loop and, in multi-agent mode,
// routes turns across domain specialists. The loop is deterministic given
// the model's decisions: tool calls are validated, mutating ones are parked
// behind confirmation, results are fed back until the model answers or the
// step budget runs out.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nvasko/adjutant/internal/audit"
	"github.com/nvasko/adjutant/internal/confirm"
	"github.com/nvasko/adjutant/internal/conversation"
	"github.com/nvasko/adjutant/internal/llm"
	"github.com/nvasko/adjutant/internal/models"
	"github.com/nvasko/adjutant/internal/tools"
)

const defaultStepBudget = 6

const incompleteReply = "I ran out of steps before finishing this request. " +
	"The partial results above are the best I have."

// Sink receives incremental text while a reply streams. Returning an error
// cancels the turn.
type Sink func(delta string) error

// ConfirmPrompt describes a parked mutating action the front end must
// render with accept and cancel controls tagged with the action ID.
type ConfirmPrompt struct {
	ActionID  string
	ToolName  string
	Summary   string
	ExpiresAt time.Time
}

// Reply is the outcome of one agent turn.
type Reply struct {
	Text       string
	Confirm    *ConfirmPrompt
	Incomplete bool
}

// Executor runs the tool-calling loop for one tool subset.
type Executor struct {
	llm           llm.Client
	registry      *tools.Registry
	runner        tools.Runner
	conversations *conversation.Store
	confirmations *confirm.Store
	audit         *audit.Logger
	system        string
	stepBudget    int
}

// ExecutorOpts configures an Executor. LLM, Registry, Conversations,
// Confirmations, and Audit are required; Runner may be nil only when the
// registry is empty.
type ExecutorOpts struct {
	LLM           llm.Client
	Registry      *tools.Registry
	Runner        tools.Runner
	Conversations *conversation.Store
	Confirmations *confirm.Store
	Audit         *audit.Logger
	System        string
	StepBudget    int
}

// NewExecutor builds an Executor.
func NewExecutor(opts ExecutorOpts) (*Executor, error) {
	if opts.LLM == nil {
		return nil, errors.New("agent: llm client is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("agent: tool registry is required")
	}
	if opts.Runner == nil && len(opts.Registry.Specs()) > 0 {
		return nil, errors.New("agent: tool runner is required")
	}
	if opts.Conversations == nil {
		return nil, errors.New("agent: conversation store is required")
	}
	if opts.Confirmations == nil {
		return nil, errors.New("agent: confirmation store is required")
	}
	if opts.Audit == nil {
		return nil, errors.New("agent: audit logger is required")
	}
	budget := opts.StepBudget
	if budget <= 0 {
		budget = defaultStepBudget
	}
	return &Executor{
		llm:           opts.LLM,
		registry:      opts.Registry,
		runner:        opts.Runner,
		conversations: opts.Conversations,
		confirmations: opts.Confirmations,
		audit:         opts.Audit,
		system:        opts.System,
		stepBudget:    budget,
	}, nil
}

// Run executes one full conversation turn: persist the user message, drive
// the loop, persist the reply. On an LLM failure the conversation is rolled
// back to just after the user message before the error is returned.
func (e *Executor) Run(ctx context.Context, userID, threadID, channelID, text string, sink Sink) (Reply, error) {
	userSeq, err := e.conversations.Append(userID, threadID, channelID, conversation.RoleUser, text, "")
	if err != nil {
		return Reply{}, fmt.Errorf("agent: record user message: %w", err)
	}
	e.audit.Log(audit.Entry{
		Kind:     models.AuditMessage,
		UserID:   userID,
		ThreadID: threadID,
		Payload:  text,
	})

	reply, err := e.Consult(ctx, userID, threadID, channelID, sink)
	if err != nil {
		if trimErr := e.conversations.TrimAfter(userID, threadID, userSeq); trimErr != nil {
			e.audit.Log(audit.Entry{
				Kind: models.AuditError, UserID: userID, ThreadID: threadID,
				Detail: "rollback failed: " + trimErr.Error(),
			})
		}
		return Reply{}, err
	}

	if _, err := e.conversations.Append(userID, threadID, channelID, conversation.RoleAssistant, reply.Text, ""); err != nil {
		return Reply{}, fmt.Errorf("agent: record reply: %w", err)
	}
	return reply, nil
}

// Consult drives the tool-calling loop against the already-persisted
// conversation without writing the user message or the final reply. The
// orchestrator uses it for specialist sub-runs; Run wraps it for the
// single-agent mode. Tool executions and pending actions are still
// persisted and audited.
func (e *Executor) Consult(ctx context.Context, userID, threadID, channelID string, sink Sink) (Reply, error) {
	history, err := e.conversations.History(userID, threadID)
	if err != nil {
		return Reply{}, fmt.Errorf("agent: load history: %w", err)
	}
	msgs := contextMessages(history)
	defs := toolDefs(e.registry)

	for step := 0; step < e.stepBudget; step++ {
		resp, err := e.complete(ctx, msgs, defs, sink)
		if err != nil {
			return Reply{}, fmt.Errorf("agent: model call: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			return Reply{Text: resp.Text}, nil
		}

		// The step continues with tool calls, so any commentary streamed
		// so far belongs to this step, not the final answer. Close the
		// paragraph so the sink flushes it at the step boundary.
		if sink != nil && resp.Text != "" {
			if err := sink("\n\n"); err != nil {
				return Reply{}, fmt.Errorf("agent: stream: %w", err)
			}
		}

		msgs = append(msgs, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		results := make([]llm.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			spec, args, err := e.resolveCall(call)
			if err != nil {
				results = append(results, llm.ToolResult{
					ID: call.ID, Content: "Error: " + err.Error(), IsError: true,
				})
				continue
			}
			if spec.Mutating {
				return e.propose(userID, threadID, channelID, spec, call, args)
			}
			results = append(results, e.execute(ctx, userID, threadID, channelID, call, args))
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, ToolResults: results})
	}

	return Reply{Text: incompleteReply, Incomplete: true}, nil
}

// ExecuteConfirmed resolves a confirmed action and runs its tool exactly
// once. confirm.ErrNotPending and confirm.ErrExpired pass through untouched
// so callers can show the user why the click had no effect.
func (e *Executor) ExecuteConfirmed(ctx context.Context, actionID, userID, threadID, channelID string) (Reply, error) {
	action, err := e.confirmations.Confirm(actionID, userID, threadID)
	if err != nil {
		return Reply{}, err
	}

	args, err := decodeArgs(action.Args)
	if err != nil {
		return Reply{}, fmt.Errorf("agent: confirmed action %s: %w", actionID, err)
	}

	result := e.execute(ctx, userID, threadID, channelID, llm.ToolCall{
		ID: action.ID, Name: action.ToolName, Args: action.Args,
	}, args)

	var text string
	if result.IsError {
		text = fmt.Sprintf("The %s action was confirmed but failed to execute.", action.ToolName)
	} else {
		text = result.Content
	}
	if _, err := e.conversations.Append(userID, threadID, channelID, conversation.RoleAssistant, text, ""); err != nil {
		return Reply{}, fmt.Errorf("agent: record confirmed result: %w", err)
	}
	return Reply{Text: text}, nil
}

// CancelAction rejects a pending action on the user's behalf.
func (e *Executor) CancelAction(actionID, userID, threadID string) error {
	if _, err := e.confirmations.Cancel(actionID, userID, threadID); err != nil {
		return err
	}
	e.audit.Log(audit.Entry{
		Kind: models.AuditToolExec, UserID: userID, ThreadID: threadID,
		Payload: actionID, Detail: "action cancelled by user",
	})
	return nil
}

func (e *Executor) complete(ctx context.Context, msgs []llm.Message, defs []llm.ToolDef, sink Sink) (llm.Response, error) {
	req := llm.Request{System: e.system, Messages: msgs, Tools: defs}
	if sink != nil {
		return e.llm.Stream(ctx, req, func(delta string) error { return sink(delta) })
	}
	return e.llm.Complete(ctx, req)
}

func (e *Executor) resolveCall(call llm.ToolCall) (tools.Spec, map[string]any, error) {
	spec, ok := e.registry.Lookup(call.Name)
	if !ok {
		return tools.Spec{}, nil, fmt.Errorf("unknown tool %q", call.Name)
	}
	args, err := decodeArgs(call.Args)
	if err != nil {
		return tools.Spec{}, nil, fmt.Errorf("tool %q: %w", call.Name, err)
	}
	if err := spec.ValidateArgs(args); err != nil {
		return tools.Spec{}, nil, err
	}
	return spec, args, nil
}

// propose parks a mutating call as a PendingAction and ends the turn with a
// confirmation prompt instead of a tool result.
func (e *Executor) propose(userID, threadID, channelID string, spec tools.Spec, call llm.ToolCall, args map[string]any) (Reply, error) {
	action, err := e.confirmations.Propose(userID, threadID, call.Name, call.Args)
	if err != nil {
		return Reply{}, fmt.Errorf("agent: propose action: %w", err)
	}
	e.audit.Log(audit.Entry{
		Kind: models.AuditToolExec, UserID: userID, ThreadID: threadID,
		Payload: call.Name + " " + call.Args,
		Detail:  "proposed, awaiting confirmation (" + action.ID + ")",
	})

	summary := confirmSummary(spec, args)
	return Reply{
		Text: summary,
		Confirm: &ConfirmPrompt{
			ActionID:  action.ID,
			ToolName:  call.Name,
			Summary:   summary,
			ExpiresAt: action.ExpiresAt,
		},
	}, nil
}

// execute runs one non-mutating (or already-confirmed) tool call, records
// it in the audit log and the conversation, and returns the result for the
// model. Tool failures become tool-error results, never turn failures.
func (e *Executor) execute(ctx context.Context, userID, threadID, channelID string, call llm.ToolCall, args map[string]any) llm.ToolResult {
	start := time.Now()
	out, err := e.runner.Run(ctx, call.Name, args)
	entry := audit.Entry{
		Kind: models.AuditToolExec, UserID: userID, ThreadID: threadID,
		Payload:  call.Name + " " + call.Args,
		Duration: time.Since(start),
	}

	result := llm.ToolResult{ID: call.ID, Content: out}
	if err != nil {
		entry.Detail = "failed: " + err.Error()
		result.Content = "Error: " + err.Error()
		result.IsError = true
	} else {
		entry.Detail = "ok"
	}
	e.audit.Log(entry)

	if _, appendErr := e.conversations.Append(userID, threadID, channelID, conversation.RoleTool, result.Content, call.Args); appendErr != nil {
		e.audit.Log(audit.Entry{
			Kind: models.AuditError, UserID: userID, ThreadID: threadID,
			Detail: "record tool result: " + appendErr.Error(),
		})
	}
	return result
}

// contextMessages rebuilds model context from persisted history. Tool rows
// are skipped: replaying tool_use blocks without their paired results is an
// API error, and the surviving user/assistant turns carry the outcome.
func contextMessages(history []conversation.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case conversation.RoleUser:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: msg.Content})
		case conversation.RoleAssistant:
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: msg.Content})
		}
	}
	return out
}

func toolDefs(registry *tools.Registry) []llm.ToolDef {
	specs := registry.Specs()
	defs := make([]llm.ToolDef, 0, len(specs))
	for _, spec := range specs {
		defs = append(defs, llm.ToolDef{
			Name:        spec.Name,
			Description: spec.Description,
			Properties:  spec.Properties(),
			Required:    spec.RequiredParams(),
		})
	}
	return defs
}

func decodeArgs(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("malformed arguments: %w", err)
	}
	return args, nil
}

func confirmSummary(spec tools.Spec, args map[string]any) string {
	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var pairs []string
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", key, args[key]))
	}
	summary := fmt.Sprintf("This needs your confirmation: %s", spec.Name)
	if len(pairs) > 0 {
		summary += " (" + strings.Join(pairs, ", ") + ")"
	}
	return summary
}
