package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nvasko/adjutant/internal/confirm"
	"github.com/nvasko/adjutant/internal/conversation"
	"github.com/nvasko/adjutant/internal/llm"
	"github.com/nvasko/adjutant/internal/models"
	"github.com/nvasko/adjutant/internal/tools"
)

func TestRun_DirectAnswer(t *testing.T) {
	f := newFixture(t)
	e := f.executor(t, finalStep("the answer"))

	reply, err := e.Run(context.Background(), "U1", "T1", "C1", "a question", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reply.Text != "the answer" || reply.Confirm != nil || reply.Incomplete {
		t.Errorf("reply = %+v", reply)
	}

	msgs, _ := f.conversations.History("U1", "T1")
	if len(msgs) != 2 {
		t.Fatalf("history has %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != conversation.RoleUser || msgs[1].Role != conversation.RoleAssistant {
		t.Errorf("history roles: %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if n := f.auditCount(t, models.AuditMessage); n != 1 {
		t.Errorf("message audit entries = %d, want 1", n)
	}
}

func TestRun_ToolCallThenAnswer(t *testing.T) {
	f := newFixture(t)
	f.runner.out[tools.SearchMessages] = "3 matching emails"
	e := f.executor(t,
		toolStep(llm.ToolCall{ID: "c1", Name: tools.SearchMessages, Args: `{"query":"budget"}`}),
		finalStep("found them"),
	)

	reply, err := e.Run(context.Background(), "U1", "T1", "C1", "find budget emails", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reply.Text != "found them" {
		t.Errorf("reply = %+v", reply)
	}
	if f.runner.callCount(tools.SearchMessages) != 1 {
		t.Errorf("search ran %d times", f.runner.callCount(tools.SearchMessages))
	}

	// Second model call carries the tool result.
	if len(f.llm.requests) != 2 {
		t.Fatalf("llm called %d times, want 2", len(f.llm.requests))
	}
	last := f.llm.requests[1].Messages[len(f.llm.requests[1].Messages)-1]
	if len(last.ToolResults) != 1 || last.ToolResults[0].Content != "3 matching emails" {
		t.Errorf("tool result not fed back: %+v", last)
	}

	if n := f.auditCount(t, models.AuditToolExec); n != 1 {
		t.Errorf("tool-exec audit entries = %d, want 1", n)
	}
	msgs, _ := f.conversations.History("U1", "T1")
	foundTool := false
	for _, m := range msgs {
		if m.Role == conversation.RoleTool {
			foundTool = true
		}
	}
	if !foundTool {
		t.Error("tool execution not recorded in conversation")
	}
}

func TestRun_MutatingToolParksConfirmation(t *testing.T) {
	f := newFixture(t)
	e := f.executor(t,
		toolStep(llm.ToolCall{
			ID: "c1", Name: tools.SendEmail,
			Args: `{"to":"bob@x.com","subject":"hi","body":"hello"}`,
		}),
	)

	reply, err := e.Run(context.Background(), "U1", "T1", "C1", "email bob", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reply.Confirm == nil {
		t.Fatal("no confirmation prompt")
	}
	if reply.Confirm.ToolName != tools.SendEmail || reply.Confirm.ActionID == "" {
		t.Errorf("prompt = %+v", reply.Confirm)
	}
	if !strings.Contains(reply.Text, "confirmation") {
		t.Errorf("reply text = %q", reply.Text)
	}
	// Nothing executed yet.
	if f.runner.callCount(tools.SendEmail) != 0 {
		t.Error("mutating tool executed before confirmation")
	}
	pending, _ := f.confirmations.Pending("U1")
	if len(pending) != 1 || pending[0].ID != reply.Confirm.ActionID {
		t.Errorf("pending = %+v", pending)
	}
}

func TestExecuteConfirmed_RunsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	f.runner.out[tools.SendEmail] = "Email sent to bob@x.com (id m1)."
	e := f.executor(t,
		toolStep(llm.ToolCall{
			ID: "c1", Name: tools.SendEmail,
			Args: `{"to":"bob@x.com","subject":"hi","body":"hello"}`,
		}),
	)

	reply, err := e.Run(context.Background(), "U1", "T1", "C1", "email bob", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	actionID := reply.Confirm.ActionID

	confirmed, err := e.ExecuteConfirmed(context.Background(), actionID, "U1", "T1", "C1")
	if err != nil {
		t.Fatalf("ExecuteConfirmed: %v", err)
	}
	if !strings.Contains(confirmed.Text, "sent") {
		t.Errorf("confirmed reply = %q", confirmed.Text)
	}
	if f.runner.callCount(tools.SendEmail) != 1 {
		t.Fatalf("tool ran %d times, want 1", f.runner.callCount(tools.SendEmail))
	}

	// A second click must error and must not re-execute.
	if _, err := e.ExecuteConfirmed(context.Background(), actionID, "U1", "T1", "C1"); !errors.Is(err, confirm.ErrNotPending) {
		t.Errorf("second confirm err = %v, want ErrNotPending", err)
	}
	if f.runner.callCount(tools.SendEmail) != 1 {
		t.Error("tool re-executed on duplicate confirm")
	}
}

func TestExecuteConfirmed_WrongContext(t *testing.T) {
	f := newFixture(t)
	e := f.executor(t,
		toolStep(llm.ToolCall{
			ID: "c1", Name: tools.CreateEvent,
			Args: `{"title":"standup","date":"tomorrow","time":"2pm"}`,
		}),
	)

	reply, err := e.Run(context.Background(), "U1", "T1", "C1", "schedule standup", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := e.ExecuteConfirmed(context.Background(), reply.Confirm.ActionID, "U1", "T2", "C1"); !errors.Is(err, confirm.ErrNotPending) {
		t.Errorf("cross-thread confirm err = %v, want ErrNotPending", err)
	}
	if f.runner.callCount(tools.CreateEvent) != 0 {
		t.Error("tool executed from wrong thread")
	}
}

func TestCancelAction(t *testing.T) {
	f := newFixture(t)
	e := f.executor(t,
		toolStep(llm.ToolCall{
			ID: "c1", Name: tools.CreateTask, Args: `{"content":"buy milk"}`,
		}),
	)

	reply, err := e.Run(context.Background(), "U1", "T1", "C1", "add a task", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := e.CancelAction(reply.Confirm.ActionID, "U1", "T1"); err != nil {
		t.Fatalf("CancelAction: %v", err)
	}
	if _, err := e.ExecuteConfirmed(context.Background(), reply.Confirm.ActionID, "U1", "T1", "C1"); !errors.Is(err, confirm.ErrNotPending) {
		t.Errorf("confirm after cancel err = %v, want ErrNotPending", err)
	}
}

func TestRun_ToolErrorFedBack(t *testing.T) {
	f := newFixture(t)
	f.runner.errs[tools.SearchMessages] = errors.New("index offline")
	e := f.executor(t,
		toolStep(llm.ToolCall{ID: "c1", Name: tools.SearchMessages, Args: `{"query":"x"}`}),
		finalStep("the search backend is down right now"),
	)

	reply, err := e.Run(context.Background(), "U1", "T1", "C1", "search for x", nil)
	if err != nil {
		t.Fatalf("tool failure surfaced as turn failure: %v", err)
	}
	if reply.Text != "the search backend is down right now" {
		t.Errorf("reply = %q", reply.Text)
	}

	last := f.llm.requests[1].Messages[len(f.llm.requests[1].Messages)-1]
	if len(last.ToolResults) != 1 || !last.ToolResults[0].IsError {
		t.Errorf("error result not fed back: %+v", last)
	}
}

func TestRun_InvalidArgsFedBack(t *testing.T) {
	f := newFixture(t)
	e := f.executor(t,
		toolStep(llm.ToolCall{ID: "c1", Name: tools.SearchMessages, Args: `{"bogus":1}`}),
		finalStep("let me rephrase"),
	)

	if _, err := e.Run(context.Background(), "U1", "T1", "C1", "search", nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.runner.callCount(tools.SearchMessages) != 0 {
		t.Error("tool executed with invalid arguments")
	}
	last := f.llm.requests[1].Messages[len(f.llm.requests[1].Messages)-1]
	if len(last.ToolResults) != 1 || !last.ToolResults[0].IsError {
		t.Errorf("validation error not fed back: %+v", last)
	}
}

func TestRun_StepBudgetExhaustion(t *testing.T) {
	f := newFixture(t)
	var script []scriptStep
	for i := 0; i < 10; i++ {
		script = append(script, toolStep(llm.ToolCall{
			ID: "c1", Name: tools.SearchMessages, Args: `{"query":"again"}`,
		}))
	}
	e := f.executor(t, script...)

	reply, err := e.Run(context.Background(), "U1", "T1", "C1", "keep searching", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reply.Incomplete {
		t.Error("reply not flagged incomplete")
	}
	if len(f.llm.requests) != defaultStepBudget {
		t.Errorf("llm called %d times, want %d", len(f.llm.requests), defaultStepBudget)
	}
}

func TestRun_LLMFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.runner.out[tools.SearchMessages] = "partial"
	e := f.executor(t,
		toolStep(llm.ToolCall{ID: "c1", Name: tools.SearchMessages, Args: `{"query":"x"}`}),
		errStep(errors.New("service unreachable")),
	)

	if _, err := e.Run(context.Background(), "U1", "T1", "C1", "search for x", nil); err == nil {
		t.Fatal("expected error")
	}

	// Only the user message survives; the mid-turn tool row is gone.
	msgs, _ := f.conversations.History("U1", "T1")
	if len(msgs) != 1 || msgs[0].Role != conversation.RoleUser {
		t.Errorf("history after rollback = %+v", msgs)
	}
}

func TestRun_Streaming(t *testing.T) {
	f := newFixture(t)
	e := f.executor(t, finalStep("streamed answer"))

	var got strings.Builder
	reply, err := e.Run(context.Background(), "U1", "T1", "C1", "hello there friend", func(delta string) error {
		got.WriteString(delta)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.String() != "streamed answer" || reply.Text != "streamed answer" {
		t.Errorf("streamed %q, reply %q", got.String(), reply.Text)
	}
}

func TestRun_StreamingClosesParagraphAtToolStep(t *testing.T) {
	f := newFixture(t)
	f.runner.out[tools.SearchMessages] = "2 results"
	e := f.executor(t,
		scriptStep{resp: llm.Response{
			Text:       "Let me check your mail.",
			ToolCalls:  []llm.ToolCall{{ID: "c1", Name: tools.SearchMessages, Args: `{"query":"budget"}`}},
			StopReason: llm.StopToolUse,
		}},
		finalStep("Both are from accounting."),
	)

	var deltas []string
	reply, err := e.Run(context.Background(), "U1", "T1", "C1", "check my mail", func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The commentary paragraph is closed before the tool runs, so a
	// paragraph-buffering sink flushes it at the step boundary.
	want := []string{"Let me check your mail.", "\n\n", "Both are from accounting."}
	if len(deltas) != len(want) {
		t.Fatalf("deltas = %q, want %q", deltas, want)
	}
	for i := range want {
		if deltas[i] != want[i] {
			t.Fatalf("deltas = %q, want %q", deltas, want)
		}
	}
	if reply.Text != "Both are from accounting." {
		t.Errorf("reply = %q", reply.Text)
	}
}

func TestRun_SinkErrorAbortsTurn(t *testing.T) {
	f := newFixture(t)
	e := f.executor(t, finalStep("will be cancelled"))

	_, err := e.Run(context.Background(), "U1", "T1", "C1", "hello there friend", func(string) error {
		return errors.New("client went away")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	msgs, _ := f.conversations.History("U1", "T1")
	if len(msgs) != 1 {
		t.Errorf("history after cancelled stream = %d messages, want 1", len(msgs))
	}
}
