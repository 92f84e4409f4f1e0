package agent

import (
	"context"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nvasko/adjutant/internal/audit"
	"github.com/nvasko/adjutant/internal/confirm"
	"github.com/nvasko/adjutant/internal/conversation"
	"github.com/nvasko/adjutant/internal/llm"
	"github.com/nvasko/adjutant/internal/models"
	"github.com/nvasko/adjutant/internal/tools"
)

// scriptedLLM replays a fixed sequence of responses and records every
// request it saw.
type scriptedLLM struct {
	mu       sync.Mutex
	script   []scriptStep
	requests []llm.Request
}

type scriptStep struct {
	resp llm.Response
	err  error
}

func finalStep(text string) scriptStep {
	return scriptStep{resp: llm.Response{Text: text, StopReason: llm.StopEndTurn}}
}

func toolStep(calls ...llm.ToolCall) scriptStep {
	return scriptStep{resp: llm.Response{ToolCalls: calls, StopReason: llm.StopToolUse}}
}

func errStep(err error) scriptStep {
	return scriptStep{err: err}
}

func (s *scriptedLLM) next(req llm.Request) (llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.script) == 0 {
		return llm.Response{Text: "unscripted", StopReason: llm.StopEndTurn}, nil
	}
	step := s.script[0]
	s.script = s.script[1:]
	return step.resp, step.err
}

func (s *scriptedLLM) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	return s.next(req)
}

func (s *scriptedLLM) Stream(_ context.Context, req llm.Request, sink func(string) error) (llm.Response, error) {
	resp, err := s.next(req)
	if err != nil {
		return llm.Response{}, err
	}
	if sink != nil && resp.Text != "" {
		if err := sink(resp.Text); err != nil {
			return llm.Response{}, err
		}
	}
	return resp, nil
}

// recordingRunner records tool executions and returns canned output.
type recordingRunner struct {
	mu    sync.Mutex
	calls []string
	out   map[string]string
	errs  map[string]error
}

func (r *recordingRunner) Run(_ context.Context, name string, _ map[string]any) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	if err, ok := r.errs[name]; ok {
		return "", err
	}
	if out, ok := r.out[name]; ok {
		return out, nil
	}
	return "done", nil
}

func (r *recordingRunner) callCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == name {
			n++
		}
	}
	return n
}

type fixture struct {
	db            *gorm.DB
	conversations *conversation.Store
	confirmations *confirm.Store
	audit         *audit.Logger
	runner        *recordingRunner
	llm           *scriptedLLM
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = db.AutoMigrate(
		&models.ConversationThread{}, &models.ConversationMessage{},
		&models.PendingAction{}, &models.AuditEntry{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	conversations, err := conversation.NewStore(conversation.StoreOpts{DB: db})
	if err != nil {
		t.Fatalf("conversation store: %v", err)
	}
	confirmations, err := confirm.NewStore(confirm.StoreOpts{DB: db})
	if err != nil {
		t.Fatalf("confirm store: %v", err)
	}
	auditLog, err := audit.NewLogger(audit.LoggerOpts{DB: db, LogContent: true})
	if err != nil {
		t.Fatalf("audit logger: %v", err)
	}
	return &fixture{
		db:            db,
		conversations: conversations,
		confirmations: confirmations,
		audit:         auditLog,
		runner:        &recordingRunner{out: map[string]string{}, errs: map[string]error{}},
		llm:           &scriptedLLM{},
	}
}

func (f *fixture) executor(t *testing.T, script ...scriptStep) *Executor {
	t.Helper()
	f.llm.script = script
	reg, err := tools.NewRegistry(tools.Catalog())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	e, err := NewExecutor(ExecutorOpts{
		LLM:           f.llm,
		Registry:      reg,
		Runner:        f.runner,
		Conversations: f.conversations,
		Confirmations: f.confirmations,
		Audit:         f.audit,
		System:        "test assistant",
	})
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return e
}

func (f *fixture) auditCount(t *testing.T, kind string) int64 {
	t.Helper()
	var n int64
	f.db.Model(&models.AuditEntry{}).Where("kind = ?", kind).Count(&n)
	return n
}
