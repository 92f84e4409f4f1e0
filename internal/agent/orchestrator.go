package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nvasko/adjutant/internal/audit"
	"github.com/nvasko/adjutant/internal/conversation"
	"github.com/nvasko/adjutant/internal/llm"
	"github.com/nvasko/adjutant/internal/models"
)

const synthesisMaxTokens = 2048

// Orchestrator routes each turn to a domain specialist (or several), with a
// conversational short-circuit for small talk. Specialists are restricted
// Executors sharing the conversation, confirmation, and audit stores.
type Orchestrator struct {
	chat          *Executor
	specialists   map[Domain]*Executor
	llm           llm.Client
	conversations *conversation.Store
	audit         *audit.Logger
}

// OrchestratorOpts configures an Orchestrator. Chat is the tool-less
// executor answering conversational turns; Specialists must cover every
// Domain constant.
type OrchestratorOpts struct {
	Chat          *Executor
	Specialists   map[Domain]*Executor
	LLM           llm.Client
	Conversations *conversation.Store
	Audit         *audit.Logger
}

// NewOrchestrator builds an Orchestrator.
func NewOrchestrator(opts OrchestratorOpts) (*Orchestrator, error) {
	if opts.Chat == nil {
		return nil, errors.New("agent: chat executor is required")
	}
	if opts.LLM == nil {
		return nil, errors.New("agent: llm client is required")
	}
	if opts.Conversations == nil {
		return nil, errors.New("agent: conversation store is required")
	}
	if opts.Audit == nil {
		return nil, errors.New("agent: audit logger is required")
	}
	for _, domain := range []Domain{DomainCalendar, DomainEmail, DomainGitHub, DomainResearch} {
		if opts.Specialists[domain] == nil {
			return nil, fmt.Errorf("agent: missing %s specialist", domain)
		}
	}
	return &Orchestrator{
		chat:          opts.Chat,
		specialists:   opts.Specialists,
		llm:           opts.LLM,
		conversations: opts.Conversations,
		audit:         opts.Audit,
	}, nil
}

// Run executes one routed conversation turn.
func (o *Orchestrator) Run(ctx context.Context, userID, threadID, channelID, text string, sink Sink) (Reply, error) {
	userSeq, err := o.conversations.Append(userID, threadID, channelID, conversation.RoleUser, text, "")
	if err != nil {
		return Reply{}, fmt.Errorf("agent: record user message: %w", err)
	}
	o.audit.Log(audit.Entry{
		Kind: models.AuditMessage, UserID: userID, ThreadID: threadID, Payload: text,
	})

	plan := planTask(text)
	o.audit.Log(audit.Entry{
		Kind: models.AuditRouting, UserID: userID, ThreadID: threadID,
		Payload: joinDomains(plan.Domains), Detail: plan.Reason,
	})

	reply, err := o.dispatch(ctx, plan, userID, threadID, channelID, text, sink)
	if err != nil {
		if trimErr := o.conversations.TrimAfter(userID, threadID, userSeq); trimErr != nil {
			o.audit.Log(audit.Entry{
				Kind: models.AuditError, UserID: userID, ThreadID: threadID,
				Detail: "rollback failed: " + trimErr.Error(),
			})
		}
		return Reply{}, err
	}

	if _, err := o.conversations.Append(userID, threadID, channelID, conversation.RoleAssistant, reply.Text, ""); err != nil {
		return Reply{}, fmt.Errorf("agent: record reply: %w", err)
	}
	return reply, nil
}

// ExecuteConfirmed resolves a confirmation click. Any specialist can carry
// it out; they share the confirmation store and the full tool runner, so
// the research executor stands in for all of them.
func (o *Orchestrator) ExecuteConfirmed(ctx context.Context, actionID, userID, threadID, channelID string) (Reply, error) {
	return o.specialists[DomainResearch].ExecuteConfirmed(ctx, actionID, userID, threadID, channelID)
}

// CancelAction rejects a pending action.
func (o *Orchestrator) CancelAction(actionID, userID, threadID string) error {
	return o.specialists[DomainResearch].CancelAction(actionID, userID, threadID)
}

func (o *Orchestrator) dispatch(ctx context.Context, plan Plan, userID, threadID, channelID, text string, sink Sink) (Reply, error) {
	if plan.Conversational {
		return o.chat.Consult(ctx, userID, threadID, channelID, sink)
	}
	if len(plan.Domains) == 1 {
		return o.specialists[plan.Domains[0]].Consult(ctx, userID, threadID, channelID, sink)
	}

	// Multiple specialists run sequentially in routing-score order. Their
	// sub-runs share nothing beyond the common stores; a confirmation
	// prompt from any of them ends the turn immediately.
	type section struct {
		domain Domain
		text   string
	}
	var sections []section
	for _, domain := range plan.Domains {
		reply, err := o.specialists[domain].Consult(ctx, userID, threadID, channelID, nil)
		if err != nil {
			return Reply{}, err
		}
		if reply.Confirm != nil {
			return reply, nil
		}
		sections = append(sections, section{domain, reply.Text})
	}

	labeled := make([]string, len(sections))
	for i, s := range sections {
		labeled[i] = fmt.Sprintf("=== %s ===\n%s", strings.ToUpper(string(s.domain)), s.text)
	}

	synthesized, err := o.synthesize(ctx, text, labeled, sink)
	if err != nil {
		// Degrade to the specialists' answers with section labels.
		o.audit.Log(audit.Entry{
			Kind: models.AuditError, UserID: userID, ThreadID: threadID,
			Detail: "synthesis failed, concatenating: " + err.Error(),
		})
		return Reply{Text: strings.Join(labeled, "\n\n")}, nil
	}
	return Reply{Text: synthesized}, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, question string, sections []string, sink Sink) (string, error) {
	prompt := fmt.Sprintf(`The user asked: %q

Multiple specialist assistants provided the following information:

%s

Synthesize these results into a single coherent response that addresses all
parts of the question, organizes the information logically, avoids
repetition, and stays concise.`, question, strings.Join(sections, "\n\n"))

	req := llm.Request{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens: synthesisMaxTokens,
	}
	var resp llm.Response
	var err error
	if sink != nil {
		resp, err = o.llm.Stream(ctx, req, func(delta string) error { return sink(delta) })
	} else {
		resp, err = o.llm.Complete(ctx, req)
	}
	if err != nil {
		return "", err
	}
	if resp.Text == "" {
		return "", errors.New("agent: empty synthesis response")
	}
	return resp.Text, nil
}
