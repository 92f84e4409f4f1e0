package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nvasko/adjutant/internal/agent"
	"github.com/nvasko/adjutant/internal/audit"
	"github.com/nvasko/adjutant/internal/confirm"
	"github.com/nvasko/adjutant/internal/models"
	"github.com/nvasko/adjutant/internal/security"
)

// Fixed user-facing replies. Denials never echo the offending input back.
const (
	replyUnauthorized  = "Sorry, I can only chat with authorized users."
	replyDenied        = "I can't process that message."
	replyRateLimited   = "You're sending messages too quickly. Try again in %s."
	replyFailure       = "Something went wrong while handling that. Please try again."
	replyNotPending    = "That action is no longer pending. It may have already been handled."
	replyExpired       = "That action expired before you responded. Ask me again if you still want it."
	replyCancelled     = "Okay, I won't do that."
	replyConfirmFooter = "This will expire in a few minutes if you don't respond."
)

// Assistant is the conversational engine behind the daemon. Both the single
// agent executor and the multi-agent orchestrator satisfy it.
type Assistant interface {
	Run(ctx context.Context, userID, threadID, channelID, text string, sink agent.Sink) (agent.Reply, error)
	ExecuteConfirmed(ctx context.Context, actionID, userID, threadID, channelID string) (agent.Reply, error)
	CancelAction(actionID, userID, threadID string) error
}

// Daemon is the main bot process. It connects to a chat platform via an
// Adapter, screens inbound messages through the security gate, and hands
// turns to the assistant with per-thread serialization.
type Daemon struct {
	adapter       Adapter
	assistant     Assistant
	gate          *security.Gate
	confirmations *confirm.Store
	audit         *audit.Logger
	authorized    map[string]bool // empty = anyone
	streaming     bool
	sweepCron     string
	pruneCron     string
	briefing      *Briefing
	briefingCron  string
	out           io.Writer

	mu     sync.Mutex
	queues map[string][]InboundMessage // per-thread FIFO backlog
	active map[string]bool             // threads with an in-flight turn
	wg     sync.WaitGroup
}

// DaemonOpts holds parameters for creating a Daemon.
type DaemonOpts struct {
	Adapter       Adapter
	Assistant     Assistant
	Gate          *security.Gate
	Confirmations *confirm.Store
	Audit         *audit.Logger
	Authorized    []string  // allowlist of user IDs; empty admits everyone
	Streaming     bool      // stream partial replies as they arrive
	SweepCron     string    // 5-field cron for the confirmation expiry sweep
	PruneCron     string    // 5-field cron for the audit retention prune
	Briefing      *Briefing // proactive daily briefing; nil disables it
	BriefingCron  string    // 5-field cron for the briefing
	Out           io.Writer // defaults to os.Stdout
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.Adapter == nil {
		return nil, fmt.Errorf("bot: adapter is required")
	}
	if opts.Assistant == nil {
		return nil, fmt.Errorf("bot: assistant is required")
	}
	if opts.Gate == nil {
		return nil, fmt.Errorf("bot: security gate is required")
	}
	if opts.Confirmations == nil {
		return nil, fmt.Errorf("bot: confirmation store is required")
	}
	if opts.Audit == nil {
		return nil, fmt.Errorf("bot: audit logger is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	authorized := make(map[string]bool, len(opts.Authorized))
	for _, id := range opts.Authorized {
		if id = strings.TrimSpace(id); id != "" {
			authorized[id] = true
		}
	}

	return &Daemon{
		adapter:       opts.Adapter,
		assistant:     opts.Assistant,
		gate:          opts.Gate,
		confirmations: opts.Confirmations,
		audit:         opts.Audit,
		authorized:    authorized,
		streaming:     opts.Streaming,
		sweepCron:     opts.SweepCron,
		pruneCron:     opts.PruneCron,
		briefing:      opts.Briefing,
		briefingCron:  opts.BriefingCron,
		out:           out,
		queues:        make(map[string][]InboundMessage),
		active:        make(map[string]bool),
	}, nil
}

// Run starts the daemon. It connects the adapter, pumps inbound messages,
// and blocks until the context is cancelled. On shutdown it waits for
// in-flight turns and closes the adapter gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Adjutant connecting...\n")
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("bot: connect: %w", err)
	}

	var botUserID string
	if bui, ok := d.adapter.(BotUserIDer); ok {
		botUserID = bui.BotUserID()
	}

	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("bot: listen: %w", err)
	}

	d.audit.Log(audit.Entry{Kind: models.AuditBotStart})
	go d.runSweeps(ctx)

	fmt.Fprintf(d.out, "Adjutant online\n")

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "Adjutant shutting down...\n")
			d.wg.Wait()
			d.audit.Log(audit.Entry{Kind: models.AuditBotStop})
			if err := d.adapter.Close(); err != nil {
				log.Printf("bot: close adapter: %v", err)
			}
			fmt.Fprintf(d.out, "Adjutant stopped\n")
			return nil

		case msg, ok := <-inbound:
			if !ok {
				fmt.Fprintf(d.out, "Adjutant inbound channel closed\n")
				d.wg.Wait()
				d.audit.Log(audit.Entry{Kind: models.AuditBotStop})
				return nil
			}
			if botUserID != "" && msg.UserID == botUserID {
				continue
			}
			d.enqueue(ctx, msg)
		}
	}
}

// threadKey serializes turns per conversation thread. A top-level message
// without a thread falls back to the channel, so direct-message channels
// behave as one rolling thread.
func threadKey(msg InboundMessage) string {
	threadID := msg.ThreadID
	if threadID == "" {
		threadID = msg.ChannelID
	}
	return msg.UserID + ":" + threadID
}

// enqueue appends the message to its thread's FIFO backlog and starts a
// drain worker if the thread has no turn in flight. Distinct threads run
// concurrently; messages within one thread run strictly in arrival order.
func (d *Daemon) enqueue(ctx context.Context, msg InboundMessage) {
	key := threadKey(msg)

	d.mu.Lock()
	d.queues[key] = append(d.queues[key], msg)
	if d.active[key] {
		d.mu.Unlock()
		return
	}
	d.active[key] = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.drain(ctx, key)
}

// drain processes the thread's backlog until it is empty, then releases
// the active slot.
func (d *Daemon) drain(ctx context.Context, key string) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.queues[key]
		if len(queue) == 0 {
			d.active[key] = false
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		msg := queue[0]
		d.queues[key] = queue[1:]
		d.mu.Unlock()

		d.handle(ctx, msg)
	}
}

// handle processes one inbound message end to end.
func (d *Daemon) handle(ctx context.Context, msg InboundMessage) {
	if msg.Interaction != nil {
		d.handleInteraction(ctx, msg)
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		return
	}

	if len(d.authorized) > 0 && !d.authorized[msg.UserID] {
		d.audit.Log(audit.Entry{
			Kind: models.AuditSecurity, UserID: msg.UserID, ThreadID: msg.ThreadID,
			Detail: "unauthorized user", Blocked: true,
		})
		d.reply(ctx, msg, replyUnauthorized)
		return
	}

	verdict := d.gate.Check(msg.UserID, msg.Text)
	if !verdict.Allowed {
		if verdict.Reason == security.ReasonRateLimited {
			d.reply(ctx, msg, fmt.Sprintf(replyRateLimited, verdict.RetryAfter.Round(time.Second)))
		} else {
			d.reply(ctx, msg, replyDenied)
		}
		return
	}

	threadID := msg.ThreadID
	if threadID == "" {
		threadID = msg.ChannelID
	}

	sink, flush := d.makeSink(ctx, msg)
	reply, err := d.assistant.Run(ctx, msg.UserID, threadID, msg.ChannelID, verdict.Sanitized, sink)
	if err != nil {
		log.Printf("bot: turn for %s: %v", msg.UserID, err)
		d.reply(ctx, msg, replyFailure)
		return
	}
	d.sendReply(ctx, msg, reply, flush)
}

// handleInteraction resolves a confirmation button click.
func (d *Daemon) handleInteraction(ctx context.Context, msg InboundMessage) {
	threadID := msg.ThreadID
	if threadID == "" {
		threadID = msg.ChannelID
	}
	it := msg.Interaction

	if !it.Confirmed {
		if err := d.assistant.CancelAction(it.ActionID, msg.UserID, threadID); err != nil {
			switch {
			case errors.Is(err, confirm.ErrExpired):
				d.reply(ctx, msg, replyExpired)
			case errors.Is(err, confirm.ErrNotPending):
				d.reply(ctx, msg, replyNotPending)
			default:
				log.Printf("bot: cancel action %s: %v", it.ActionID, err)
				d.reply(ctx, msg, replyFailure)
			}
			return
		}
		d.reply(ctx, msg, replyCancelled)
		return
	}

	reply, err := d.assistant.ExecuteConfirmed(ctx, it.ActionID, msg.UserID, threadID, msg.ChannelID)
	if err != nil {
		switch {
		case errors.Is(err, confirm.ErrExpired):
			d.reply(ctx, msg, replyExpired)
		case errors.Is(err, confirm.ErrNotPending):
			d.reply(ctx, msg, replyNotPending)
		default:
			log.Printf("bot: execute action %s: %v", it.ActionID, err)
			d.reply(ctx, msg, replyFailure)
		}
		return
	}
	d.sendReply(ctx, msg, reply, nil)
}

// makeSink returns a streaming sink that forwards completed paragraphs as
// they arrive, plus a flush func listing the raw chunks already sent.
// Returns a nil sink when streaming is disabled.
//
// The sink sees deltas from every step of the turn, not just the one that
// produces the final answer, so sendReply matches the flushed chunks against
// the final text instead of trusting a byte offset into it.
func (d *Daemon) makeSink(ctx context.Context, msg InboundMessage) (agent.Sink, func() []string) {
	if !d.streaming {
		return nil, nil
	}
	var buf strings.Builder
	var flushed []string
	sent := 0
	sink := func(delta string) error {
		buf.WriteString(delta)
		text := buf.String()
		if idx := strings.LastIndex(text[sent:], "\n\n"); idx >= 0 {
			raw := text[sent : sent+idx+2]
			if chunk := strings.TrimSpace(raw); chunk != "" {
				if err := d.reply(ctx, msg, chunk); err != nil {
					return err
				}
			}
			flushed = append(flushed, raw)
			sent += idx + 2
		}
		return nil
	}
	flush := func() []string { return flushed }
	return sink, flush
}

// sendReply delivers the assistant's reply, skipping any prefix already
// streamed and attaching confirmation controls when an action is pending.
func (d *Daemon) sendReply(ctx context.Context, msg InboundMessage, reply agent.Reply, flush func() []string) {
	text := reply.Text
	if flush != nil {
		// Flushed chunks from earlier steps of the turn are not part of
		// the final text and fail the prefix match; only chunks from the
		// final answer itself trim it.
		for _, raw := range flush() {
			if rest, ok := strings.CutPrefix(text, raw); ok {
				text = rest
			}
		}
		text = strings.TrimSpace(text)
	}

	out := OutboundMessage{
		ChannelID: msg.ChannelID,
		ThreadID:  msg.ThreadID,
		Text:      text,
	}
	if reply.Confirm != nil {
		c := reply.Confirm
		out.Confirm = &Confirm{
			ActionID:  c.ActionID,
			ToolName:  c.ToolName,
			Summary:   c.Summary,
			ExpiresAt: c.ExpiresAt,
		}
		if out.Text == "" {
			out.Text = c.Summary + "\n" + replyConfirmFooter
		}
	}
	if out.Text == "" && out.Confirm == nil {
		return
	}
	if err := d.adapter.Send(ctx, out); err != nil {
		log.Printf("bot: send reply: %v", err)
	}
}

// reply sends a plain text message back to the originating thread.
func (d *Daemon) reply(ctx context.Context, msg InboundMessage, text string) error {
	err := d.adapter.Send(ctx, OutboundMessage{
		ChannelID: msg.ChannelID,
		ThreadID:  msg.ThreadID,
		Text:      text,
	})
	if err != nil {
		log.Printf("bot: send reply: %v", err)
	}
	return err
}

// sendBriefing composes and posts the daily briefing to the default
// channel.
func (d *Daemon) sendBriefing(ctx context.Context) {
	text := d.briefing.Compose(ctx, time.Now())
	if text == "" {
		return
	}
	if err := d.adapter.Send(ctx, OutboundMessage{Text: text}); err != nil {
		log.Printf("bot: send briefing: %v", err)
		return
	}
	d.audit.Log(audit.Entry{Kind: models.AuditMessage, Detail: "daily briefing"})
}

// runSweeps fires the confirmation expiry sweep, the audit prune, and the
// daily briefing on their cron schedules. A job whose cron is empty or
// invalid never fires.
func (d *Daemon) runSweeps(ctx context.Context) {
	var sweepTimer, pruneTimer, briefTimer *time.Timer
	if d.sweepCron != "" {
		if wait := nextCronDuration(d.sweepCron); wait > 0 {
			sweepTimer = time.NewTimer(wait)
		}
	}
	if d.pruneCron != "" {
		if wait := nextCronDuration(d.pruneCron); wait > 0 {
			pruneTimer = time.NewTimer(wait)
		}
	}
	if d.briefing != nil && d.briefingCron != "" {
		if wait := nextCronDuration(d.briefingCron); wait > 0 {
			briefTimer = time.NewTimer(wait)
		}
	}
	defer func() {
		if sweepTimer != nil {
			sweepTimer.Stop()
		}
		if pruneTimer != nil {
			pruneTimer.Stop()
		}
		if briefTimer != nil {
			briefTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timerChan(sweepTimer):
			if n, err := d.confirmations.Sweep(); err != nil {
				log.Printf("bot: confirmation sweep: %v", err)
			} else if n > 0 {
				log.Printf("bot: expired %d stale confirmations", n)
			}
			if wait := nextCronDuration(d.sweepCron); wait > 0 {
				sweepTimer.Reset(wait)
			}
		case <-timerChan(pruneTimer):
			if n, err := d.audit.Prune(); err != nil {
				log.Printf("bot: audit prune: %v", err)
			} else if n > 0 {
				log.Printf("bot: pruned %d audit entries", n)
			}
			if wait := nextCronDuration(d.pruneCron); wait > 0 {
				pruneTimer.Reset(wait)
			}
		case <-timerChan(briefTimer):
			d.sendBriefing(ctx)
			if wait := nextCronDuration(d.briefingCron); wait > 0 {
				briefTimer.Reset(wait)
			}
		}
	}
}

// timerChan returns the timer's channel, or nil if the timer is nil.
// A nil channel blocks forever in select, which is the desired behavior
// when a sweep is not scheduled.
func timerChan(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
