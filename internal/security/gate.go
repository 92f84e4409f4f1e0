// Package security screens inbound chat messages before they reach the
// agent: per-user rate limiting, prompt-injection detection, and input
// sanitization, with policy set by the configured enforcement level.
package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/nvasko/adjutant/internal/audit"
	"github.com/nvasko/adjutant/internal/models"
)

// Enforcement levels.
const (
	LevelStrict     = "strict"     // deny on any injection match
	LevelModerate   = "moderate"   // neutralize matched spans, proceed flagged
	LevelPermissive = "permissive" // log only, proceed unchanged
)

// Denial reasons reported in Verdict.Reason.
const (
	ReasonRateLimited = "rate_limited"
	ReasonInjection   = "injection_pattern"
)

// filteredMarker replaces neutralized injection spans at the moderate level.
const filteredMarker = "[filtered]"

// Verdict is the outcome of screening one message.
type Verdict struct {
	Allowed    bool
	Sanitized  string        // text to pass downstream when Allowed
	Reason     string        // set when denied
	Flagged    bool          // an injection or sensitive-data pattern matched
	RetryAfter time.Duration // set when rate-limited
}

// Gate screens inbound messages. Safe for concurrent use.
type Gate struct {
	level    string
	limiter  *rateLimiter
	audit    *audit.Logger
	maxInput int
}

// GateOpts holds parameters for creating a Gate.
type GateOpts struct {
	Level             string        // defaults to LevelModerate
	RateLimitRequests int           // defaults to 30
	RateLimitWindow   time.Duration // defaults to 60s
	RateLimitBlock    time.Duration // defaults to 300s
	MaxInputLength    int           // defaults to 10000 runes
	Audit             *audit.Logger
}

// NewGate creates a Gate.
func NewGate(opts GateOpts) (*Gate, error) {
	if opts.Audit == nil {
		return nil, fmt.Errorf("security: audit logger is required")
	}
	level := opts.Level
	if level == "" {
		level = LevelModerate
	}
	switch level {
	case LevelStrict, LevelModerate, LevelPermissive:
	default:
		return nil, fmt.Errorf("security: unknown level %q", level)
	}

	limit := opts.RateLimitRequests
	if limit <= 0 {
		limit = 30
	}
	window := opts.RateLimitWindow
	if window <= 0 {
		window = 60 * time.Second
	}
	block := opts.RateLimitBlock
	if block <= 0 {
		block = 300 * time.Second
	}
	maxInput := opts.MaxInputLength
	if maxInput <= 0 {
		maxInput = 10000
	}

	return &Gate{
		level:    level,
		limiter:  newRateLimiter(limit, window, block),
		audit:    opts.Audit,
		maxInput: maxInput,
	}, nil
}

// Check screens one inbound message from userID. Rate limiting runs first;
// a blocked user's message is never inspected further. Pattern matches and
// rate triggers always produce an audit entry of kind security, whether or
// not the message is ultimately allowed.
func (g *Gate) Check(userID, text string) Verdict {
	if ok, retry := g.limiter.allow(userID); !ok {
		g.audit.Log(audit.Entry{
			Kind:    models.AuditSecurity,
			UserID:  userID,
			Detail:  fmt.Sprintf("rate limit exceeded, blocked for %s", retry.Round(time.Second)),
			Blocked: true,
		})
		return Verdict{Reason: ReasonRateLimited, RetryAfter: retry}
	}

	sanitized, flagged := g.sanitize(userID, text)

	if flagged && g.level == LevelStrict {
		return Verdict{Reason: ReasonInjection, Flagged: true}
	}
	if g.level == LevelPermissive {
		// Matches were logged by sanitize; the text keeps injection
		// phrasing intact but is still whitespace-normalized, at every
		// level, so downstream length and dedupe handling sees one form.
		return Verdict{Allowed: true, Sanitized: g.normalize(text), Flagged: flagged}
	}
	return Verdict{Allowed: true, Sanitized: sanitized, Flagged: flagged}
}

// ClearRateLimit drops the rate bucket for a user.
func (g *Gate) ClearRateLimit(userID string) {
	g.limiter.clear(userID)
}

// sanitize strips suspicious runes, neutralizes injection matches, flags
// sensitive data, and normalizes the result. Every pattern hit is audited.
func (g *Gate) sanitize(userID, text string) (string, bool) {
	flagged := false
	sanitized := stripSuspiciousRunes(text)

	for _, pat := range injectionPatterns {
		match := pat.FindString(sanitized)
		if match == "" {
			continue
		}
		flagged = true
		g.audit.Log(audit.Entry{
			Kind:    models.AuditSecurity,
			UserID:  userID,
			Payload: text,
			Detail:  fmt.Sprintf("injection pattern: %s", truncate(match, 50)),
			Blocked: g.level == LevelStrict,
		})
		if g.level == LevelStrict {
			return "", true
		}
		sanitized = pat.ReplaceAllString(sanitized, filteredMarker)
	}

	for _, pat := range sensitivePatterns {
		if pat.MatchString(sanitized) {
			flagged = true
			g.audit.Log(audit.Entry{
				Kind:   models.AuditSecurity,
				UserID: userID,
				Detail: "possible sensitive data in message",
			})
			break
		}
	}

	return g.normalize(sanitized), flagged
}

// normalize collapses whitespace and truncates oversized input.
func (g *Gate) normalize(text string) string {
	out := strings.Join(strings.Fields(text), " ")
	runes := []rune(out)
	if len(runes) > g.maxInput {
		out = string(runes[:g.maxInput]) + "... [truncated]"
	}
	return out
}

func stripSuspiciousRunes(text string) string {
	return strings.Map(func(r rune) rune {
		if suspiciousRunes[r] {
			return -1
		}
		return r
	}, text)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
