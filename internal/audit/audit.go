// Package audit provides a durable append-only trail of bot activity.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/nvasko/adjutant/internal/models"
)

// DefaultRetentionDays is how long entries are kept before Prune removes them.
const DefaultRetentionDays = 90

// maxPayloadLen caps stored payloads so a single long message cannot bloat
// the trail.
const maxPayloadLen = 500

// Logger writes audit entries to the database. Writes never fail the hot
// path: a failed insert is logged and dropped rather than surfaced to the
// caller's user.
type Logger struct {
	db            *gorm.DB
	logContent    bool
	retentionDays int
}

// LoggerOpts holds parameters for creating a Logger.
type LoggerOpts struct {
	DB            *gorm.DB
	LogContent    bool // false stores sha256 hashes instead of raw text
	RetentionDays int  // defaults to DefaultRetentionDays
}

// NewLogger creates a Logger.
func NewLogger(opts LoggerOpts) (*Logger, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("audit: db is required")
	}
	retention := opts.RetentionDays
	if retention <= 0 {
		retention = DefaultRetentionDays
	}
	return &Logger{
		db:            opts.DB,
		logContent:    opts.LogContent,
		retentionDays: retention,
	}, nil
}

// Entry is the caller-facing audit record before persistence.
type Entry struct {
	Kind     string
	UserID   string
	ThreadID string
	Payload  string
	Detail   string
	Duration time.Duration
	Blocked  bool
}

// Log persists an entry. Payload content is hashed unless log_content is
// enabled; security and routing details are always stored verbatim.
func (l *Logger) Log(e Entry) {
	payload := e.Payload
	if !l.logContent && payload != "" {
		payload = ContentHash(payload)
	}
	if len(payload) > maxPayloadLen {
		payload = payload[:maxPayloadLen]
	}

	row := models.AuditEntry{
		Kind:       e.Kind,
		UserID:     e.UserID,
		ThreadID:   e.ThreadID,
		Payload:    payload,
		Detail:     e.Detail,
		DurationMs: e.Duration.Milliseconds(),
		Blocked:    e.Blocked,
	}
	if err := l.db.Create(&row).Error; err != nil {
		log.Printf("audit: write %s entry: %v", e.Kind, err)
	}
}

// Query filters for Recent.
type Query struct {
	UserID string
	Kind   string
	Limit  int
}

// Recent returns the newest entries matching the query, newest first.
func (l *Logger) Recent(q Query) ([]models.AuditEntry, error) {
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	tx := l.db.Model(&models.AuditEntry{})
	if q.UserID != "" {
		tx = tx.Where("user_id = ?", q.UserID)
	}
	if q.Kind != "" {
		tx = tx.Where("kind = ?", q.Kind)
	}

	var entries []models.AuditEntry
	if err := tx.Order("id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	return entries, nil
}

// Prune removes entries older than the retention window. Returns the number
// of rows deleted.
func (l *Logger) Prune() (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -l.retentionDays)
	result := l.db.Where("created_at < ?", cutoff).Delete(&models.AuditEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("audit: prune: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ContentHash returns a short sha256 fingerprint of text, matching what Log
// stores when content logging is disabled.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}
