package models

import "time"

// Audit entry kinds.
const (
	AuditMessage  = "message"
	AuditToolExec = "tool-exec"
	AuditSecurity = "security"
	AuditRouting  = "routing"
	AuditBotStart = "bot-start"
	AuditBotStop  = "bot-stop"
	AuditError    = "error"
)

// AuditEntry is one write-once record in the audit trail. Payload holds
// either the raw content or a truncated sha256 hash of it, depending on
// the audit.log_content config toggle.
type AuditEntry struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	Kind       string `gorm:"size:16;not null;index"`
	UserID     string `gorm:"size:64;index"`
	ThreadID   string `gorm:"size:128"`
	Payload    string `gorm:"type:text"`
	Detail     string `gorm:"type:text"` // secondary detail (tool name, chosen domain, pattern hit)
	DurationMs int64
	Blocked    bool
	CreatedAt  time.Time `gorm:"index"`
}
