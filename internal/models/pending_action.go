package models

import "time"

// PendingAction states.
const (
	ActionPending   = "pending"
	ActionConfirmed = "confirmed"
	ActionCancelled = "cancelled"
	ActionExpired   = "expired"
)

// PendingAction is a proposed mutating tool invocation awaiting explicit
// user confirmation. The ID is a random UUID so action IDs cannot be
// guessed or replayed across threads. Rows never leave the table; terminal
// states (confirmed/cancelled/expired) keep the row as an audit trail but
// remove it from the live set.
type PendingAction struct {
	ID         string    `gorm:"primaryKey;size:36"`
	UserID     string    `gorm:"size:64;not null;index"`
	ThreadID   string    `gorm:"size:128;not null"`
	ToolName   string    `gorm:"size:64;not null"`
	Args       string    `gorm:"type:text;not null"` // JSON-encoded tool arguments
	State      string    `gorm:"size:16;not null;default:pending;index"`
	ExpiresAt  time.Time `gorm:"not null;index"`
	CreatedAt  time.Time
	ResolvedAt *time.Time
}
