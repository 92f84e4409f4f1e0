package models

import "time"

// ConversationThread tracks a single conversation keyed by (user, thread).
// A thread is resumed only while its LastActivity is within the configured
// idle window; older threads stay in the table but start a fresh context.
type ConversationThread struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"size:64;not null;index:idx_user_thread,unique"`
	ThreadID  string `gorm:"size:128;not null;index:idx_user_thread,unique"`
	ChannelID string `gorm:"size:128"`
	// ContextStart is the first message sequence in the live context window.
	// Resuming an idle-expired thread advances it past the stale history.
	ContextStart int       `gorm:"not null;default:0"`
	LastActivity time.Time `gorm:"index"`
	CreatedAt    time.Time

	Messages []ConversationMessage `gorm:"foreignKey:ThreadRef"`
}

// ConversationMessage is one immutable turn in a conversation. Messages are
// only ever appended; Sequence orders them within a thread.
type ConversationMessage struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	ThreadRef uint   `gorm:"not null;index"`
	Sequence  int    `gorm:"not null"`
	Role      string `gorm:"size:16;not null"` // "user", "assistant", "tool"
	Content   string `gorm:"type:text;not null"`
	ToolCall  string `gorm:"type:text"` // JSON tool-call payload, empty for plain turns
	CreatedAt time.Time
}
