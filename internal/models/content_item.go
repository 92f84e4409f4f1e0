package models

import "time"

// ContentItem is one indexed piece of aggregated content (an email, a
// document, a chat message, an event) written by the sync pipeline. The bot
// only reads this table, through the search tool.
type ContentItem struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Source    string    `gorm:"size:32;not null;index"` // "gmail", "drive", "slack", "github", ...
	SourceID  string    `gorm:"size:128;index"`
	Title     string    `gorm:"size:512"`
	Body      string    `gorm:"type:text"`
	Author    string    `gorm:"size:128"`
	URL       string    `gorm:"size:512"`
	ItemTime  time.Time `gorm:"index"` // when the underlying item happened
	CreatedAt time.Time
}
