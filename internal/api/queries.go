package api

import (
	"time"

	"gorm.io/gorm"

	"github.com/nvasko/adjutant/internal/models"
)

// ActionRow holds a live pending action for display. Args are omitted; the
// API reports that an action is waiting, not what its payload contains.
type ActionRow struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ThreadID  string    `json:"thread_id"`
	ToolName  string    `json:"tool_name"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingActions returns unexpired pending actions, oldest first, optionally
// filtered by user.
func PendingActions(db *gorm.DB, userID string) ([]ActionRow, error) {
	q := db.Model(&models.PendingAction{}).
		Where("state = ? AND expires_at > ?", models.ActionPending, time.Now())
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}

	var actions []models.PendingAction
	if err := q.Order("created_at ASC").Find(&actions).Error; err != nil {
		return nil, err
	}

	rows := make([]ActionRow, len(actions))
	for i, a := range actions {
		rows[i] = ActionRow{
			ID:        a.ID,
			UserID:    a.UserID,
			ThreadID:  a.ThreadID,
			ToolName:  a.ToolName,
			ExpiresAt: a.ExpiresAt,
			CreatedAt: a.CreatedAt,
		}
	}
	return rows, nil
}

// ThreadRow holds conversation thread metadata for display.
type ThreadRow struct {
	ThreadID     string    `json:"thread_id"`
	ChannelID    string    `json:"channel_id"`
	Messages     int64     `json:"messages"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserThreads returns a user's conversation threads with message counts,
// most recently active first. Message bodies stay out of the API.
func UserThreads(db *gorm.DB, userID string) ([]ThreadRow, error) {
	var threads []models.ConversationThread
	if err := db.Where("user_id = ?", userID).
		Order("last_activity DESC").Find(&threads).Error; err != nil {
		return nil, err
	}

	rows := make([]ThreadRow, len(threads))
	for i, th := range threads {
		var count int64
		if err := db.Model(&models.ConversationMessage{}).
			Where("thread_ref = ?", th.ID).Count(&count).Error; err != nil {
			return nil, err
		}
		rows[i] = ThreadRow{
			ThreadID:     th.ThreadID,
			ChannelID:    th.ChannelID,
			Messages:     count,
			LastActivity: th.LastActivity,
			CreatedAt:    th.CreatedAt,
		}
	}
	return rows, nil
}
