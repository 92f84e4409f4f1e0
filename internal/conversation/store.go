// Package conversation persists chat history per (user, thread) pair.
// Messages are append-only; a thread idle past the configured timeout
// resumes with an empty context window while keeping its rows for audit.
package conversation

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/nvasko/adjutant/internal/models"
)

// Roles stored on conversation messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn handed back to callers building LLM context.
type Message struct {
	Role     string
	Content  string
	ToolCall string
	Sequence int
}

// Store reads and writes conversation history through GORM.
type Store struct {
	db          *gorm.DB
	idleTimeout time.Duration
	maxHistory  int

	now func() time.Time
}

// StoreOpts configures a conversation store.
type StoreOpts struct {
	DB          *gorm.DB
	IdleTimeout time.Duration // defaults to 30 minutes
	MaxHistory  int           // defaults to 20 messages
}

// NewStore builds a Store, applying defaults for unset options.
func NewStore(opts StoreOpts) (*Store, error) {
	if opts.DB == nil {
		return nil, errors.New("conversation: database handle is required")
	}
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	maxHistory := opts.MaxHistory
	if maxHistory <= 0 {
		maxHistory = 20
	}
	return &Store{
		db:          opts.DB,
		idleTimeout: idle,
		maxHistory:  maxHistory,
		now:         time.Now,
	}, nil
}

// Append records one message on the (user, thread) conversation and returns
// the sequence it was assigned. Appending to a thread idle past the timeout
// advances the context window so stale turns stay out of future history.
func (s *Store) Append(userID, threadID, channelID, role, content, toolCall string) (int, error) {
	now := s.now()
	var seq int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		thread, err := s.threadForUpdate(tx, userID, threadID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			thread = &models.ConversationThread{
				UserID:       userID,
				ThreadID:     threadID,
				ChannelID:    channelID,
				LastActivity: now,
			}
			if err := tx.Create(thread).Error; err != nil {
				return fmt.Errorf("create thread: %w", err)
			}
		} else if err != nil {
			return err
		}

		var last models.ConversationMessage
		next := 1
		err = tx.Where("thread_ref = ?", thread.ID).
			Order("sequence DESC").
			First(&last).Error
		switch {
		case err == nil:
			next = last.Sequence + 1
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return fmt.Errorf("last message: %w", err)
		}

		updates := map[string]any{"last_activity": now}
		if s.expired(thread.LastActivity, now) {
			updates["context_start"] = next
		}
		if err := tx.Model(thread).Updates(updates).Error; err != nil {
			return fmt.Errorf("touch thread: %w", err)
		}

		msg := models.ConversationMessage{
			ThreadRef: thread.ID,
			Sequence:  next,
			Role:      role,
			Content:   content,
			ToolCall:  toolCall,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		seq = next
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("conversation: append: %w", err)
	}
	return seq, nil
}

// History returns the live context window for (user, thread), oldest first.
// A thread idle past the timeout, or one that was never seen, yields an
// empty slice.
func (s *Store) History(userID, threadID string) ([]Message, error) {
	var thread models.ConversationThread
	err := s.db.Where("user_id = ? AND thread_id = ?", userID, threadID).
		First(&thread).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: load thread: %w", err)
	}
	if s.expired(thread.LastActivity, s.now()) {
		return nil, nil
	}

	var rows []models.ConversationMessage
	err = s.db.Where("thread_ref = ? AND sequence >= ?", thread.ID, thread.ContextStart).
		Order("sequence DESC").
		Limit(s.maxHistory).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("conversation: load messages: %w", err)
	}

	out := make([]Message, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = Message{
			Role:     row.Role,
			Content:  row.Content,
			ToolCall: row.ToolCall,
			Sequence: row.Sequence,
		}
	}
	return out, nil
}

// LastSequence returns the highest sequence on the thread, or 0 when the
// thread does not exist or has no messages. Callers use it to mark a
// rollback point before a turn starts.
func (s *Store) LastSequence(userID, threadID string) (int, error) {
	var thread models.ConversationThread
	err := s.db.Where("user_id = ? AND thread_id = ?", userID, threadID).
		First(&thread).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("conversation: load thread: %w", err)
	}
	var last models.ConversationMessage
	err = s.db.Where("thread_ref = ?", thread.ID).
		Order("sequence DESC").
		First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("conversation: last sequence: %w", err)
	}
	return last.Sequence, nil
}

// TrimAfter deletes every message with a sequence greater than seq,
// rolling the thread back to a known-good point after a failed turn.
func (s *Store) TrimAfter(userID, threadID string, seq int) error {
	var thread models.ConversationThread
	err := s.db.Where("user_id = ? AND thread_id = ?", userID, threadID).
		First(&thread).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("conversation: load thread: %w", err)
	}
	err = s.db.Where("thread_ref = ? AND sequence > ?", thread.ID, seq).
		Delete(&models.ConversationMessage{}).Error
	if err != nil {
		return fmt.Errorf("conversation: trim: %w", err)
	}
	return nil
}

// Channel returns the channel the thread was last seen on, for replies
// routed outside the originating event.
func (s *Store) Channel(userID, threadID string) (string, error) {
	var thread models.ConversationThread
	err := s.db.Where("user_id = ? AND thread_id = ?", userID, threadID).
		First(&thread).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("conversation: load thread: %w", err)
	}
	return thread.ChannelID, nil
}

func (s *Store) threadForUpdate(tx *gorm.DB, userID, threadID string) (*models.ConversationThread, error) {
	var thread models.ConversationThread
	err := tx.Where("user_id = ? AND thread_id = ?", userID, threadID).
		First(&thread).Error
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

func (s *Store) expired(lastActivity, now time.Time) bool {
	return !lastActivity.IsZero() && now.Sub(lastActivity) > s.idleTimeout
}
