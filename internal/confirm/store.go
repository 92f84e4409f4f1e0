// Package confirm holds proposed mutating actions until the user approves,
// rejects, or lets them lapse. Every resolution is a guarded UPDATE on the
// pending row, so an action is confirmed at most once no matter how many
// duplicate button events arrive.
package confirm

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nvasko/adjutant/internal/models"
)

// ErrNotPending is returned when a confirm or cancel names an action that is
// no longer in the live set: already resolved, unknown, or owned by a
// different user or thread.
var ErrNotPending = errors.New("confirm: action is not pending")

// ErrExpired is returned when the named action lapsed before anyone
// resolved it, whether or not the sweep has marked the row yet.
var ErrExpired = errors.New("confirm: action expired")

// Action is a pending mutation handed back to callers.
type Action struct {
	ID        string
	UserID    string
	ThreadID  string
	ToolName  string
	Args      string
	ExpiresAt time.Time
}

// Store manages the pending-action lifecycle through GORM.
type Store struct {
	db      *gorm.DB
	timeout time.Duration

	now func() time.Time
}

// StoreOpts configures a confirmation store.
type StoreOpts struct {
	DB      *gorm.DB
	Timeout time.Duration // defaults to 5 minutes
}

// NewStore builds a Store, applying defaults for unset options.
func NewStore(opts StoreOpts) (*Store, error) {
	if opts.DB == nil {
		return nil, errors.New("confirm: database handle is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Store{db: opts.DB, timeout: timeout, now: time.Now}, nil
}

// Propose records a mutating tool call awaiting confirmation and returns it
// with its generated ID and expiry.
func (s *Store) Propose(userID, threadID, toolName, args string) (Action, error) {
	row := models.PendingAction{
		ID:        uuid.NewString(),
		UserID:    userID,
		ThreadID:  threadID,
		ToolName:  toolName,
		Args:      args,
		State:     models.ActionPending,
		ExpiresAt: s.now().Add(s.timeout),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return Action{}, fmt.Errorf("confirm: propose: %w", err)
	}
	return toAction(row), nil
}

// Confirm resolves the action for execution. The guarded update only
// succeeds while the row is still pending, unexpired, and owned by the
// same (user, thread); a lapsed action returns ErrExpired and anything
// else returns ErrNotPending.
func (s *Store) Confirm(actionID, userID, threadID string) (Action, error) {
	return s.resolve(actionID, userID, threadID, models.ActionConfirmed)
}

// Cancel rejects the action. Same ownership and liveness rules as Confirm.
func (s *Store) Cancel(actionID, userID, threadID string) (Action, error) {
	return s.resolve(actionID, userID, threadID, models.ActionCancelled)
}

func (s *Store) resolve(actionID, userID, threadID, state string) (Action, error) {
	now := s.now()
	var row models.PendingAction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PendingAction{}).
			Where("id = ? AND user_id = ? AND thread_id = ? AND state = ? AND expires_at > ?",
				actionID, userID, threadID, models.ActionPending, now).
			Updates(map[string]any{"state": state, "resolved_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Re-read to tell a lapsed action apart from a resolved,
			// unknown, or foreign one.
			var stale models.PendingAction
			err := tx.First(&stale, "id = ? AND user_id = ? AND thread_id = ?",
				actionID, userID, threadID).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				return ErrNotPending
			case err != nil:
				return err
			case stale.State == models.ActionExpired,
				stale.State == models.ActionPending && !stale.ExpiresAt.After(now):
				return ErrExpired
			default:
				return ErrNotPending
			}
		}
		return tx.First(&row, "id = ?", actionID).Error
	})
	if errors.Is(err, ErrNotPending) || errors.Is(err, ErrExpired) {
		return Action{}, err
	}
	if err != nil {
		return Action{}, fmt.Errorf("confirm: resolve: %w", err)
	}
	return toAction(row), nil
}

// Pending returns the live actions for a user, oldest first.
func (s *Store) Pending(userID string) ([]Action, error) {
	var rows []models.PendingAction
	err := s.db.Where("user_id = ? AND state = ? AND expires_at > ?",
		userID, models.ActionPending, s.now()).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("confirm: pending: %w", err)
	}
	out := make([]Action, len(rows))
	for i, row := range rows {
		out[i] = toAction(row)
	}
	return out, nil
}

// Sweep marks every overdue pending action expired and returns how many
// rows it moved. Run it on a schedule so lapsed proposals leave the live
// set even if nobody clicks anything.
func (s *Store) Sweep() (int64, error) {
	now := s.now()
	res := s.db.Model(&models.PendingAction{}).
		Where("state = ? AND expires_at <= ?", models.ActionPending, now).
		Updates(map[string]any{"state": models.ActionExpired, "resolved_at": now})
	if res.Error != nil {
		return 0, fmt.Errorf("confirm: sweep: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func toAction(row models.PendingAction) Action {
	return Action{
		ID:        row.ID,
		UserID:    row.UserID,
		ThreadID:  row.ThreadID,
		ToolName:  row.ToolName,
		Args:      row.Args,
		ExpiresAt: row.ExpiresAt,
	}
}
