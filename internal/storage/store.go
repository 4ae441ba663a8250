package storage

import (
	"context"
	"errors"
	"time"

	"notification-engine/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// NotificationStore persists delivery attempt records. Create is the dedup
// boundary: exactly one row per (event, user, channel).
type NotificationStore interface {
	Create(ctx context.Context, n models.Notification) error
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	ListByUser(ctx context.Context, userID int64, limit int, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, ids []string, userID int64) (int64, error)
}

// PreferenceStore persists per-user notification preferences.
type PreferenceStore interface {
	Get(ctx context.Context, userID int64) (models.Preference, error)
	// GetOrCreate returns the stored preference, lazily inserting the
	// documented defaults when no row exists.
	GetOrCreate(ctx context.Context, userID int64) (models.Preference, error)
	Update(ctx context.Context, userID int64, patch models.PreferencePatch) (models.Preference, error)
}

// ThresholdClaimStore records the last notification time per
// (user, cap, threshold). Claim must be a single atomic compare-and-set
// against the persisted state: it succeeds only when no claim exists or the
// existing one is at least cooldown old, and records now in the same
// operation. Two concurrent claims for the same key must not both succeed.
type ThresholdClaimStore interface {
	Claim(ctx context.Context, userID int64, capID string, thresholdPercent int, now time.Time, cooldown time.Duration) (bool, error)
}
