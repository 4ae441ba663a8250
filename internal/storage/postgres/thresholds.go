package postgres

import (
	"context"
	"fmt"
	"time"
)

// ThresholdClaimStore implements the cooldown compare-and-set on the
// threshold_claims table.
type ThresholdClaimStore struct {
	db *DB
}

func NewThresholdClaimStore(db *DB) *ThresholdClaimStore {
	return &ThresholdClaimStore{db: db}
}

// Claim is a single atomic upsert: the conditional ON CONFLICT update only
// fires when the existing claim has aged past the cooldown, so two concurrent
// claims for the same (user, cap, threshold) cannot both succeed.
func (s *ThresholdClaimStore) Claim(ctx context.Context, userID int64, capID string, thresholdPercent int, now time.Time, cooldown time.Duration) (bool, error) {
	cutoff := now.Add(-cooldown)
	query := `
        INSERT INTO threshold_claims (user_id, cap_id, threshold_percent, last_notified_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id, cap_id, threshold_percent)
        DO UPDATE SET last_notified_at = EXCLUDED.last_notified_at
        WHERE threshold_claims.last_notified_at <= $5`
	result, err := s.db.Pool.Exec(ctx, query, userID, capID, thresholdPercent, now, cutoff)
	if err != nil {
		return false, fmt.Errorf("failed to claim threshold %d for user_id %d cap %s: %w", thresholdPercent, userID, capID, err)
	}
	return result.RowsAffected() > 0, nil
}
