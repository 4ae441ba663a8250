// Package threshold turns usage updates into debounced threshold-crossing
// events. Each configured threshold is evaluated independently, so one jump
// can admit several crossings at once.
package threshold

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"notification-engine/internal/metrics"
	"notification-engine/internal/models"
	"notification-engine/internal/storage"
)

// Tracker evaluates usage updates against the configured thresholds, claiming
// each crossed threshold through the store's atomic compare-and-set before
// emitting an event for it.
type Tracker struct {
	claims     storage.ThresholdClaimStore
	thresholds []int
	cooldown   time.Duration
	logger     *logrus.Logger
	now        func() time.Time
}

func NewTracker(claims storage.ThresholdClaimStore, thresholds []int, cooldown time.Duration, logger *logrus.Logger) *Tracker {
	sorted := make([]int, len(thresholds))
	copy(sorted, thresholds)
	sort.Ints(sorted)
	return &Tracker{
		claims:     claims,
		thresholds: sorted,
		cooldown:   cooldown,
		logger:     logger,
		now:        time.Now,
	}
}

// SetNow overrides the clock; used by tests.
func (t *Tracker) SetNow(now func() time.Time) {
	t.now = now
}

// EvaluateUsageUpdate returns one UsageThresholdCrossed event per threshold
// that newUsagePercent reaches and whose cooldown claim succeeds. The claim
// records last_notified_at in the same operation that admits the event; a
// claim error suppresses that threshold rather than risking a duplicate send,
// and never blocks the remaining thresholds.
func (t *Tracker) EvaluateUsageUpdate(ctx context.Context, userID int64, capID string, newUsagePercent float64) ([]models.Event, error) {
	now := t.now()
	var events []models.Event
	for _, th := range t.thresholds {
		if newUsagePercent < float64(th) {
			continue
		}
		claimed, err := t.claims.Claim(ctx, userID, capID, th, now, t.cooldown)
		if err != nil {
			t.logger.WithFields(logrus.Fields{
				"user_id": userID,
				"cap_id":  capID,
				"percent": th,
			}).WithError(err).Error("Threshold claim failed, suppressing")
			continue
		}
		if !claimed {
			metrics.ThresholdsSuppressed.Inc()
			t.logger.WithFields(logrus.Fields{
				"user_id": userID,
				"cap_id":  capID,
				"percent": th,
			}).Debug("Threshold within cooldown, suppressed")
			continue
		}
		events = append(events, models.Event{
			ID:               uuid.NewString(),
			Kind:             models.EventUsageThresholdCrossed,
			Severity:         models.SeverityCritical,
			Title:            fmt.Sprintf("Usage reached %d%% of cap %s", th, capID),
			Message:          fmt.Sprintf("Usage on cap %s is at %.1f%%, past the %d%% threshold.", capID, newUsagePercent, th),
			SubjectUserID:    userID,
			CapID:            capID,
			ThresholdPercent: th,
			UsagePercent:     newUsagePercent,
			CreatedAt:        now,
		})
	}
	return events, nil
}
