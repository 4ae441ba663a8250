package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"notification-engine/internal/models"
	"notification-engine/internal/storage"
)

// PreferenceStore persists per-user notification preferences.
type PreferenceStore struct {
	db *DB
}

func NewPreferenceStore(db *DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

const preferenceColumns = `
        user_id, email_enabled, sms_enabled, in_app_enabled, push_enabled,
        outage_alerts, maintenance_alerts, billing_alerts, marketing_emails,
        minimum_severity, quiet_hours_start, quiet_hours_end, phone_number,
        timezone, created_at, updated_at`

func (s *PreferenceStore) Get(ctx context.Context, userID int64) (models.Preference, error) {
	query := `SELECT` + preferenceColumns + `
        FROM notification_preferences
        WHERE user_id = $1`
	p, err := scanPreference(s.db.Pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Preference{}, storage.ErrNotFound
		}
		return models.Preference{}, fmt.Errorf("failed to get preferences for user_id %d: %w", userID, err)
	}
	return p, nil
}

// GetOrCreate inserts the documented defaults on first access. The insert uses
// ON CONFLICT DO NOTHING so two concurrent first reads converge on one row.
func (s *PreferenceStore) GetOrCreate(ctx context.Context, userID int64) (models.Preference, error) {
	def := models.DefaultPreference(userID)
	insert := `
        INSERT INTO notification_preferences (
            user_id, email_enabled, sms_enabled, in_app_enabled, push_enabled,
            outage_alerts, maintenance_alerts, billing_alerts, marketing_emails,
            minimum_severity, created_at, updated_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
        ON CONFLICT (user_id) DO NOTHING`
	_, err := s.db.Pool.Exec(ctx, insert,
		def.UserID, def.EmailEnabled, def.SMSEnabled, def.InAppEnabled, def.PushEnabled,
		def.OutageAlerts, def.MaintenanceAlerts, def.BillingAlerts, def.MarketingEmails,
		def.MinimumSeverity)
	if err != nil {
		return models.Preference{}, fmt.Errorf("failed to create default preferences for user_id %d: %w", userID, err)
	}
	return s.Get(ctx, userID)
}

func (s *PreferenceStore) Update(ctx context.Context, userID int64, patch models.PreferencePatch) (models.Preference, error) {
	current, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return models.Preference{}, err
	}
	updated := patch.Apply(current)

	query := `
        UPDATE notification_preferences
        SET email_enabled = $1, sms_enabled = $2, in_app_enabled = $3,
            push_enabled = $4, outage_alerts = $5, maintenance_alerts = $6,
            billing_alerts = $7, marketing_emails = $8, minimum_severity = $9,
            quiet_hours_start = $10, quiet_hours_end = $11, phone_number = $12,
            timezone = $13, updated_at = NOW()
        WHERE user_id = $14`
	_, err = s.db.Pool.Exec(ctx, query,
		updated.EmailEnabled, updated.SMSEnabled, updated.InAppEnabled,
		updated.PushEnabled, updated.OutageAlerts, updated.MaintenanceAlerts,
		updated.BillingAlerts, updated.MarketingEmails, updated.MinimumSeverity,
		nullable(updated.QuietHoursStart), nullable(updated.QuietHoursEnd),
		nullable(updated.PhoneNumber), nullable(updated.Timezone), userID)
	if err != nil {
		return models.Preference{}, fmt.Errorf("failed to update preferences for user_id %d: %w", userID, err)
	}
	return s.Get(ctx, userID)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanPreference(row pgx.Row) (models.Preference, error) {
	var p models.Preference
	var quietStart, quietEnd, phone, tz *string
	err := row.Scan(
		&p.UserID, &p.EmailEnabled, &p.SMSEnabled, &p.InAppEnabled, &p.PushEnabled,
		&p.OutageAlerts, &p.MaintenanceAlerts, &p.BillingAlerts, &p.MarketingEmails,
		&p.MinimumSeverity, &quietStart, &quietEnd, &phone, &tz,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return models.Preference{}, err
	}
	if quietStart != nil {
		p.QuietHoursStart = *quietStart
	}
	if quietEnd != nil {
		p.QuietHoursEnd = *quietEnd
	}
	if phone != nil {
		p.PhoneNumber = *phone
	}
	if tz != nil {
		p.Timezone = *tz
	}
	return p, nil
}
