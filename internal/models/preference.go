package models

import (
	"fmt"
	"time"
)

// Channel is a delivery channel for notifications.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelInApp Channel = "in_app"
	ChannelPush  Channel = "push"
)

// AllChannels lists every channel the dispatcher fans out over.
var AllChannels = []Channel{ChannelEmail, ChannelSMS, ChannelInApp, ChannelPush}

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelInApp, ChannelPush:
		return true
	}
	return false
}

// Preference holds one user's notification settings. Created lazily with
// DefaultPreference on first access when no row exists.
type Preference struct {
	UserID            int64     `json:"user_id"`
	EmailEnabled      bool      `json:"email_enabled"`
	SMSEnabled        bool      `json:"sms_enabled"`
	InAppEnabled      bool      `json:"in_app_enabled"`
	PushEnabled       bool      `json:"push_enabled"`
	OutageAlerts      bool      `json:"outage_alerts"`
	MaintenanceAlerts bool      `json:"maintenance_alerts"`
	BillingAlerts     bool      `json:"billing_alerts"`
	MarketingEmails   bool      `json:"marketing_emails"`
	MinimumSeverity   Severity  `json:"minimum_severity"`
	QuietHoursStart   string    `json:"quiet_hours_start,omitempty"` // "HH:MM", empty means unset
	QuietHoursEnd     string    `json:"quiet_hours_end,omitempty"`
	PhoneNumber       string    `json:"phone_number,omitempty"`
	Timezone          string    `json:"timezone,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DefaultPreference returns the documented defaults applied on first access.
func DefaultPreference(userID int64) Preference {
	return Preference{
		UserID:            userID,
		EmailEnabled:      true,
		SMSEnabled:        false,
		InAppEnabled:      true,
		PushEnabled:       false,
		OutageAlerts:      true,
		MaintenanceAlerts: true,
		BillingAlerts:     true,
		MarketingEmails:   false,
		MinimumSeverity:   SeverityMedium,
	}
}

// ChannelEnabled reports whether the toggle for ch is on.
func (p Preference) ChannelEnabled(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelSMS:
		return p.SMSEnabled
	case ChannelInApp:
		return p.InAppEnabled
	case ChannelPush:
		return p.PushEnabled
	}
	return false
}

// PreferencePatch is a partial preference update; nil fields are left unchanged.
type PreferencePatch struct {
	EmailEnabled      *bool   `json:"email_enabled,omitempty"`
	SMSEnabled        *bool   `json:"sms_enabled,omitempty"`
	InAppEnabled      *bool   `json:"in_app_enabled,omitempty"`
	PushEnabled       *bool   `json:"push_enabled,omitempty"`
	OutageAlerts      *bool   `json:"outage_alerts,omitempty"`
	MaintenanceAlerts *bool   `json:"maintenance_alerts,omitempty"`
	BillingAlerts     *bool   `json:"billing_alerts,omitempty"`
	MarketingEmails   *bool   `json:"marketing_emails,omitempty"`
	MinimumSeverity   *string `json:"minimum_severity,omitempty"`
	QuietHoursStart   *string `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd     *string `json:"quiet_hours_end,omitempty"`
	PhoneNumber       *string `json:"phone_number,omitempty"`
	Timezone          *string `json:"timezone,omitempty"`
}

// Validate rejects malformed patch values before they reach the store.
func (p PreferencePatch) Validate() error {
	if p.MinimumSeverity != nil {
		if _, err := ParseSeverity(*p.MinimumSeverity); err != nil {
			return err
		}
	}
	for name, v := range map[string]*string{
		"quiet_hours_start": p.QuietHoursStart,
		"quiet_hours_end":   p.QuietHoursEnd,
	} {
		if v == nil || *v == "" {
			continue
		}
		if _, err := time.Parse("15:04", *v); err != nil {
			return fmt.Errorf("invalid %s %q: expected HH:MM", name, *v)
		}
	}
	if p.Timezone != nil && *p.Timezone != "" {
		if _, err := time.LoadLocation(*p.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q", *p.Timezone)
		}
	}
	return nil
}

// Apply merges the patch into pref and returns the result.
func (p PreferencePatch) Apply(pref Preference) Preference {
	if p.EmailEnabled != nil {
		pref.EmailEnabled = *p.EmailEnabled
	}
	if p.SMSEnabled != nil {
		pref.SMSEnabled = *p.SMSEnabled
	}
	if p.InAppEnabled != nil {
		pref.InAppEnabled = *p.InAppEnabled
	}
	if p.PushEnabled != nil {
		pref.PushEnabled = *p.PushEnabled
	}
	if p.OutageAlerts != nil {
		pref.OutageAlerts = *p.OutageAlerts
	}
	if p.MaintenanceAlerts != nil {
		pref.MaintenanceAlerts = *p.MaintenanceAlerts
	}
	if p.BillingAlerts != nil {
		pref.BillingAlerts = *p.BillingAlerts
	}
	if p.MarketingEmails != nil {
		pref.MarketingEmails = *p.MarketingEmails
	}
	if p.MinimumSeverity != nil {
		pref.MinimumSeverity = Severity(*p.MinimumSeverity)
	}
	if p.QuietHoursStart != nil {
		pref.QuietHoursStart = *p.QuietHoursStart
	}
	if p.QuietHoursEnd != nil {
		pref.QuietHoursEnd = *p.QuietHoursEnd
	}
	if p.PhoneNumber != nil {
		pref.PhoneNumber = *p.PhoneNumber
	}
	if p.Timezone != nil {
		pref.Timezone = *p.Timezone
	}
	return pref
}
