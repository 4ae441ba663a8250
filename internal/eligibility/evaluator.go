// Package eligibility decides whether a user/channel pair should receive a
// notification for an event. Rules run in order and the first failure
// short-circuits: channel toggle, minimum severity, quiet hours. The
// usage-threshold cooldown is enforced upstream, atomically with event
// admission, by the threshold tracker.
package eligibility

import (
	"fmt"
	"time"

	"notification-engine/internal/models"
)

// Evaluator applies the per-user send rules. Now is injectable for tests and
// defaults to time.Now.
type Evaluator struct {
	Now func() time.Time
}

func New() *Evaluator {
	return &Evaluator{Now: time.Now}
}

// IsEligible reports whether the notification should be sent, with a short
// reason for the skip when it should not.
func (e *Evaluator) IsEligible(pref models.Preference, event models.Event, channel models.Channel) (bool, string) {
	if !pref.ChannelEnabled(channel) {
		return false, fmt.Sprintf("channel %s disabled", channel)
	}
	if channel == models.ChannelSMS && pref.PhoneNumber == "" {
		return false, "no phone number on file"
	}

	severity := event.EffectiveSeverity()
	if !severity.AtLeast(pref.MinimumSeverity) {
		return false, fmt.Sprintf("severity %s below minimum %s", severity, pref.MinimumSeverity)
	}

	if severity != models.SeverityCritical && e.inQuietHours(pref) {
		return false, "inside quiet hours"
	}

	return true, ""
}

// inQuietHours reports whether the user's local time falls in [start, end).
// A window with start > end wraps past midnight; equal bounds mean no window.
func (e *Evaluator) inQuietHours(pref models.Preference) bool {
	start, okStart := parseClock(pref.QuietHoursStart)
	end, okEnd := parseClock(pref.QuietHoursEnd)
	if !okStart || !okEnd || start == end {
		return false
	}

	loc := time.UTC
	if pref.Timezone != "" {
		if l, err := time.LoadLocation(pref.Timezone); err == nil {
			loc = l
		}
	}
	now := e.now().In(loc)
	minute := now.Hour()*60 + now.Minute()

	if start < end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

func (e *Evaluator) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
