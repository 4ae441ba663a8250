package models

import "time"

// EventKind identifies what happened upstream.
type EventKind string

const (
	EventOutageStarted         EventKind = "outage_started"
	EventOutageUpdated         EventKind = "outage_updated"
	EventOutageResolved        EventKind = "outage_resolved"
	EventUsageThresholdCrossed EventKind = "usage_threshold_crossed"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventOutageStarted, EventOutageUpdated, EventOutageResolved, EventUsageThresholdCrossed:
		return true
	}
	return false
}

// IsOutage reports whether the event belongs to the outage lifecycle.
func (k EventKind) IsOutage() bool {
	return k == EventOutageStarted || k == EventOutageUpdated || k == EventOutageResolved
}

// Event is a single service-impacting occurrence consumed exactly once by the dispatcher.
type Event struct {
	ID               string     `json:"id"`
	Kind             EventKind  `json:"kind"`
	Severity         Severity   `json:"severity,omitempty"`
	Title            string     `json:"title"`
	Message          string     `json:"message,omitempty"`
	AffectedServices []string   `json:"affected_services,omitempty"`
	AffectedRegions  []string   `json:"affected_regions,omitempty"`
	StatusPageURL    string     `json:"status_page_url,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`

	// Usage-threshold fields; SubjectUserID is the sole recipient for usage events.
	SubjectUserID    int64   `json:"subject_user_id,omitempty"`
	CapID            string  `json:"cap_id,omitempty"`
	ThresholdPercent int     `json:"threshold_percent,omitempty"`
	UsagePercent     float64 `json:"usage_percent,omitempty"`
}

// EffectiveSeverity is the severity used by eligibility checks. Usage-threshold
// events carry no severity of their own and always clear the severity gate.
func (e Event) EffectiveSeverity() Severity {
	if e.Kind == EventUsageThresholdCrossed {
		return SeverityCritical
	}
	return e.Severity
}

// Recipient is one affected user as returned by the directory lookup.
type Recipient struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Phone  string `json:"phone,omitempty"`
}
