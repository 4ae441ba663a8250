package models

import "time"

// NotificationStatus is the delivery state of a single attempt record.
type NotificationStatus string

const (
	StatusPending NotificationStatus = "pending"
	StatusSent    NotificationStatus = "sent"
	StatusFailed  NotificationStatus = "failed"
)

// Notification is one persisted delivery attempt for (event, user, channel).
// The row is created in pending status before the channel call and transitions
// to sent or failed exactly once. A pending row left behind by a crash is the
// recovery signal for the external reconciliation process.
type Notification struct {
	ID           string             `json:"id"`
	EventID      string             `json:"event_id"`
	UserID       int64              `json:"user_id"`
	Channel      Channel            `json:"channel"`
	Status       NotificationStatus `json:"status"`
	Recipient    string             `json:"recipient"`
	Subject      string             `json:"subject,omitempty"`
	Body         string             `json:"body"`
	Read         bool               `json:"read"`
	CreatedAt    time.Time          `json:"created_at"`
	SentAt       *time.Time         `json:"sent_at,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
}
