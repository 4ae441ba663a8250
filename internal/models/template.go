package models

// Template is a message template for one (event kind, channel) pair.
// Placeholders use {{key}} syntax; Variables documents the keys the
// renderer is expected to receive.
type Template struct {
	EventKind       EventKind `json:"event_kind"`
	Channel         Channel   `json:"channel"`
	SubjectTemplate string    `json:"subject_template,omitempty"`
	BodyTemplate    string    `json:"body_template"`
	Variables       []string  `json:"variables,omitempty"`
	Active          bool      `json:"active"`
}
