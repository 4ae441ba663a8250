package models

import "fmt"

// Severity is the business-impact level of an event.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityOrdinals = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Ordinal maps severity to its position in the total order Low < Medium < High < Critical.
// Unknown values sort below Low so they never clear a severity gate.
func (s Severity) Ordinal() int {
	if ord, ok := severityOrdinals[s]; ok {
		return ord
	}
	return -1
}

// AtLeast reports whether s is equal to or above min in the severity order.
func (s Severity) AtLeast(min Severity) bool {
	return s.Ordinal() >= min.Ordinal()
}

func (s Severity) Valid() bool {
	_, ok := severityOrdinals[s]
	return ok
}

// ParseSeverity validates a severity string received from config or API input.
func ParseSeverity(raw string) (Severity, error) {
	s := Severity(raw)
	if !s.Valid() {
		return "", fmt.Errorf("invalid severity %q", raw)
	}
	return s, nil
}
