package template

import (
	"fmt"
	"strings"
	"time"

	"notification-engine/internal/models"
)

// Render replaces every {{key}} occurrence in tpl with its value from vars.
// An unresolved placeholder is left verbatim so an optional missing variable
// never blocks delivery. Rendering is pure and deterministic.
func Render(tpl string, vars map[string]string) string {
	var b strings.Builder
	b.Grow(len(tpl))
	for {
		open := strings.Index(tpl, "{{")
		if open < 0 {
			b.WriteString(tpl)
			return b.String()
		}
		close := strings.Index(tpl[open:], "}}")
		if close < 0 {
			b.WriteString(tpl)
			return b.String()
		}
		close += open
		b.WriteString(tpl[:open])
		name := strings.TrimSpace(tpl[open+2 : close])
		if val, ok := vars[name]; ok {
			b.WriteString(val)
		} else {
			b.WriteString(tpl[open : close+2])
		}
		tpl = tpl[close+2:]
	}
}

// EventVariables derives the template variable set from an event.
func EventVariables(e models.Event) map[string]string {
	vars := map[string]string{
		"title":    e.Title,
		"message":  e.Message,
		"severity": string(e.EffectiveSeverity()),
		"services": strings.Join(e.AffectedServices, ", "),
		"regions":  strings.Join(e.AffectedRegions, ", "),
	}
	if e.StatusPageURL != "" {
		vars["status_page_url"] = e.StatusPageURL
	}
	if e.ResolvedAt != nil {
		vars["resolved_at"] = e.ResolvedAt.UTC().Format(time.RFC1123)
	}
	if e.Kind == models.EventUsageThresholdCrossed {
		vars["cap_id"] = e.CapID
		vars["threshold_percent"] = fmt.Sprintf("%d", e.ThresholdPercent)
		vars["usage_percent"] = fmt.Sprintf("%.1f", e.UsagePercent)
	}
	return vars
}
