package template

import "notification-engine/internal/models"

// Defaults returns the built-in template set registered at startup. Operators
// can override individual entries through Registry.Register.
func Defaults() []models.Template {
	outageBody := "{{message}}\nAffected services: {{services}}\nRegions: {{regions}}\nStatus page: {{status_page_url}}"
	usageBody := "Your usage on cap {{cap_id}} reached {{usage_percent}}% (threshold {{threshold_percent}}%)."

	var templates []models.Template

	for _, kind := range []models.EventKind{
		models.EventOutageStarted,
		models.EventOutageUpdated,
		models.EventOutageResolved,
	} {
		subject := "[{{severity}}] {{title}}"
		body := outageBody
		if kind == models.EventOutageResolved {
			subject = "Resolved: {{title}}"
			body = "{{message}}\nResolved at: {{resolved_at}}\nAffected services: {{services}}"
		}
		templates = append(templates,
			models.Template{
				EventKind:       kind,
				Channel:         models.ChannelEmail,
				SubjectTemplate: subject,
				BodyTemplate:    body,
				Variables:       []string{"title", "message", "severity", "services", "regions", "status_page_url", "resolved_at"},
				Active:          true,
			},
			models.Template{
				EventKind:    kind,
				Channel:      models.ChannelSMS,
				BodyTemplate: "{{title}}: {{message}}",
				Variables:    []string{"title", "message"},
				Active:       true,
			},
			models.Template{
				EventKind:       kind,
				Channel:         models.ChannelInApp,
				SubjectTemplate: "{{title}}",
				BodyTemplate:    "{{message}}",
				Variables:       []string{"title", "message"},
				Active:          true,
			},
			models.Template{
				EventKind:       kind,
				Channel:         models.ChannelPush,
				SubjectTemplate: "{{title}}",
				BodyTemplate:    "{{message}} ({{services}})",
				Variables:       []string{"title", "message", "services"},
				Active:          true,
			},
		)
	}

	for _, ch := range models.AllChannels {
		templates = append(templates, models.Template{
			EventKind:       models.EventUsageThresholdCrossed,
			Channel:         ch,
			SubjectTemplate: "Usage alert: {{threshold_percent}}% of cap {{cap_id}}",
			BodyTemplate:    usageBody,
			Variables:       []string{"cap_id", "threshold_percent", "usage_percent"},
			Active:          true,
		})
	}

	return templates
}
