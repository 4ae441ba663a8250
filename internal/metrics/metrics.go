package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UnitsSkipped counts recipient x channel units skipped before a record
	// was created (ineligible, missing template), by channel.
	UnitsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_units_skipped_total",
			Help: "Total recipient/channel units skipped without a persisted record, by channel.",
		},
		[]string{"channel"},
	)

	// UnitsSent counts units whose delivery succeeded, by channel.
	UnitsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_units_sent_total",
			Help: "Total notifications delivered successfully, by channel.",
		},
		[]string{"channel"},
	)

	// UnitsFailed counts units recorded as failed, by channel.
	UnitsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_units_failed_total",
			Help: "Total notifications recorded as failed, by channel.",
		},
		[]string{"channel"},
	)

	// EventsDropped counts events rejected because the dispatch queue was full.
	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_engine_events_dropped_total",
			Help: "Total events dropped because the dispatch queue was full.",
		},
	)

	// ThresholdsAdmitted counts usage-threshold crossings that passed the cooldown claim.
	ThresholdsAdmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_engine_thresholds_admitted_total",
			Help: "Total usage-threshold crossings admitted past the cooldown.",
		},
	)

	// ThresholdsSuppressed counts crossings suppressed by the cooldown.
	ThresholdsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_engine_thresholds_suppressed_total",
			Help: "Total usage-threshold crossings suppressed by the cooldown.",
		},
	)
)
