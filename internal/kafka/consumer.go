package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"notification-engine/internal/dispatch"
	"notification-engine/internal/models"
)

// envelope is the wire format produced by the outage lifecycle and the usage
// recompute job.
type envelope struct {
	EventID          string   `json:"event_id"`
	Kind             string   `json:"kind"`
	Severity         string   `json:"severity"`
	Title            string   `json:"title"`
	Message          string   `json:"message"`
	AffectedServices []string `json:"affected_services"`
	AffectedRegions  []string `json:"affected_regions"`
	StatusPageURL    string   `json:"status_page_url"`
	ResolvedAt       *string  `json:"resolved_at"`

	// usage_update messages
	UserID       int64   `json:"user_id"`
	CapID        string  `json:"cap_id"`
	UsagePercent float64 `json:"usage_percent"`
}

// Consumer reads events from Kafka and feeds the dispatcher.
type Consumer struct {
	reader     *kafka.Reader
	dispatcher *dispatch.Dispatcher
	logger     *logrus.Logger
}

func NewConsumer(brokers []string, topic, groupID string, d *dispatch.Dispatcher, logger *logrus.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, dispatcher: d, logger: logger}
}

// Start consumes until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	c.logger.Info("Kafka consumer started")
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.WithError(err).Error("Read message failed")
			continue
		}
		if err := c.handleMessage(ctx, msg.Value); err != nil {
			c.logger.WithError(err).Error("Invalid message, skipping")
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, value []byte) error {
	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}

	// Usage recompute messages trigger the debounce path, not a direct dispatch.
	if env.Kind == "usage_update" {
		if env.UserID < 1 || env.CapID == "" {
			return fmt.Errorf("usage_update missing user_id or cap_id")
		}
		crossed, err := c.dispatcher.EvaluateUsageUpdate(ctx, env.UserID, env.CapID, env.UsagePercent)
		if err != nil {
			return fmt.Errorf("evaluate usage update: %w", err)
		}
		c.logger.WithFields(logrus.Fields{
			"user_id": env.UserID,
			"cap_id":  env.CapID,
			"crossed": crossed,
		}).Info("Processed usage update")
		return nil
	}

	event, err := parseOutageEvent(env)
	if err != nil {
		return err
	}
	c.dispatcher.DispatchOutageEvent(event)
	c.logger.WithFields(logrus.Fields{"event_id": event.ID, "kind": event.Kind}).Info("Processed Kafka message")
	return nil
}

// parseOutageEvent validates an outage envelope and converts it to an Event.
func parseOutageEvent(env envelope) (models.Event, error) {
	kind := models.EventKind(env.Kind)
	if !kind.IsOutage() {
		return models.Event{}, fmt.Errorf("unknown event kind %q", env.Kind)
	}
	severity, err := models.ParseSeverity(env.Severity)
	if err != nil {
		return models.Event{}, err
	}
	if env.Title == "" {
		return models.Event{}, fmt.Errorf("missing title")
	}

	event := models.Event{
		ID:               env.EventID,
		Kind:             kind,
		Severity:         severity,
		Title:            env.Title,
		Message:          env.Message,
		AffectedServices: env.AffectedServices,
		AffectedRegions:  env.AffectedRegions,
		StatusPageURL:    env.StatusPageURL,
		CreatedAt:        time.Now(),
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if env.ResolvedAt != nil {
		t, err := time.Parse(time.RFC3339, *env.ResolvedAt)
		if err != nil {
			return models.Event{}, fmt.Errorf("invalid resolved_at %q: %w", *env.ResolvedAt, err)
		}
		event.ResolvedAt = &t
	}
	return event, nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
