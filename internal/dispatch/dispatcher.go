// Package dispatch turns one event into zero or more delivery attempts. Each
// (event, recipient, channel) unit moves through a small state machine:
// skipped with no persisted record, or a pending record that transitions to
// sent or failed exactly once.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"notification-engine/internal/eligibility"
	"notification-engine/internal/metrics"
	"notification-engine/internal/models"
	"notification-engine/internal/storage"
	"notification-engine/internal/template"
	"notification-engine/internal/threshold"
)

// Sender delivers one notification over its channel.
type Sender interface {
	Send(ctx context.Context, n models.Notification) error
}

// Directory resolves the affected-user set for outage events. It is an
// external collaborator; failures yield zero recipients, never an abort.
type Directory interface {
	ResolveAffectedUsers(ctx context.Context, regions, services []string) ([]models.Recipient, error)
}

// Options bound the dispatcher's queue and fan-out.
type Options struct {
	QueueSize       int
	Workers         int
	FanOut          int
	DeliveryTimeout time.Duration
}

// Dispatcher orchestrates resolution, eligibility, rendering, record creation,
// delivery, and status update for every event it consumes.
type Dispatcher struct {
	notifications storage.NotificationStore
	preferences   storage.PreferenceStore
	directory     Directory
	templates     *template.Registry
	evaluator     *eligibility.Evaluator
	tracker       *threshold.Tracker
	senders       map[models.Channel]Sender
	logger        *logrus.Logger
	opts          Options

	events chan models.Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
	now    func() time.Time
}

func New(
	notifications storage.NotificationStore,
	preferences storage.PreferenceStore,
	directory Directory,
	templates *template.Registry,
	evaluator *eligibility.Evaluator,
	tracker *threshold.Tracker,
	senders map[models.Channel]Sender,
	logger *logrus.Logger,
	opts Options,
) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 500
	}
	if opts.Workers <= 0 {
		opts.Workers = 10
	}
	if opts.FanOut <= 0 {
		opts.FanOut = 8
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		notifications: notifications,
		preferences:   preferences,
		directory:     directory,
		templates:     templates,
		evaluator:     evaluator,
		tracker:       tracker,
		senders:       senders,
		logger:        logger,
		opts:          opts,
		events:        make(chan models.Event, opts.QueueSize),
		ctx:           ctx,
		cancel:        cancel,
		now:           time.Now,
	}
}

// SetNow overrides the clock; used by tests.
func (d *Dispatcher) SetNow(now func() time.Time) {
	d.now = now
}

// Start launches the worker pool.
func (d *Dispatcher) Start(wg *sync.WaitGroup) {
	d.wg = wg
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Stop cancels the workers. Queued events not yet picked up are dropped;
// the engine is best-effort by design.
func (d *Dispatcher) Stop() {
	d.cancel()
}

// DispatchOutageEvent enqueues an outage event for processing. Fire and
// forget: internal errors are logged, never surfaced.
func (d *Dispatcher) DispatchOutageEvent(event models.Event) {
	d.enqueue(event)
}

// EvaluateUsageUpdate runs the debounce tracker for a fresh usage figure and
// enqueues one event per admitted threshold. It returns the admitted
// thresholds so the usage-ingestion caller can observe what was triggered.
func (d *Dispatcher) EvaluateUsageUpdate(ctx context.Context, userID int64, capID string, newUsagePercent float64) ([]int, error) {
	events, err := d.tracker.EvaluateUsageUpdate(ctx, userID, capID, newUsagePercent)
	if err != nil {
		return nil, err
	}
	crossed := make([]int, 0, len(events))
	for _, event := range events {
		metrics.ThresholdsAdmitted.Inc()
		crossed = append(crossed, event.ThresholdPercent)
		d.enqueue(event)
	}
	return crossed, nil
}

func (d *Dispatcher) enqueue(event models.Event) {
	select {
	case d.events <- event:
		d.logger.WithFields(logrus.Fields{"event_id": event.ID, "kind": event.Kind}).Info("Queued event")
	default:
		metrics.EventsDropped.Inc()
		d.logger.WithFields(logrus.Fields{"event_id": event.ID, "kind": event.Kind}).Error("Queue full, dropping event")
	}
}

// worker processes events until the dispatcher is stopped.
func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			d.logger.Debugf("Worker %d stopped", id)
			return
		case event := <-d.events:
			d.HandleEvent(d.ctx, event)
		}
	}
}

// HandleEvent fans one event out over recipient x channel units with bounded
// concurrency. A failure in any unit never aborts its siblings.
func (d *Dispatcher) HandleEvent(ctx context.Context, event models.Event) {
	recipients := d.resolveRecipients(ctx, event)
	if len(recipients) == 0 {
		d.logger.WithFields(logrus.Fields{"event_id": event.ID, "kind": event.Kind}).Info("No recipients resolved")
		return
	}

	sem := make(chan struct{}, d.opts.FanOut)
	var wg sync.WaitGroup
	for _, rec := range recipients {
		pref, err := d.preferences.GetOrCreate(ctx, rec.UserID)
		if err != nil {
			d.logger.WithFields(logrus.Fields{
				"event_id": event.ID,
				"user_id":  rec.UserID,
			}).WithError(err).Error("Failed to load preferences, skipping recipient")
			continue
		}
		for _, channel := range models.AllChannels {
			wg.Add(1)
			sem <- struct{}{}
			go func(rec models.Recipient, pref models.Preference, channel models.Channel) {
				defer wg.Done()
				defer func() { <-sem }()
				defer func() {
					if r := recover(); r != nil {
						d.logger.WithFields(logrus.Fields{
							"event_id": event.ID,
							"user_id":  rec.UserID,
							"channel":  channel,
						}).Errorf("Panic in dispatch unit: %v", r)
					}
				}()
				d.processUnit(ctx, event, rec, pref, channel)
			}(rec, pref, channel)
		}
	}
	wg.Wait()
}

// resolveRecipients computes the affected-user set. Usage events target the
// subject user only; outage events go through the directory, whose failure is
// soft and yields zero recipients.
func (d *Dispatcher) resolveRecipients(ctx context.Context, event models.Event) []models.Recipient {
	if event.Kind == models.EventUsageThresholdCrossed {
		return []models.Recipient{{UserID: event.SubjectUserID}}
	}
	recipients, err := d.directory.ResolveAffectedUsers(ctx, event.AffectedRegions, event.AffectedServices)
	if err != nil {
		d.logger.WithFields(logrus.Fields{
			"event_id": event.ID,
			"regions":  event.AffectedRegions,
			"services": event.AffectedServices,
		}).WithError(err).Error("Affected-user lookup failed, treating as zero recipients")
		return nil
	}
	return recipients
}

// processUnit runs the full state machine for one (event, recipient, channel)
// unit. Skips persist nothing; once a pending record exists it is resolved to
// sent or failed exactly once, and never retried here.
func (d *Dispatcher) processUnit(ctx context.Context, event models.Event, rec models.Recipient, pref models.Preference, channel models.Channel) {
	log := d.logger.WithFields(logrus.Fields{
		"event_id": event.ID,
		"user_id":  rec.UserID,
		"channel":  channel,
	})

	if ok, reason := d.evaluator.IsEligible(pref, event, channel); !ok {
		metrics.UnitsSkipped.WithLabelValues(string(channel)).Inc()
		log.WithField("reason", reason).Debug("Unit skipped: ineligible")
		return
	}

	tpl, err := d.templates.Lookup(event.Kind, channel)
	if err != nil {
		metrics.UnitsSkipped.WithLabelValues(string(channel)).Inc()
		log.WithError(err).Warn("Unit skipped: no template")
		return
	}

	vars := template.EventVariables(event)
	subject := template.Render(tpl.SubjectTemplate, vars)
	body := template.Render(tpl.BodyTemplate, vars)

	notif := models.Notification{
		ID:        uuid.NewString(),
		EventID:   event.ID,
		UserID:    rec.UserID,
		Channel:   channel,
		Status:    models.StatusPending,
		Recipient: d.recipientAddress(rec, pref, channel),
		Subject:   subject,
		Body:      body,
		CreatedAt: d.now(),
	}

	// The pending row is the idempotency boundary: no record, no delivery.
	if err := d.notifications.Create(ctx, notif); err != nil {
		metrics.UnitsFailed.WithLabelValues(string(channel)).Inc()
		log.WithError(err).Error("Failed to create notification record, delivery aborted")
		return
	}

	sender, ok := d.senders[channel]
	if !ok {
		d.finish(ctx, log, notif, fmt.Errorf("no sender registered for channel %s", channel))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.opts.DeliveryTimeout)
	defer cancel()
	d.finish(ctx, log, notif, sender.Send(sendCtx, notif))
}

// finish records the terminal status of a delivery attempt.
func (d *Dispatcher) finish(ctx context.Context, log *logrus.Entry, notif models.Notification, sendErr error) {
	if sendErr != nil {
		metrics.UnitsFailed.WithLabelValues(string(notif.Channel)).Inc()
		log.WithError(sendErr).Error("Delivery failed")
		if err := d.notifications.MarkFailed(ctx, notif.ID, sendErr.Error()); err != nil {
			log.WithError(err).Error("Failed to record failed status")
		}
		return
	}
	metrics.UnitsSent.WithLabelValues(string(notif.Channel)).Inc()
	if err := d.notifications.MarkSent(ctx, notif.ID, d.now()); err != nil {
		log.WithError(err).Error("Failed to record sent status")
		return
	}
	log.Info("Notification sent")
}

// recipientAddress picks the channel-specific delivery address.
func (d *Dispatcher) recipientAddress(rec models.Recipient, pref models.Preference, channel models.Channel) string {
	switch channel {
	case models.ChannelEmail:
		return rec.Email
	case models.ChannelSMS:
		if pref.PhoneNumber != "" {
			return pref.PhoneNumber
		}
		return rec.Phone
	default:
		return fmt.Sprintf("user:%d", rec.UserID)
	}
}

// ListUserNotifications returns a user's notifications, newest first.
func (d *Dispatcher) ListUserNotifications(ctx context.Context, userID int64, limit int, unreadOnly bool) ([]models.Notification, error) {
	return d.notifications.ListByUser(ctx, userID, limit, unreadOnly)
}

// MarkRead flags the given notifications as read and returns how many rows
// actually changed.
func (d *Dispatcher) MarkRead(ctx context.Context, ids []string, userID int64) (int64, error) {
	return d.notifications.MarkRead(ctx, ids, userID)
}
