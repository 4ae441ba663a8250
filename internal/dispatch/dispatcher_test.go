package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"notification-engine/internal/eligibility"
	"notification-engine/internal/logging"
	"notification-engine/internal/models"
	"notification-engine/internal/storage/memory"
	"notification-engine/internal/template"
	"notification-engine/internal/threshold"
)

// --- Mocks ---

// MockSender is a mock implementation of the Sender interface.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, n models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// stubDirectory returns a fixed recipient set or error.
type stubDirectory struct {
	recipients []models.Recipient
	err        error
}

func (d *stubDirectory) ResolveAffectedUsers(_ context.Context, _, _ []string) ([]models.Recipient, error) {
	return d.recipients, d.err
}

// failingNotificationStore rejects record creation to exercise the
// idempotency boundary.
type failingNotificationStore struct {
	*memory.NotificationStore
}

func (s *failingNotificationStore) Create(_ context.Context, _ models.Notification) error {
	return errors.New("connection refused")
}

type fixture struct {
	dispatcher    *Dispatcher
	notifications *memory.NotificationStore
	preferences   *memory.PreferenceStore
	senders       map[models.Channel]*MockSender
	directory     *stubDirectory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logging.Discard()
	notifications := memory.NewNotificationStore()
	preferences := memory.NewPreferenceStore()
	dir := &stubDirectory{}

	mocks := map[models.Channel]*MockSender{}
	senders := map[models.Channel]Sender{}
	for _, ch := range models.AllChannels {
		m := new(MockSender)
		mocks[ch] = m
		senders[ch] = m
	}

	tracker := threshold.NewTracker(memory.NewThresholdClaimStore(), []int{80, 90, 100}, 24*time.Hour, logger)
	d := New(
		notifications,
		preferences,
		dir,
		template.NewRegistry(template.Defaults()...),
		eligibility.New(),
		tracker,
		senders,
		logger,
		Options{FanOut: 4, DeliveryTimeout: time.Second},
	)
	return &fixture{
		dispatcher:    d,
		notifications: notifications,
		preferences:   preferences,
		senders:       mocks,
		directory:     dir,
	}
}

func emailOnlyPref(userID int64) models.Preference {
	p := models.DefaultPreference(userID)
	p.InAppEnabled = false
	return p
}

func outageEvent(sev models.Severity) models.Event {
	return models.Event{
		ID:               "ev-1",
		Kind:             models.EventOutageStarted,
		Severity:         sev,
		Title:            "Fiber cut",
		Message:          "Backbone outage in north region",
		AffectedServices: []string{"internet"},
		AffectedRegions:  []string{"north"},
		CreatedAt:        time.Now(),
	}
}

// --- Tests ---

func TestDispatchCreatesSentRecordForEligibleUnit(t *testing.T) {
	f := newFixture(t)
	f.directory.recipients = []models.Recipient{{UserID: 1, Email: "jo@example.com"}}
	f.preferences.Put(emailOnlyPref(1))
	f.senders[models.ChannelEmail].On("Send", mock.Anything, mock.Anything).Return(nil)

	f.dispatcher.HandleEvent(context.Background(), outageEvent(models.SeverityHigh))

	records := f.notifications.All()
	require.Len(t, records, 1)
	n := records[0]
	assert.Equal(t, models.StatusSent, n.Status)
	assert.Equal(t, "ev-1", n.EventID)
	assert.Equal(t, int64(1), n.UserID)
	assert.Equal(t, models.ChannelEmail, n.Channel)
	assert.Equal(t, "jo@example.com", n.Recipient)
	assert.Contains(t, n.Subject, "Fiber cut")
	assert.NotNil(t, n.SentAt)
	f.senders[models.ChannelEmail].AssertNumberOfCalls(t, "Send", 1)
}

func TestIneligibleUnitsPersistNothing(t *testing.T) {
	f := newFixture(t)
	f.directory.recipients = []models.Recipient{{UserID: 1, Email: "jo@example.com"}}

	// Defaults: email+in_app on, minimum severity medium. Low outage fails
	// the severity gate everywhere, so no record may exist.
	f.dispatcher.HandleEvent(context.Background(), outageEvent(models.SeverityLow))

	assert.Empty(t, f.notifications.All())
	for _, m := range f.senders {
		m.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	}
}

func TestFailedDeliveryRecordedOnceNeverRetried(t *testing.T) {
	f := newFixture(t)
	f.directory.recipients = []models.Recipient{{UserID: 1, Email: "jo@example.com"}}
	f.preferences.Put(emailOnlyPref(1))
	f.senders[models.ChannelEmail].On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp timeout"))

	f.dispatcher.HandleEvent(context.Background(), outageEvent(models.SeverityHigh))

	records := f.notifications.All()
	require.Len(t, records, 1)
	assert.Equal(t, models.StatusFailed, records[0].Status)
	assert.Equal(t, "smtp timeout", records[0].ErrorMessage)
	assert.Nil(t, records[0].SentAt)
	f.senders[models.ChannelEmail].AssertNumberOfCalls(t, "Send", 1)
}

func TestMissingTemplateSkipsChannelOnly(t *testing.T) {
	f := newFixture(t)
	f.directory.recipients = []models.Recipient{{UserID: 1, Email: "jo@example.com"}}
	pref := emailOnlyPref(1)
	pref.InAppEnabled = true
	f.preferences.Put(pref)

	// Registry with an email template only; the in_app unit must be skipped
	// without failing the email unit.
	registry := template.NewRegistry(models.Template{
		EventKind:       models.EventOutageStarted,
		Channel:         models.ChannelEmail,
		SubjectTemplate: "{{title}}",
		BodyTemplate:    "{{message}}",
		Active:          true,
	})
	f.dispatcher.templates = registry
	f.senders[models.ChannelEmail].On("Send", mock.Anything, mock.Anything).Return(nil)

	f.dispatcher.HandleEvent(context.Background(), outageEvent(models.SeverityHigh))

	records := f.notifications.All()
	require.Len(t, records, 1)
	assert.Equal(t, models.ChannelEmail, records[0].Channel)
	f.senders[models.ChannelInApp].AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestDirectoryFailureMeansZeroRecipients(t *testing.T) {
	f := newFixture(t)
	f.directory.err = errors.New("directory unavailable")

	f.dispatcher.HandleEvent(context.Background(), outageEvent(models.SeverityCritical))

	assert.Empty(t, f.notifications.All())
}

func TestPersistenceErrorAbortsDeliveryForThatUnit(t *testing.T) {
	f := newFixture(t)
	f.directory.recipients = []models.Recipient{{UserID: 1, Email: "jo@example.com"}}
	f.preferences.Put(emailOnlyPref(1))
	f.dispatcher.notifications = &failingNotificationStore{f.notifications}

	f.dispatcher.HandleEvent(context.Background(), outageEvent(models.SeverityHigh))

	// The pending row is the idempotency boundary: no row, no delivery call.
	f.senders[models.ChannelEmail].AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestUnitFailureDoesNotAbortSiblings(t *testing.T) {
	f := newFixture(t)
	f.directory.recipients = []models.Recipient{
		{UserID: 1, Email: "jo@example.com"},
		{UserID: 2, Email: "sam@example.com"},
	}
	f.preferences.Put(emailOnlyPref(1))
	f.preferences.Put(emailOnlyPref(2))

	f.senders[models.ChannelEmail].
		On("Send", mock.Anything, mock.MatchedBy(func(n models.Notification) bool { return n.UserID == 1 })).
		Return(errors.New("mailbox full"))
	f.senders[models.ChannelEmail].
		On("Send", mock.Anything, mock.MatchedBy(func(n models.Notification) bool { return n.UserID == 2 })).
		Return(nil)

	f.dispatcher.HandleEvent(context.Background(), outageEvent(models.SeverityHigh))

	records := f.notifications.All()
	require.Len(t, records, 2)
	byUser := map[int64]models.Notification{}
	for _, n := range records {
		byUser[n.UserID] = n
	}
	assert.Equal(t, models.StatusFailed, byUser[1].Status)
	assert.Equal(t, models.StatusSent, byUser[2].Status)
}

func TestUsageEventTargetsSubjectUserOnly(t *testing.T) {
	f := newFixture(t)
	// Directory would explode if consulted for usage events.
	f.directory.err = errors.New("must not be called")
	f.preferences.Put(emailOnlyPref(9))
	f.senders[models.ChannelEmail].On("Send", mock.Anything, mock.Anything).Return(nil)

	f.dispatcher.HandleEvent(context.Background(), models.Event{
		ID:               "ev-usage",
		Kind:             models.EventUsageThresholdCrossed,
		SubjectUserID:    9,
		CapID:            "cap-1",
		ThresholdPercent: 80,
		UsagePercent:     85,
		Title:            "Usage reached 80% of cap cap-1",
		CreatedAt:        time.Now(),
	})

	records := f.notifications.All()
	require.Len(t, records, 1)
	assert.Equal(t, int64(9), records[0].UserID)
}

func TestMinimumSeverityHighFiltering(t *testing.T) {
	f := newFixture(t)
	f.directory.recipients = []models.Recipient{{UserID: 1, Email: "jo@example.com"}}
	pref := emailOnlyPref(1)
	pref.MinimumSeverity = models.SeverityHigh
	f.preferences.Put(pref)
	f.senders[models.ChannelEmail].On("Send", mock.Anything, mock.Anything).Return(nil)

	for _, sev := range []models.Severity{models.SeverityLow, models.SeverityMedium} {
		f.dispatcher.HandleEvent(context.Background(), outageEvent(sev))
	}
	assert.Empty(t, f.notifications.All())

	for _, sev := range []models.Severity{models.SeverityHigh, models.SeverityCritical} {
		f.dispatcher.HandleEvent(context.Background(), outageEvent(sev))
	}
	assert.Len(t, f.notifications.All(), 2)
}

func TestEvaluateUsageUpdateReturnsAdmittedThresholds(t *testing.T) {
	f := newFixture(t)

	crossed, err := f.dispatcher.EvaluateUsageUpdate(context.Background(), 1, "cap-1", 95)
	require.NoError(t, err)
	assert.Equal(t, []int{80, 90}, crossed)

	// Within the cooldown nothing further is admitted.
	crossed, err = f.dispatcher.EvaluateUsageUpdate(context.Background(), 1, "cap-1", 96)
	require.NoError(t, err)
	assert.Empty(t, crossed)
}

func TestWorkerPoolProcessesQueuedEvents(t *testing.T) {
	f := newFixture(t)
	f.directory.recipients = []models.Recipient{{UserID: 1, Email: "jo@example.com"}}
	f.preferences.Put(emailOnlyPref(1))

	done := make(chan struct{})
	f.senders[models.ChannelEmail].
		On("Send", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(done) }).
		Return(nil)

	var wg sync.WaitGroup
	f.dispatcher.Start(&wg)
	defer func() {
		f.dispatcher.Stop()
		wg.Wait()
	}()

	f.dispatcher.DispatchOutageEvent(outageEvent(models.SeverityHigh))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queued event was not processed")
	}
}

func TestListAndMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Now()
	for i, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, f.notifications.Create(ctx, models.Notification{
			ID:        id,
			EventID:   "ev-1",
			UserID:    1,
			Channel:   models.ChannelInApp,
			Status:    models.StatusSent,
			Body:      "body",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	list, err := f.dispatcher.ListUserNotifications(ctx, 1, 2, true)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n3", list[0].ID)

	count, err := f.dispatcher.MarkRead(ctx, []string{"n1", "n2"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	list, err = f.dispatcher.ListUserNotifications(ctx, 1, 0, true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "n3", list[0].ID)
}
