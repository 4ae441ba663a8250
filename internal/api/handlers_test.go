package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-engine/internal/dispatch"
	"notification-engine/internal/eligibility"
	"notification-engine/internal/logging"
	"notification-engine/internal/models"
	"notification-engine/internal/providers"
	"notification-engine/internal/storage/memory"
	"notification-engine/internal/template"
	"notification-engine/internal/threshold"
)

type apiFixture struct {
	router        *gin.Engine
	notifications *memory.NotificationStore
	preferences   *memory.PreferenceStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logging.Discard()

	notifications := memory.NewNotificationStore()
	preferences := memory.NewPreferenceStore()
	tracker := threshold.NewTracker(memory.NewThresholdClaimStore(), []int{80, 90, 100}, 24*time.Hour, logger)
	hub := providers.NewHub(logger)

	d := dispatch.New(
		notifications,
		preferences,
		nil,
		template.NewRegistry(template.Defaults()...),
		eligibility.New(),
		tracker,
		map[models.Channel]dispatch.Sender{},
		logger,
		dispatch.Options{},
	)

	return &apiFixture{
		router:        NewRouter(NewHandler(d, preferences, hub, logger), logger, "/api/v0"),
		notifications: notifications,
		preferences:   preferences,
	}
}

func (f *apiFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func seedNotifications(t *testing.T, s *memory.NotificationStore) {
	t.Helper()
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	rows := []struct {
		id   string
		read bool
	}{
		{"n1", true},
		{"n2", false},
		{"n3", false},
		{"n4", false},
	}
	for i, row := range rows {
		require.NoError(t, s.Create(context.Background(), models.Notification{
			ID:        row.id,
			EventID:   "ev-1",
			UserID:    1,
			Channel:   models.ChannelInApp,
			Status:    models.StatusSent,
			Body:      "body",
			Read:      row.read,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func TestGetNotifications(t *testing.T) {
	f := newAPIFixture(t)
	seedNotifications(t, f.notifications)

	w := f.do(http.MethodGet, "/api/v0/notifications/user/1?limit=2&unread_only=true", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list []models.Notification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "n4", list[0].ID)
	assert.Equal(t, "n3", list[1].ID)
	for _, n := range list {
		assert.False(t, n.Read)
	}
}

func TestGetNotificationsEmptyIsArray(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodGet, "/api/v0/notifications/user/42", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}

func TestGetNotificationsBadParams(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodGet, "/api/v0/notifications/user/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/api/v0/notifications/user/1?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkNotificationsRead(t *testing.T) {
	f := newAPIFixture(t)
	seedNotifications(t, f.notifications)

	w := f.do(http.MethodPost, "/api/v0/notifications/read", gin.H{
		"user_id":          1,
		"notification_ids": []string{"n1", "n2", "n3"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Updated int64 `json:"updated"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// n1 was already read.
	assert.Equal(t, int64(2), resp.Updated)

	w = f.do(http.MethodPost, "/api/v0/notifications/read", gin.H{"user_id": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPreferencesCreatesDefaults(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodGet, "/api/v0/preferences/7", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var pref models.Preference
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pref))
	assert.Equal(t, int64(7), pref.UserID)
	assert.True(t, pref.EmailEnabled)
	assert.False(t, pref.SMSEnabled)
	assert.Equal(t, models.SeverityMedium, pref.MinimumSeverity)
}

func TestUpdatePreferences(t *testing.T) {
	f := newAPIFixture(t)
	f.preferences.Put(models.DefaultPreference(7))

	w := f.do(http.MethodPut, "/api/v0/preferences/7", gin.H{
		"sms_enabled":       true,
		"phone_number":      "+15550001111",
		"minimum_severity":  "high",
		"quiet_hours_start": "22:00",
		"quiet_hours_end":   "06:00",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var pref models.Preference
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pref))
	assert.True(t, pref.SMSEnabled)
	assert.Equal(t, models.SeverityHigh, pref.MinimumSeverity)
	assert.Equal(t, "22:00", pref.QuietHoursStart)

	// Untouched fields survive the patch.
	assert.True(t, pref.EmailEnabled)
}

func TestUpdatePreferencesValidation(t *testing.T) {
	f := newAPIFixture(t)
	f.preferences.Put(models.DefaultPreference(7))

	tests := []struct {
		name  string
		patch gin.H
	}{
		{"bad quiet hours", gin.H{"quiet_hours_start": "25:00"}},
		{"bad severity", gin.H{"minimum_severity": "urgent"}},
		{"bad timezone", gin.H{"timezone": "Mars/Olympus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodPut, "/api/v0/preferences/7", tt.patch)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestUpdatePreferencesUnknownUserUpserts(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPut, "/api/v0/preferences/99", gin.H{"email_enabled": false})
	require.Equal(t, http.StatusOK, w.Code)

	var pref models.Preference
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pref))
	assert.Equal(t, int64(99), pref.UserID)
	assert.False(t, pref.EmailEnabled)
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
