// Package memory provides in-process store implementations used by tests and
// single-node development runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"notification-engine/internal/models"
	"notification-engine/internal/storage"
)

// NotificationStore keeps attempt records in a mutex-guarded map.
type NotificationStore struct {
	mu      sync.Mutex
	records map[string]models.Notification
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{records: make(map[string]models.Notification)}
}

func (s *NotificationStore) Create(_ context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[n.ID] = n
	return nil
}

func (s *NotificationStore) MarkSent(_ context.Context, id string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.records[id]
	if !ok {
		return storage.ErrNotFound
	}
	n.Status = models.StatusSent
	n.SentAt = &sentAt
	s.records[id] = n
	return nil
}

func (s *NotificationStore) MarkFailed(_ context.Context, id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.records[id]
	if !ok {
		return storage.ErrNotFound
	}
	n.Status = models.StatusFailed
	n.ErrorMessage = errMsg
	s.records[id] = n
	return nil
}

func (s *NotificationStore) ListByUser(_ context.Context, userID int64, limit int, unreadOnly bool) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.records {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *NotificationStore) MarkRead(_ context.Context, ids []string, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, id := range ids {
		n, ok := s.records[id]
		if !ok || n.UserID != userID || n.Read {
			continue
		}
		n.Read = true
		s.records[id] = n
		count++
	}
	return count, nil
}

// Get returns a single record; test helper, not part of the store contract.
func (s *NotificationStore) Get(id string) (models.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.records[id]
	return n, ok
}

// All returns every record; test helper.
func (s *NotificationStore) All() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, 0, len(s.records))
	for _, n := range s.records {
		out = append(out, n)
	}
	return out
}

// PreferenceStore keeps preferences in a map with lazy default creation.
type PreferenceStore struct {
	mu    sync.Mutex
	prefs map[int64]models.Preference
}

func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{prefs: make(map[int64]models.Preference)}
}

func (s *PreferenceStore) Get(_ context.Context, userID int64) (models.Preference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefs[userID]
	if !ok {
		return models.Preference{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *PreferenceStore) GetOrCreate(_ context.Context, userID int64) (models.Preference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.prefs[userID]; ok {
		return p, nil
	}
	p := models.DefaultPreference(userID)
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	s.prefs[userID] = p
	return p, nil
}

func (s *PreferenceStore) Update(_ context.Context, userID int64, patch models.PreferencePatch) (models.Preference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefs[userID]
	if !ok {
		p = models.DefaultPreference(userID)
		p.CreatedAt = time.Now()
	}
	p = patch.Apply(p)
	p.UpdatedAt = time.Now()
	s.prefs[userID] = p
	return p, nil
}

// Put seeds a preference directly; test helper.
func (s *PreferenceStore) Put(p models.Preference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[p.UserID] = p
}

type claimKey struct {
	userID    int64
	capID     string
	threshold int
}

// ThresholdClaimStore implements the cooldown compare-and-set with a single
// mutex, which makes the check-and-record step atomic process-wide.
type ThresholdClaimStore struct {
	mu     sync.Mutex
	claims map[claimKey]time.Time
}

func NewThresholdClaimStore() *ThresholdClaimStore {
	return &ThresholdClaimStore{claims: make(map[claimKey]time.Time)}
}

func (s *ThresholdClaimStore) Claim(_ context.Context, userID int64, capID string, thresholdPercent int, now time.Time, cooldown time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := claimKey{userID, capID, thresholdPercent}
	if last, ok := s.claims[key]; ok && now.Sub(last) < cooldown {
		return false, nil
	}
	s.claims[key] = now
	return true, nil
}
