// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package sync

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/vitalsync/internal/auth"
	"github.com/tomtom215/vitalsync/internal/config"
	"github.com/tomtom215/vitalsync/internal/models"
	"github.com/tomtom215/vitalsync/internal/provider"
)

// memoryIntegrationStore is an in-memory IntegrationStore.
type memoryIntegrationStore struct {
	mu   sync.Mutex
	byID map[string]models.Integration

	credentialUpdates atomic.Int32
	lastSyncedErr     error
}

func newMemoryIntegrationStore(integrations ...models.Integration) *memoryIntegrationStore {
	s := &memoryIntegrationStore{byID: make(map[string]models.Integration)}
	for _, integ := range integrations {
		s.byID[integ.ID] = integ
	}
	return s
}

func (s *memoryIntegrationStore) get(id string) models.Integration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id]
}

func (s *memoryIntegrationStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *memoryIntegrationStore) FindByID(_ context.Context, id string) (*models.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	integ, ok := s.byID[id]
	if !ok {
		return nil, &models.IntegrationNotFoundError{ID: id}
	}
	return &integ, nil
}

func (s *memoryIntegrationStore) FindByUserAndProvider(_ context.Context, userID string, p models.Provider) (*models.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, integ := range s.byID {
		if integ.UserID == userID && integ.Provider == p {
			return &integ, nil
		}
	}
	return nil, models.ErrIntegrationNotFound
}

func (s *memoryIntegrationStore) FindByUser(_ context.Context, userID string) ([]models.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Integration
	for _, integ := range s.byID {
		if integ.UserID == userID {
			out = append(out, integ)
		}
	}
	return out, nil
}

func (s *memoryIntegrationStore) FindDueForSync(_ context.Context, before time.Time, limit int) ([]models.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Integration
	for _, integ := range s.byID {
		out = append(out, integ)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryIntegrationStore) Create(_ context.Context, integ *models.Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.UserID == integ.UserID && existing.Provider == integ.Provider {
			return &models.DuplicateIntegrationError{UserID: integ.UserID, Provider: integ.Provider}
		}
	}
	s.byID[integ.ID] = *integ
	return nil
}

func (s *memoryIntegrationStore) update(id string, fn func(*models.Integration)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	integ, ok := s.byID[id]
	if !ok {
		return &models.IntegrationNotFoundError{ID: id}
	}
	fn(&integ)
	s.byID[id] = integ
	return nil
}

func (s *memoryIntegrationStore) UpdateCredentials(_ context.Context, id string, creds models.OAuthCredentials) error {
	s.credentialUpdates.Add(1)
	return s.update(id, func(i *models.Integration) {
		i.Credentials = creds
		i.Status = models.IntegrationActive
		i.SyncErrorMessage = nil
	})
}

func (s *memoryIntegrationStore) UpdateStatus(_ context.Context, id string, status models.IntegrationStatus, message *string) error {
	return s.update(id, func(i *models.Integration) {
		i.Status = status
		i.SyncErrorMessage = message
	})
}

func (s *memoryIntegrationStore) UpdateLastSynced(_ context.Context, id string, at time.Time) error {
	if s.lastSyncedErr != nil {
		return s.lastSyncedErr
	}
	return s.update(id, func(i *models.Integration) {
		i.LastSyncedAt = &at
		i.Status = models.IntegrationActive
		i.SyncErrorMessage = nil
	})
}

func (s *memoryIntegrationStore) RecordSyncError(_ context.Context, id string, message string) error {
	return s.update(id, func(i *models.Integration) {
		i.Status = models.IntegrationError
		i.SyncErrorMessage = &message
	})
}

func (s *memoryIntegrationStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return &models.IntegrationNotFoundError{ID: id}
	}
	delete(s.byID, id)
	return nil
}

// memoryRecordStore is an in-memory HealthRecordStore keyed like the real one.
type memoryRecordStore struct {
	mu      sync.Mutex
	records map[string]models.HealthRecord
}

func newMemoryRecordStore() *memoryRecordStore {
	return &memoryRecordStore{records: make(map[string]models.HealthRecord)}
}

func (s *memoryRecordStore) BulkUpsert(_ context.Context, records []models.HealthRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.UserID+"|"+string(r.Provider)+"|"+r.DateKey()] = r
	}
	return len(records), nil
}

func (s *memoryRecordStore) QueryRange(_ context.Context, userID string, start, end time.Time) ([]models.HealthRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.HealthRecord
	for _, r := range s.records {
		if r.UserID == userID && !r.Date.Before(start) && !r.Date.After(end) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *memoryRecordStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// fakeAdapter is a scriptable provider.Adapter.
type fakeAdapter struct {
	provider models.Provider

	mu          sync.Mutex
	exchange    func(code string) (*models.OAuthCredentials, error)
	refresh     func(token string) (*models.OAuthCredentials, error)
	fetch       func(creds *models.OAuthCredentials, start, end time.Time) ([]models.HealthRecord, error)
	fetchCtx    func(ctx context.Context) ([]models.HealthRecord, error)
	revokeErr   error
	fetchCalls  atomic.Int32
	refreshes   atomic.Int32
	revokes     atomic.Int32
	lastStart   time.Time
	lastEnd     time.Time
	lastFetched *models.OAuthCredentials
}

func (f *fakeAdapter) Provider() models.Provider { return f.provider }

func (f *fakeAdapter) BuildAuthorizationURL(state string) provider.AuthorizationURL {
	return provider.AuthorizationURL{URL: "https://auth.example.com/?state=" + state, State: state}
}

func (f *fakeAdapter) ExchangeCode(_ context.Context, code string) (*models.OAuthCredentials, error) {
	return f.exchange(code)
}

func (f *fakeAdapter) RefreshToken(_ context.Context, token string) (*models.OAuthCredentials, error) {
	f.refreshes.Add(1)
	return f.refresh(token)
}

func (f *fakeAdapter) FetchRange(ctx context.Context, creds *models.OAuthCredentials, start, end time.Time) ([]models.HealthRecord, error) {
	f.fetchCalls.Add(1)
	f.mu.Lock()
	f.lastStart, f.lastEnd, f.lastFetched = start, end, creds
	f.mu.Unlock()
	if f.fetchCtx != nil {
		return f.fetchCtx(ctx)
	}
	if f.fetch == nil {
		return []models.HealthRecord{}, nil
	}
	return f.fetch(creds, start, end)
}

func (f *fakeAdapter) Revoke(context.Context, *models.OAuthCredentials) error {
	f.revokes.Add(1)
	return f.revokeErr
}

func newFakeAdapter(p models.Provider) *fakeAdapter {
	return &fakeAdapter{
		provider: p,
		exchange: func(code string) (*models.OAuthCredentials, error) {
			return &models.OAuthCredentials{AccessToken: "at-" + code, RefreshToken: "rt-" + code, ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
		refresh: func(token string) (*models.OAuthCredentials, error) {
			return &models.OAuthCredentials{AccessToken: "refreshed", RefreshToken: token, ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		OAuth: config.OAuthConfig{StateTTL: 10 * time.Minute},
		Sync: config.SyncConfig{
			Interval:                time.Hour,
			Staleness:               24 * time.Hour,
			BatchLimit:              10,
			Concurrency:             2,
			RefreshLookaheadMinutes: 5,
			InitialLookbackDays:     7,
			MaxRangeDays:            90,
			RetryAttempts:           3,
			RetryDelay:              time.Millisecond,
		},
	}
}

type testEnv struct {
	manager      *Manager
	integrations *memoryIntegrationStore
	records      *memoryRecordStore
	adapter      *fakeAdapter
	states       *auth.MemoryStateStore
}

func newTestEnv(t *testing.T, integrations ...models.Integration) *testEnv {
	t.Helper()
	env := &testEnv{
		integrations: newMemoryIntegrationStore(integrations...),
		records:      newMemoryRecordStore(),
		adapter:      newFakeAdapter(models.ProviderStrava),
		states:       auth.NewMemoryStateStore(),
	}
	registry := provider.NewRegistryWith(env.adapter)
	env.manager = NewManager(testConfig(), env.integrations, env.records, registry, env.states)
	return env
}

func activeIntegration(id string, lastSynced *time.Time) models.Integration {
	return models.Integration{
		ID:       id,
		UserID:   "user-" + id,
		Provider: models.ProviderStrava,
		Credentials: models.OAuthCredentials{
			AccessToken:  "at-" + id,
			RefreshToken: "rt-" + id,
			ExpiresAt:    time.Now().Add(time.Hour),
		},
		Status:       models.IntegrationActive,
		LastSyncedAt: lastSynced,
		CreatedAt:    time.Now().Add(-30 * 24 * time.Hour),
	}
}

func timePtr(t time.Time) *time.Time { return &t }

// recordingPublisher captures published sync events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []SyncCompletedEvent
}

func (p *recordingPublisher) PublishSyncCompleted(_ context.Context, event *SyncCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return nil
}

func (p *recordingPublisher) all() []SyncCompletedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SyncCompletedEvent(nil), p.events...)
}

// recordingBroadcaster captures websocket broadcasts.
type recordingBroadcaster struct {
	mu    sync.Mutex
	types []string
}

func (b *recordingBroadcaster) BroadcastJSON(messageType string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types = append(b.types, messageType)
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.types)
}

func upstreamError(status int) error {
	return &provider.ProviderFetchError{Provider: models.ProviderStrava, Endpoint: "activities", StatusCode: status}
}
