// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/vitalsync/internal/auth"
	"github.com/tomtom215/vitalsync/internal/config"
	"github.com/tomtom215/vitalsync/internal/logging"
	"github.com/tomtom215/vitalsync/internal/metrics"
	"github.com/tomtom215/vitalsync/internal/models"
	"github.com/tomtom215/vitalsync/internal/provider"
)

// MessageTypeSyncCompleted is the websocket message type for sync results.
const MessageTypeSyncCompleted = "sync_completed"

// SyncResult is returned by SyncNow.
type SyncResult struct {
	IntegrationID  string                   `json:"integration_id"`
	RecordsFetched int                      `json:"records_fetched"`
	Status         models.IntegrationStatus `json:"status"`
}

// BatchResult summarizes one RunBatchSync.
type BatchResult struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Manager orchestrates OAuth connections and data synchronization.
type Manager struct {
	cfg          *config.Config
	integrations IntegrationStore
	records      HealthRecordStore
	registry     *provider.Registry
	states       auth.StateStore
	credentials  *CredentialManager
	scheduler    *Scheduler
	flight       singleflight.Group
	now          func() time.Time

	mu        sync.RWMutex
	publisher EventPublisher
	hub       Broadcaster
	running   bool
	lastBatch time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewManager wires the sync engine.
func NewManager(cfg *config.Config, integrations IntegrationStore, records HealthRecordStore, registry *provider.Registry, states auth.StateStore) *Manager {
	logging.Info().
		Dur("interval", cfg.Sync.Interval).
		Dur("staleness", cfg.Sync.Staleness).
		Int("batch_limit", cfg.Sync.BatchLimit).
		Int("concurrency", cfg.Sync.Concurrency).
		Strs("providers", providerNames(registry.Providers())).
		Msg("Sync manager config loaded")

	return &Manager{
		cfg:          cfg,
		integrations: integrations,
		records:      records,
		registry:     registry,
		states:       states,
		credentials:  NewCredentialManager(integrations, registry, cfg.Sync.RefreshLookahead()),
		scheduler:    NewScheduler(integrations),
		now:          time.Now,
		stopChan:     make(chan struct{}),
	}
}

func providerNames(ps []models.Provider) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

// SetEventPublisher sets the optional publisher for sync completion events.
func (m *Manager) SetEventPublisher(publisher EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publisher = publisher
}

// SetBroadcaster sets the optional websocket broadcaster.
func (m *Manager) SetBroadcaster(hub Broadcaster) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hub = hub
}

// Providers lists the providers users can connect.
func (m *Manager) Providers() []models.Provider {
	return m.registry.Providers()
}

// GetAuthorizationURL starts an OAuth flow: it stores a single-use state
// nonce bound to (userID, provider) and returns the consent URL.
func (m *Manager) GetAuthorizationURL(ctx context.Context, userID string, p models.Provider) (*provider.AuthorizationURL, error) {
	adapter, err := m.registry.Get(p)
	if err != nil {
		return nil, err
	}

	state := auth.NewOAuthState(userID, p, m.now(), m.stateTTL())
	if err := m.states.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save oauth state: %w", err)
	}

	authURL := adapter.BuildAuthorizationURL(state.Nonce)
	return &authURL, nil
}

func (m *Manager) stateTTL() time.Duration {
	if m.cfg.OAuth.StateTTL > 0 {
		return m.cfg.OAuth.StateTTL
	}
	return provider.DefaultStateTTL
}

// ConsumeState resolves an OAuth callback's state nonce. Each nonce
// resolves once.
func (m *Manager) ConsumeState(ctx context.Context, nonce string) (*auth.OAuthState, error) {
	return m.states.Consume(ctx, nonce)
}

// CompleteOAuth exchanges the authorization code and stores the
// credentials. Connecting a provider the user already has overwrites the
// credentials and resets the integration to ACTIVE. A failed exchange
// leaves storage untouched.
func (m *Manager) CompleteOAuth(ctx context.Context, userID string, p models.Provider, code string) (*models.Integration, error) {
	adapter, err := m.registry.Get(p)
	if err != nil {
		return nil, err
	}

	creds, err := adapter.ExchangeCode(ctx, code)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Str("provider", string(p)).Msg("OAuth code exchange failed")
		return nil, err
	}

	existing, err := m.integrations.FindByUserAndProvider(ctx, userID, p)
	switch {
	case err == nil:
		return m.reconnect(ctx, existing, creds)
	case !errors.Is(err, models.ErrIntegrationNotFound):
		return nil, fmt.Errorf("look up integration: %w", err)
	}

	now := m.now().UTC()
	integ := &models.Integration{
		ID:          uuid.NewString(),
		UserID:      userID,
		Provider:    p,
		Credentials: *creds,
		Status:      models.IntegrationActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.integrations.Create(ctx, integ); err != nil {
		if errors.Is(err, models.ErrDuplicateIntegration) {
			// Lost a race with a concurrent callback for the same pair.
			existing, findErr := m.integrations.FindByUserAndProvider(ctx, userID, p)
			if findErr != nil {
				return nil, err
			}
			return m.reconnect(ctx, existing, creds)
		}
		return nil, fmt.Errorf("create integration: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("integration_id", integ.ID).
		Str("user_id", userID).
		Str("provider", string(p)).
		Msg("Integration connected")
	return integ, nil
}

func (m *Manager) reconnect(ctx context.Context, existing *models.Integration, creds *models.OAuthCredentials) (*models.Integration, error) {
	unlock := m.credentials.Lock(existing.ID)
	defer unlock()

	if err := m.integrations.UpdateCredentials(ctx, existing.ID, *creds); err != nil {
		return nil, fmt.Errorf("update credentials: %w", err)
	}
	logging.Ctx(ctx).Info().
		Str("integration_id", existing.ID).
		Str("user_id", existing.UserID).
		Str("provider", string(existing.Provider)).
		Msg("Integration reconnected")
	return m.integrations.FindByID(ctx, existing.ID)
}

// Disconnect revokes the provider tokens (best effort) and deletes the
// integration. Revocation failures are logged and never block deletion.
func (m *Manager) Disconnect(ctx context.Context, integrationID string) error {
	integ, err := m.integrations.FindByID(ctx, integrationID)
	if err != nil {
		return err
	}

	unlock := m.credentials.Lock(integrationID)
	defer unlock()

	log := logging.Ctx(ctx).With().
		Str("integration_id", integ.ID).
		Str("user_id", integ.UserID).
		Str("provider", string(integ.Provider)).
		Logger()

	if adapter, err := m.registry.Get(integ.Provider); err == nil {
		if err := adapter.Revoke(ctx, &integ.Credentials); err != nil {
			log.Warn().Err(err).Msg("Token revocation failed, deleting integration anyway")
		}
	} else {
		log.Warn().Err(err).Msg("Skipping token revocation")
	}

	if err := m.integrations.Delete(ctx, integrationID); err != nil {
		return fmt.Errorf("delete integration: %w", err)
	}
	log.Info().Msg("Integration disconnected")
	return nil
}

// ListIntegrations returns the user's integrations.
func (m *Manager) ListIntegrations(ctx context.Context, userID string) ([]models.Integration, error) {
	return m.integrations.FindByUser(ctx, userID)
}

// GetIntegration returns one integration.
func (m *Manager) GetIntegration(ctx context.Context, integrationID string) (*models.Integration, error) {
	return m.integrations.FindByID(ctx, integrationID)
}

// SyncNow syncs one integration immediately. Concurrent calls for the same
// integration share a single run and its result. The run is detached from
// ctx cancellation so a departing caller cannot fail the others; its values
// (correlation ID, request ID) are kept.
func (m *Manager) SyncNow(ctx context.Context, integrationID string) (*SyncResult, error) {
	runCtx := context.WithoutCancel(ctx)
	v, err, _ := m.flight.Do(integrationID, func() (interface{}, error) {
		return m.syncIntegration(runCtx, integrationID)
	})
	result, _ := v.(*SyncResult)
	return result, err
}

// syncIntegration runs refresh, fetch, persist and status update in order.
func (m *Manager) syncIntegration(ctx context.Context, integrationID string) (*SyncResult, error) {
	started := m.now()

	integ, err := m.integrations.FindByID(ctx, integrationID)
	if err != nil {
		return nil, err
	}

	if logging.CorrelationIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}
	log := logging.Ctx(ctx).With().
		Str("integration_id", integ.ID).
		Str("user_id", integ.UserID).
		Str("provider", string(integ.Provider)).
		Logger()

	adapter, err := m.registry.Get(integ.Provider)
	if err != nil {
		return m.fail(ctx, integ, started, time.Time{}, time.Time{}, err)
	}

	creds, err := m.credentials.EnsureFresh(ctx, integ)
	if err != nil {
		// EnsureFresh already recorded the status change.
		return m.finish(ctx, integ, started, time.Time{}, time.Time{}, 0, err)
	}

	start, end := syncRange(integ.LastSyncedAt, m.now(), m.cfg.Sync.InitialLookbackDays, m.cfg.Sync.MaxRangeDays)
	log.Debug().
		Str("range_start", start.Format(models.DateLayout)).
		Str("range_end", end.Format(models.DateLayout)).
		Msg("Fetching provider data")

	var records []models.HealthRecord
	err = retryWithBackoff(ctx, m.cfg.Sync.RetryAttempts, m.cfg.Sync.RetryDelay, func() error {
		var fetchErr error
		records, fetchErr = adapter.FetchRange(ctx, creds, start, end)
		return fetchErr
	})
	if err != nil {
		return m.fail(ctx, integ, started, start, end, err)
	}

	for i := range records {
		records[i].UserID = integ.UserID
		records[i].Provider = integ.Provider
	}
	if len(records) > 0 {
		if _, err := m.records.BulkUpsert(ctx, records); err != nil {
			return m.fail(ctx, integ, started, start, end, fmt.Errorf("store health records: %w", err))
		}
	}

	if err := m.integrations.UpdateLastSynced(ctx, integ.ID, m.now().UTC()); err != nil {
		return m.fail(ctx, integ, started, start, end, fmt.Errorf("mark integration synced: %w", err))
	}
	integ.Status = models.IntegrationActive

	log.Info().
		Int("records", len(records)).
		Dur("duration", m.now().Sub(started)).
		Msg("Integration synced")
	return m.finish(ctx, integ, started, start, end, len(records), nil)
}

// fail records err on the integration (status ERROR) and finishes the run.
func (m *Manager) fail(ctx context.Context, integ *models.Integration, started, start, end time.Time, err error) (*SyncResult, error) {
	if recErr := m.integrations.RecordSyncError(ctx, integ.ID, err.Error()); recErr != nil {
		logging.Ctx(ctx).Error().Err(recErr).Str("integration_id", integ.ID).Msg("Failed to record sync error")
	}
	integ.Status = models.IntegrationError
	logging.Ctx(ctx).Warn().Err(err).
		Str("integration_id", integ.ID).
		Str("user_id", integ.UserID).
		Str("provider", string(integ.Provider)).
		Str("error_kind", provider.ErrorKind(err)).
		Msg("Integration sync failed")
	return m.finish(ctx, integ, started, start, end, 0, err)
}

// finish records metrics and notifies listeners.
func (m *Manager) finish(ctx context.Context, integ *models.Integration, started, start, end time.Time, n int, err error) (*SyncResult, error) {
	duration := m.now().Sub(started)
	errorType := ""
	if err != nil {
		errorType = provider.ErrorKind(err)
		if errors.Is(err, ErrCredentialsExpired) {
			errorType = "credentials_expired"
		}
	}
	metrics.RecordSyncOperation(string(integ.Provider), duration, n, errorType)

	event := &SyncCompletedEvent{
		EventID:        uuid.NewString(),
		IntegrationID:  integ.ID,
		UserID:         integ.UserID,
		Provider:       integ.Provider,
		Status:         integ.Status,
		RecordsFetched: n,
		DurationMs:     duration.Milliseconds(),
		CompletedAt:    m.now().UTC(),
	}
	if !start.IsZero() {
		event.RangeStart = start.Format(models.DateLayout)
		event.RangeEnd = end.Format(models.DateLayout)
	}
	if err != nil {
		event.Error = err.Error()
	}
	m.notify(ctx, event)

	return &SyncResult{IntegrationID: integ.ID, RecordsFetched: n, Status: integ.Status}, err
}

func (m *Manager) notify(ctx context.Context, event *SyncCompletedEvent) {
	m.mu.RLock()
	publisher, hub := m.publisher, m.hub
	m.mu.RUnlock()

	if publisher != nil {
		if err := publisher.PublishSyncCompleted(ctx, event); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("integration_id", event.IntegrationID).Msg("Failed to publish sync event")
		}
	}
	if hub != nil {
		hub.BroadcastJSON(MessageTypeSyncCompleted, event)
	}
}

// RunBatchSync syncs every integration that is due, up to sync.batch_limit,
// with at most sync.concurrency running at once. Per-integration failures
// are counted, not returned; only a failed selection query is an error.
func (m *Manager) RunBatchSync(ctx context.Context) (*BatchResult, error) {
	started := m.now()
	staleBefore := started.Add(-m.cfg.Sync.Staleness)

	due, err := m.scheduler.SelectDueIntegrations(ctx, staleBefore, m.cfg.Sync.BatchLimit)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	result := &BatchResult{Attempted: len(due)}

	g, gctx := errgroup.WithContext(ctx)
	concurrency := m.cfg.Sync.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	g.SetLimit(concurrency)

	for i := range due {
		integ := due[i]
		g.Go(func() error {
			_, syncErr := m.SyncNow(gctx, integ.ID)
			mu.Lock()
			if syncErr != nil {
				result.Failed++
			} else {
				result.Succeeded++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	m.mu.Lock()
	m.lastBatch = m.now()
	m.mu.Unlock()

	metrics.RecordBatchSync(m.now().Sub(started), result.Succeeded, result.Failed)
	logging.Ctx(ctx).Info().
		Int("attempted", result.Attempted).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Dur("duration", m.now().Sub(started)).
		Msg("Batch sync completed")
	return result, nil
}

// LastBatchTime returns when the last batch sync finished.
func (m *Manager) LastBatchTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastBatch
}

// Start begins the periodic batch sync loop when the scheduler is enabled.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("sync manager is already running")
	}
	m.running = true
	m.stopChan = make(chan struct{})
	m.mu.Unlock()

	if !m.cfg.Sync.SchedulerEnabled {
		logging.Info().Msg("Batch sync scheduler disabled (SYNC_SCHEDULER_ENABLED=false)")
		return nil
	}

	logging.Info().Dur("interval", m.cfg.Sync.Interval).Msg("Starting batch sync scheduler...")
	m.wg.Add(1)
	go m.batchLoop(ctx)
	return nil
}

func (m *Manager) batchLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Sync.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.RunBatchSync(ctx); err != nil {
				logging.Error().Err(err).Msg("Batch sync failed")
			}
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the batch loop and waits for an in-progress batch to finish.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return errors.New("sync manager is not running")
	}
	m.running = false
	close(m.stopChan)
	m.mu.Unlock()

	logging.Info().Msg("Stopping sync manager...")
	m.wg.Wait()
	logging.Info().Msg("Sync manager stopped")
	return nil
}
