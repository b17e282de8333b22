// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package sync

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/vitalsync/internal/auth"
	"github.com/tomtom215/vitalsync/internal/models"
	"github.com/tomtom215/vitalsync/internal/provider"
)

func stepsRecord(date string, steps int) models.HealthRecord {
	d, _ := models.ParseDay(date)
	return models.HealthRecord{Date: d, Steps: models.IntPtr(steps)}
}

func TestGetAuthorizationURL_StateIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	authURL, err := env.manager.GetAuthorizationURL(ctx, "user-1", models.ProviderStrava)
	if err != nil {
		t.Fatalf("GetAuthorizationURL failed: %v", err)
	}
	if authURL.State == "" || !strings.Contains(authURL.URL, authURL.State) {
		t.Errorf("URL %q does not carry state %q", authURL.URL, authURL.State)
	}

	state, err := env.manager.ConsumeState(ctx, authURL.State)
	if err != nil {
		t.Fatalf("ConsumeState failed: %v", err)
	}
	if state.UserID != "user-1" || state.Provider != models.ProviderStrava {
		t.Errorf("state = (%q, %q), want (user-1, strava)", state.UserID, state.Provider)
	}

	if _, err := env.manager.ConsumeState(ctx, authURL.State); !errors.Is(err, auth.ErrStateNotFound) {
		t.Errorf("second ConsumeState error = %v, want ErrStateNotFound", err)
	}
}

func TestGetAuthorizationURL_UnsupportedProvider(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.manager.GetAuthorizationURL(context.Background(), "user-1", models.ProviderFitbit)
	if !errors.Is(err, provider.ErrUnsupportedProvider) {
		t.Errorf("error = %v, want ErrUnsupportedProvider", err)
	}
}

func TestCompleteOAuth_CreatesIntegration(t *testing.T) {
	env := newTestEnv(t)

	integ, err := env.manager.CompleteOAuth(context.Background(), "user-1", models.ProviderStrava, "code1")
	if err != nil {
		t.Fatalf("CompleteOAuth failed: %v", err)
	}
	if integ.ID == "" {
		t.Error("integration ID is empty")
	}
	if integ.Status != models.IntegrationActive {
		t.Errorf("Status = %q, want %q", integ.Status, models.IntegrationActive)
	}
	if integ.LastSyncedAt != nil {
		t.Error("LastSyncedAt set on a new integration")
	}
	if got := env.integrations.get(integ.ID).Credentials.AccessToken; got != "at-code1" {
		t.Errorf("stored AccessToken = %q, want %q", got, "at-code1")
	}
}

func TestCompleteOAuth_ReconnectOverwrites(t *testing.T) {
	existing := activeIntegration("A", timePtr(time.Now().Add(-time.Hour)))
	existing.Status = models.IntegrationError
	msg := "token refresh failed"
	existing.SyncErrorMessage = &msg
	env := newTestEnv(t, existing)

	integ, err := env.manager.CompleteOAuth(context.Background(), existing.UserID, models.ProviderStrava, "fresh")
	if err != nil {
		t.Fatalf("CompleteOAuth failed: %v", err)
	}
	if integ.ID != "A" {
		t.Errorf("ID = %q, want %q", integ.ID, "A")
	}
	if env.integrations.count() != 1 {
		t.Errorf("integration count = %d, want 1", env.integrations.count())
	}

	stored := env.integrations.get("A")
	if stored.Status != models.IntegrationActive {
		t.Errorf("Status = %q, want %q", stored.Status, models.IntegrationActive)
	}
	if stored.SyncErrorMessage != nil {
		t.Errorf("SyncErrorMessage = %q, want nil", *stored.SyncErrorMessage)
	}
	if stored.Credentials.AccessToken != "at-fresh" {
		t.Errorf("AccessToken = %q, want %q", stored.Credentials.AccessToken, "at-fresh")
	}
}

func TestCompleteOAuth_ExchangeFailureLeavesStorage(t *testing.T) {
	existing := activeIntegration("A", nil)
	env := newTestEnv(t, existing)
	env.adapter.exchange = func(string) (*models.OAuthCredentials, error) {
		return nil, &provider.AuthExchangeError{Provider: models.ProviderStrava, StatusCode: http.StatusUnauthorized}
	}

	_, err := env.manager.CompleteOAuth(context.Background(), existing.UserID, models.ProviderStrava, "bad")
	var exchangeErr *provider.AuthExchangeError
	if !errors.As(err, &exchangeErr) {
		t.Fatalf("error = %v, want *provider.AuthExchangeError", err)
	}
	if got := env.integrations.get("A").Credentials.AccessToken; got != "at-A" {
		t.Errorf("AccessToken = %q, want unchanged %q", got, "at-A")
	}

	_, err = env.manager.CompleteOAuth(context.Background(), "someone-else", models.ProviderStrava, "bad")
	if err == nil {
		t.Fatal("expected error")
	}
	if env.integrations.count() != 1 {
		t.Errorf("integration count = %d, want 1", env.integrations.count())
	}
}

func TestDisconnect(t *testing.T) {
	t.Run("revocation failure still deletes", func(t *testing.T) {
		env := newTestEnv(t, activeIntegration("A", nil))
		env.adapter.revokeErr = errors.New("revoke endpoint down")

		if err := env.manager.Disconnect(context.Background(), "A"); err != nil {
			t.Fatalf("Disconnect failed: %v", err)
		}
		if env.adapter.revokes.Load() != 1 {
			t.Errorf("revokes = %d, want 1", env.adapter.revokes.Load())
		}
		if env.integrations.count() != 0 {
			t.Errorf("integration count = %d, want 0", env.integrations.count())
		}
	})

	t.Run("unknown integration", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.manager.Disconnect(context.Background(), "missing")
		if !errors.Is(err, models.ErrIntegrationNotFound) {
			t.Errorf("error = %v, want ErrIntegrationNotFound", err)
		}
	})
}

func TestSyncNow_Success(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, activeIntegration("A", nil))
	env.manager.now = func() time.Time { return now }
	env.adapter.fetch = func(_ *models.OAuthCredentials, _, _ time.Time) ([]models.HealthRecord, error) {
		return []models.HealthRecord{stepsRecord("2024-03-08", 5000), stepsRecord("2024-03-09", 7000)}, nil
	}

	result, err := env.manager.SyncNow(context.Background(), "A")
	if err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}
	if result.RecordsFetched != 2 {
		t.Errorf("RecordsFetched = %d, want 2", result.RecordsFetched)
	}
	if result.Status != models.IntegrationActive {
		t.Errorf("Status = %q, want %q", result.Status, models.IntegrationActive)
	}

	stored := env.integrations.get("A")
	if stored.LastSyncedAt == nil || !stored.LastSyncedAt.Equal(now) {
		t.Errorf("LastSyncedAt = %v, want %v", stored.LastSyncedAt, now)
	}

	if got := env.adapter.lastStart.Format(models.DateLayout); got != "2024-03-03" {
		t.Errorf("range start = %q, want %q", got, "2024-03-03")
	}
	if got := env.adapter.lastEnd.Format(models.DateLayout); got != "2024-03-10" {
		t.Errorf("range end = %q, want %q", got, "2024-03-10")
	}

	records, err := env.records.QueryRange(context.Background(), "user-A", now.AddDate(0, 0, -30), now)
	if err != nil {
		t.Fatalf("QueryRange failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("stored records = %d, want 2", len(records))
	}
	for _, r := range records {
		if r.UserID != "user-A" || r.Provider != models.ProviderStrava {
			t.Errorf("record owner = (%q, %q), want (user-A, strava)", r.UserID, r.Provider)
		}
	}
}

func TestSyncNow_FetchFailureMarksError(t *testing.T) {
	last := time.Now().Add(-48 * time.Hour)
	env := newTestEnv(t, activeIntegration("A", &last))
	env.adapter.fetch = func(*models.OAuthCredentials, time.Time, time.Time) ([]models.HealthRecord, error) {
		return nil, upstreamError(http.StatusBadRequest)
	}

	result, err := env.manager.SyncNow(context.Background(), "A")
	if err == nil {
		t.Fatal("expected error")
	}
	if result == nil || result.Status != models.IntegrationError {
		t.Errorf("result = %+v, want status ERROR", result)
	}
	if n := env.adapter.fetchCalls.Load(); n != 1 {
		t.Errorf("fetch calls = %d, want 1 (not retryable)", n)
	}

	stored := env.integrations.get("A")
	if stored.Status != models.IntegrationError {
		t.Errorf("Status = %q, want %q", stored.Status, models.IntegrationError)
	}
	if stored.SyncErrorMessage == nil || !strings.Contains(*stored.SyncErrorMessage, "400") {
		t.Errorf("SyncErrorMessage = %v, want message containing 400", stored.SyncErrorMessage)
	}
	if !stored.LastSyncedAt.Equal(last) {
		t.Errorf("LastSyncedAt moved to %v on failure", stored.LastSyncedAt)
	}
	if env.records.len() != 0 {
		t.Errorf("stored records = %d, want 0", env.records.len())
	}
}

func TestSyncNow_RetriesTransientFailure(t *testing.T) {
	env := newTestEnv(t, activeIntegration("A", nil))
	var calls int
	env.adapter.fetch = func(*models.OAuthCredentials, time.Time, time.Time) ([]models.HealthRecord, error) {
		calls++
		if calls == 1 {
			return nil, upstreamError(http.StatusServiceUnavailable)
		}
		return []models.HealthRecord{stepsRecord("2024-03-09", 100)}, nil
	}

	result, err := env.manager.SyncNow(context.Background(), "A")
	if err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}
	if result.RecordsFetched != 1 {
		t.Errorf("RecordsFetched = %d, want 1", result.RecordsFetched)
	}
	if n := env.adapter.fetchCalls.Load(); n != 2 {
		t.Errorf("fetch calls = %d, want 2", n)
	}
}

func TestSyncNow_ErrorIntegrationRecovers(t *testing.T) {
	integ := activeIntegration("A", nil)
	integ.Status = models.IntegrationError
	msg := "previous failure"
	integ.SyncErrorMessage = &msg
	env := newTestEnv(t, integ)

	if _, err := env.manager.SyncNow(context.Background(), "A"); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}
	stored := env.integrations.get("A")
	if stored.Status != models.IntegrationActive {
		t.Errorf("Status = %q, want %q", stored.Status, models.IntegrationActive)
	}
	if stored.SyncErrorMessage != nil {
		t.Errorf("SyncErrorMessage = %q, want nil", *stored.SyncErrorMessage)
	}
}

func TestSyncNow_RefreshesBeforeFetch(t *testing.T) {
	integ := activeIntegration("A", nil)
	integ.Credentials.ExpiresAt = time.Now().Add(time.Minute)
	env := newTestEnv(t, integ)

	if _, err := env.manager.SyncNow(context.Background(), "A"); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}
	if n := env.adapter.refreshes.Load(); n != 1 {
		t.Errorf("refreshes = %d, want 1", n)
	}
	if got := env.adapter.lastFetched.AccessToken; got != "refreshed" {
		t.Errorf("fetch used AccessToken %q, want %q", got, "refreshed")
	}
}

func TestSyncNow_ExpiredWithoutRefreshToken(t *testing.T) {
	integ := activeIntegration("A", nil)
	integ.Credentials.RefreshToken = ""
	integ.Credentials.ExpiresAt = time.Now().Add(-time.Hour)
	env := newTestEnv(t, integ)

	result, err := env.manager.SyncNow(context.Background(), "A")
	if !errors.Is(err, ErrCredentialsExpired) {
		t.Fatalf("error = %v, want ErrCredentialsExpired", err)
	}
	if result.Status != models.IntegrationExpired {
		t.Errorf("Status = %q, want %q", result.Status, models.IntegrationExpired)
	}
	if n := env.adapter.fetchCalls.Load(); n != 0 {
		t.Errorf("fetch calls = %d, want 0", n)
	}
}

func TestSyncNow_ConcurrentCallsShareOneRun(t *testing.T) {
	env := newTestEnv(t, activeIntegration("A", nil))
	release := make(chan struct{})
	env.adapter.fetch = func(*models.OAuthCredentials, time.Time, time.Time) ([]models.HealthRecord, error) {
		<-release
		return []models.HealthRecord{stepsRecord("2024-03-09", 1)}, nil
	}

	var wg sync.WaitGroup
	results := make([]*SyncResult, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = env.manager.SyncNow(context.Background(), "A")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for env.adapter.fetchCalls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = env.manager.SyncNow(context.Background(), "A")
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := env.adapter.fetchCalls.Load(); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}
	for i, r := range results {
		if r == nil || r.RecordsFetched != 1 {
			t.Errorf("results[%d] = %+v, want 1 record", i, r)
		}
	}
}

func TestSyncNow_CallerCancellationDoesNotFailSharedRun(t *testing.T) {
	env := newTestEnv(t, activeIntegration("A", nil))
	release := make(chan struct{})
	env.adapter.fetchCtx = func(ctx context.Context) ([]models.HealthRecord, error) {
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []models.HealthRecord{stepsRecord("2024-03-09", 1)}, nil
	}

	requestCtx, cancelRequest := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = env.manager.SyncNow(requestCtx, "A")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for env.adapter.fetchCalls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[1] = env.manager.SyncNow(context.Background(), "A")
	}()
	time.Sleep(50 * time.Millisecond)
	cancelRequest()
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d error = %v, want nil", i, err)
		}
	}
	stored := env.integrations.get("A")
	if stored.Status != models.IntegrationActive {
		t.Errorf("Status = %q, want %q", stored.Status, models.IntegrationActive)
	}
	if stored.SyncErrorMessage != nil {
		t.Errorf("SyncErrorMessage = %q, want nil", *stored.SyncErrorMessage)
	}
}

func TestSyncNow_MarkSyncedFailureIsRecorded(t *testing.T) {
	env := newTestEnv(t, activeIntegration("A", nil))
	env.integrations.lastSyncedErr = errors.New("duckdb: database is locked")
	publisher := &recordingPublisher{}
	env.manager.SetEventPublisher(publisher)
	env.adapter.fetch = func(*models.OAuthCredentials, time.Time, time.Time) ([]models.HealthRecord, error) {
		return []models.HealthRecord{stepsRecord("2024-03-09", 1)}, nil
	}

	result, err := env.manager.SyncNow(context.Background(), "A")
	if err == nil || !strings.Contains(err.Error(), "mark integration synced") {
		t.Fatalf("error = %v, want mark integration synced failure", err)
	}
	if result == nil || result.Status != models.IntegrationError {
		t.Errorf("result = %+v, want status ERROR", result)
	}

	stored := env.integrations.get("A")
	if stored.Status != models.IntegrationError {
		t.Errorf("Status = %q, want %q", stored.Status, models.IntegrationError)
	}
	if stored.SyncErrorMessage == nil || !strings.Contains(*stored.SyncErrorMessage, "database is locked") {
		t.Errorf("SyncErrorMessage = %v, want the store error", stored.SyncErrorMessage)
	}

	events := publisher.all()
	if len(events) != 1 || events[0].Error == "" {
		t.Errorf("events = %+v, want one event carrying the error", events)
	}
}

func TestSyncNow_ResyncIsIdempotent(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, activeIntegration("A", nil))
	env.manager.now = func() time.Time { return now }
	env.adapter.fetch = func(*models.OAuthCredentials, time.Time, time.Time) ([]models.HealthRecord, error) {
		r := stepsRecord("2024-03-09", 4200)
		r.Weight = models.Float64Ptr(71.5)
		r.RawPayload = []byte(`{"fetched_at":"` + time.Now().String() + `"}`)
		return []models.HealthRecord{r, stepsRecord("2024-03-10", 300)}, nil
	}

	snapshot := func() []models.HealthRecord {
		t.Helper()
		if _, err := env.manager.SyncNow(context.Background(), "A"); err != nil {
			t.Fatalf("SyncNow failed: %v", err)
		}
		records, err := env.records.QueryRange(context.Background(), "user-A", now.AddDate(0, 0, -30), now)
		if err != nil {
			t.Fatalf("QueryRange failed: %v", err)
		}
		for i := range records {
			records[i].RawPayload = nil
		}
		return records
	}

	first := snapshot()
	second := snapshot()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("records changed on resync:\nfirst  %+v\nsecond %+v", first, second)
	}
	if len(second) != 2 {
		t.Errorf("stored records = %d, want 2", len(second))
	}
}

func TestSyncNow_NotifiesListeners(t *testing.T) {
	env := newTestEnv(t, activeIntegration("A", nil))
	publisher := &recordingPublisher{}
	hub := &recordingBroadcaster{}
	env.manager.SetEventPublisher(publisher)
	env.manager.SetBroadcaster(hub)

	if _, err := env.manager.SyncNow(context.Background(), "A"); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	events := publisher.all()
	if len(events) != 1 {
		t.Fatalf("published events = %d, want 1", len(events))
	}
	if events[0].IntegrationID != "A" || events[0].Status != models.IntegrationActive {
		t.Errorf("event = %+v, want integration A ACTIVE", events[0])
	}
	if events[0].EventID == "" {
		t.Error("EventID is empty")
	}
	if hub.count() != 1 {
		t.Errorf("broadcasts = %d, want 1", hub.count())
	}
}

func TestRunBatchSync_IsolatesFailures(t *testing.T) {
	old := time.Now().Add(-72 * time.Hour)
	env := newTestEnv(t,
		activeIntegration("A", nil),
		activeIntegration("B", &old),
		activeIntegration("C", &old),
		activeIntegration("D", timePtr(time.Now())),
	)
	env.adapter.fetch = func(creds *models.OAuthCredentials, _, _ time.Time) ([]models.HealthRecord, error) {
		if creds.AccessToken == "at-B" {
			return nil, upstreamError(http.StatusForbidden)
		}
		return []models.HealthRecord{stepsRecord("2024-03-09", 10)}, nil
	}

	result, err := env.manager.RunBatchSync(context.Background())
	if err != nil {
		t.Fatalf("RunBatchSync failed: %v", err)
	}
	want := BatchResult{Attempted: 3, Succeeded: 2, Failed: 1}
	if *result != want {
		t.Errorf("result = %+v, want %+v", *result, want)
	}
	if got := env.integrations.get("B").Status; got != models.IntegrationError {
		t.Errorf("B status = %q, want %q", got, models.IntegrationError)
	}
	for _, id := range []string{"A", "C"} {
		if env.integrations.get(id).LastSyncedAt == nil {
			t.Errorf("%s LastSyncedAt not set", id)
		}
	}
	if env.manager.LastBatchTime().IsZero() {
		t.Error("LastBatchTime not recorded")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("stops on non-retryable error", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(context.Background(), 5, time.Millisecond, func() error {
			calls++
			return upstreamError(http.StatusUnauthorized)
		})
		if err == nil || calls != 1 {
			t.Errorf("calls = %d, err = %v; want 1 call and an error", calls, err)
		}
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(context.Background(), 3, time.Millisecond, func() error {
			calls++
			return upstreamError(http.StatusBadGateway)
		})
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
		var fetchErr *provider.ProviderFetchError
		if !errors.As(err, &fetchErr) {
			t.Errorf("error = %v, want wrapped *provider.ProviderFetchError", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := retryWithBackoff(ctx, 3, time.Millisecond, func() error { return nil })
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}

func TestStartStop(t *testing.T) {
	env := newTestEnv(t)
	if err := env.manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := env.manager.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
	if err := env.manager.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := env.manager.Stop(); err == nil {
		t.Error("second Stop should fail")
	}
}
