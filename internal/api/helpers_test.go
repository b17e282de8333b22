// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	gosync "sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vitalsync/internal/audit"
	"github.com/tomtom215/vitalsync/internal/auth"
	"github.com/tomtom215/vitalsync/internal/config"
	"github.com/tomtom215/vitalsync/internal/goals"
	"github.com/tomtom215/vitalsync/internal/models"
	"github.com/tomtom215/vitalsync/internal/provider"
	"github.com/tomtom215/vitalsync/internal/sync"
)

const testSecret = "api-test-secret-with-at-least-32-characters"

// fakeSync implements SyncService over an in-memory integration map.
type fakeSync struct {
	mu           gosync.Mutex
	integrations map[string]*models.Integration
	states       map[string]*auth.OAuthState

	completeErr  error
	syncErr      error
	syncResult   *sync.SyncResult
	batchResult  *sync.BatchResult
	disconnected []string
	lastBatch    time.Time
}

func newFakeSync() *fakeSync {
	return &fakeSync{
		integrations: map[string]*models.Integration{},
		states:       map[string]*auth.OAuthState{},
	}
}

func (f *fakeSync) addIntegration(id, userID string, p models.Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.integrations[id] = &models.Integration{ID: id, UserID: userID, Provider: p, Status: models.IntegrationActive}
}

func (f *fakeSync) Providers() []models.Provider {
	return []models.Provider{models.ProviderStrava, models.ProviderFitbit, models.ProviderLoseIt}
}

func (f *fakeSync) GetAuthorizationURL(_ context.Context, userID string, p models.Provider) (*provider.AuthorizationURL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	nonce := fmt.Sprintf("state-%d", len(f.states)+1)
	f.states[nonce] = &auth.OAuthState{Nonce: nonce, UserID: userID, Provider: p}
	return &provider.AuthorizationURL{URL: "https://provider.example/authorize?state=" + nonce, State: nonce}, nil
}

func (f *fakeSync) ConsumeState(_ context.Context, nonce string) (*auth.OAuthState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[nonce]
	if !ok {
		return nil, auth.ErrStateNotFound
	}
	delete(f.states, nonce)
	return state, nil
}

func (f *fakeSync) CompleteOAuth(_ context.Context, userID string, p models.Provider, _ string) (*models.Integration, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	integ := &models.Integration{ID: "new-integration", UserID: userID, Provider: p, Status: models.IntegrationActive}
	f.integrations[integ.ID] = integ
	return integ, nil
}

func (f *fakeSync) Disconnect(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.integrations[id]; !ok {
		return &models.IntegrationNotFoundError{ID: id}
	}
	delete(f.integrations, id)
	f.disconnected = append(f.disconnected, id)
	return nil
}

func (f *fakeSync) ListIntegrations(_ context.Context, userID string) ([]models.Integration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Integration
	for _, integ := range f.integrations {
		if integ.UserID == userID {
			out = append(out, *integ)
		}
	}
	return out, nil
}

func (f *fakeSync) GetIntegration(_ context.Context, id string) (*models.Integration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	integ, ok := f.integrations[id]
	if !ok {
		return nil, &models.IntegrationNotFoundError{ID: id}
	}
	cp := *integ
	return &cp, nil
}

func (f *fakeSync) SyncNow(_ context.Context, id string) (*sync.SyncResult, error) {
	if f.syncErr != nil {
		return &sync.SyncResult{IntegrationID: id, Status: models.IntegrationError}, f.syncErr
	}
	if f.syncResult != nil {
		return f.syncResult, nil
	}
	return &sync.SyncResult{IntegrationID: id, RecordsFetched: 3, Status: models.IntegrationActive}, nil
}

func (f *fakeSync) RunBatchSync(context.Context) (*sync.BatchResult, error) {
	if f.batchResult != nil {
		return f.batchResult, nil
	}
	return &sync.BatchResult{}, nil
}

func (f *fakeSync) LastBatchTime() time.Time { return f.lastBatch }

// memGoals implements goals.GoalStore.
type memGoals struct {
	mu    gosync.Mutex
	goals map[string]models.Goal
}

func (m *memGoals) FindByID(_ context.Context, id string) (*models.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.goals[id]
	if !ok {
		return nil, fmt.Errorf("goal %s: %w", id, models.ErrGoalNotFound)
	}
	return &g, nil
}

func (m *memGoals) FindActiveByUser(_ context.Context, userID string) ([]models.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Goal
	for _, g := range m.goals {
		if g.UserID == userID && g.Status == models.GoalActive {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memGoals) Create(_ context.Context, goal *models.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.goals[goal.ID] = *goal
	return nil
}

// noRecords implements goals.RecordReader with no data.
type noRecords struct{}

func (noRecords) QueryRange(context.Context, string, time.Time, time.Time) ([]models.HealthRecord, error) {
	return nil, nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

// testServer bundles a router with its collaborators.
type testServer struct {
	t       *testing.T
	handler http.Handler
	sync    *fakeSync
	goals   *memGoals
	jwt     *auth.JWTManager
}

type serverOption func(*HandlerDeps, *ChiMiddlewareConfig)

func withDB(p Pinger) serverOption {
	return func(d *HandlerDeps, _ *ChiMiddlewareConfig) { d.DB = p }
}

func withRateLimit(requests int) serverOption {
	return func(_ *HandlerDeps, c *ChiMiddlewareConfig) {
		c.RateLimitDisabled = false
		c.RateLimitRequests = requests
		c.RateLimitWindow = time.Minute
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	jwtManager, err := auth.NewJWTManager(&config.SecurityConfig{JWTSecret: testSecret})
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	authMW := auth.NewMiddleware(jwtManager, []string{"ops"})

	fs := newFakeSync()
	store := &memGoals{goals: map[string]models.Goal{}}
	deps := HandlerDeps{
		Sync:  fs,
		Goals: goals.NewService(store, noRecords{}),
		DB:    pinger{},
		Auth:  authMW,
	}
	mwCfg := DefaultChiMiddlewareConfig()
	mwCfg.RateLimitDisabled = true
	for _, opt := range opts {
		opt(&deps, mwCfg)
	}

	router := NewRouter(NewHandler(deps), authMW, NewChiMiddleware(mwCfg))
	return &testServer{t: t, handler: router.Setup(), sync: fs, goals: store, jwt: jwtManager}
}

func (s *testServer) token(subject, role string) string {
	s.t.Helper()
	tok, err := s.jwt.GenerateToken(subject, role, time.Hour)
	if err != nil {
		s.t.Fatalf("GenerateToken() error = %v", err)
	}
	return tok
}

// do sends a request as subject ("" for anonymous).
func (s *testServer) do(method, path, subject string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if subject != "" {
		role := ""
		if subject == "admin" {
			role = auth.RoleAdmin
		}
		req.Header.Set("Authorization", "Bearer "+s.token(subject, role))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("response not successful: %s", rec.Body.String())
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	assertStatus(t, rec, wantStatus)
	env := decodeEnvelope(t, rec)
	if env.Success || env.Error == nil {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
	if env.Error.Code != wantCode {
		t.Errorf("error code = %q, want %q", env.Error.Code, wantCode)
	}
}

var errBoom = errors.New("boom")

func withAudit(l *audit.Logger) serverOption {
	return func(d *HandlerDeps, _ *ChiMiddlewareConfig) { d.Audit = l }
}
