// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package api

import (
	"context"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/tomtom215/vitalsync/internal/audit"
	"github.com/tomtom215/vitalsync/internal/auth"
	"github.com/tomtom215/vitalsync/internal/models"
	"github.com/tomtom215/vitalsync/internal/provider"
	"github.com/tomtom215/vitalsync/internal/sync"
	"github.com/tomtom215/vitalsync/internal/websocket"
)

// SyncService is the subset of *sync.Manager the API uses.
type SyncService interface {
	Providers() []models.Provider
	GetAuthorizationURL(ctx context.Context, userID string, p models.Provider) (*provider.AuthorizationURL, error)
	ConsumeState(ctx context.Context, nonce string) (*auth.OAuthState, error)
	CompleteOAuth(ctx context.Context, userID string, p models.Provider, code string) (*models.Integration, error)
	Disconnect(ctx context.Context, integrationID string) error
	ListIntegrations(ctx context.Context, userID string) ([]models.Integration, error)
	GetIntegration(ctx context.Context, integrationID string) (*models.Integration, error)
	SyncNow(ctx context.Context, integrationID string) (*sync.SyncResult, error)
	RunBatchSync(ctx context.Context) (*sync.BatchResult, error)
	LastBatchTime() time.Time
}

// GoalService is the subset of *goals.Service the API uses.
type GoalService interface {
	CreateGoal(ctx context.Context, goal *models.Goal) error
	GetGoal(ctx context.Context, goalID string) (*models.Goal, error)
	Progress(ctx context.Context, goal *models.Goal) (*models.GoalProgress, error)
	ListActiveProgress(ctx context.Context, userID string) ([]models.GoalProgress, error)
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the HTTP handlers and their collaborators.
type Handler struct {
	sync     SyncService
	goals    GoalService
	db       Pinger
	hub      *websocket.Hub
	upgrader *gorillaws.Upgrader
	authMW   *auth.Middleware
	audit    *audit.Logger

	startTime time.Time
	version   string
}

// HandlerDeps groups the collaborators passed to NewHandler. Hub may be nil
// to disable the websocket endpoint, Audit to disable the audit trail.
type HandlerDeps struct {
	Sync           SyncService
	Goals          GoalService
	DB             Pinger
	Hub            *websocket.Hub
	Auth           *auth.Middleware
	Audit          *audit.Logger
	AllowedOrigins []string
	Version        string
}

// NewHandler creates the API handler.
func NewHandler(deps HandlerDeps) *Handler {
	h := &Handler{
		sync:      deps.Sync,
		goals:     deps.Goals,
		db:        deps.DB,
		hub:       deps.Hub,
		authMW:    deps.Auth,
		audit:     deps.Audit,
		startTime: time.Now(),
		version:   deps.Version,
	}
	if h.version == "" {
		h.version = "dev"
	}
	if deps.Hub != nil {
		h.upgrader = websocket.NewUpgrader(deps.AllowedOrigins)
	}
	return h
}

// isAdmin reports whether the caller has admin rights.
func (h *Handler) isAdmin(ctx context.Context) bool {
	claims, ok := auth.ClaimsFromContext(ctx)
	return ok && h.authMW != nil && h.authMW.IsAdmin(claims)
}

// canAccess reports whether the caller may see a resource owned by ownerID.
func (h *Handler) canAccess(ctx context.Context, ownerID string) bool {
	return ownerID == auth.UserID(ctx) || h.isAdmin(ctx)
}
