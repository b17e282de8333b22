// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/vitalsync/internal/models"
)

const readinessTimeout = 2 * time.Second

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status            string            `json:"status"`
	Version           string            `json:"version"`
	DatabaseConnected bool              `json:"database_connected"`
	Providers         []models.Provider `json:"providers"`
	LastBatchSync     *time.Time        `json:"last_batch_sync,omitempty"`
	WebSocketClients  int               `json:"websocket_clients"`
	Uptime            float64           `json:"uptime_seconds"`
}

// Health reports overall service status. It always returns 200; "degraded"
// means the database is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.pingDB(r.Context()) == nil

	status := HealthStatus{
		Status:            "healthy",
		Version:           h.version,
		DatabaseConnected: dbConnected,
		Providers:         h.sync.Providers(),
		Uptime:            time.Since(h.startTime).Seconds(),
	}
	if !dbConnected {
		status.Status = "degraded"
	}
	if last := h.sync.LastBatchTime(); !last.IsZero() {
		status.LastBatchSync = &last
	}
	if h.hub != nil {
		status.WebSocketClients = h.hub.GetClientCount()
	}
	NewResponseWriter(w, r).Success(status)
}

// HealthLive returns 200 while the process is serving requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady returns 200 only when the database answers, 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.pingDB(r.Context()); err != nil {
		NewResponseWriter(w, r).ServiceUnavailable("Database is not reachable")
		return
	}
	NewResponseWriter(w, r).Success(map[string]bool{"ready": true})
}

func (h *Handler) pingDB(ctx context.Context) error {
	if h.db == nil {
		return errNoDatabase
	}
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	return h.db.Ping(ctx)
}
