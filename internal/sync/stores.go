// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package sync

import (
	"context"
	"time"

	"github.com/tomtom215/vitalsync/internal/models"
)

// IntegrationStore persists integrations. Implemented by internal/database.
type IntegrationStore interface {
	// FindByID returns *models.IntegrationNotFoundError for unknown ids.
	FindByID(ctx context.Context, id string) (*models.Integration, error)

	// FindByUserAndProvider returns an error matching models.ErrIntegrationNotFound
	// when the user has not connected the provider.
	FindByUserAndProvider(ctx context.Context, userID string, provider models.Provider) (*models.Integration, error)

	// FindByUser lists a user's integrations.
	FindByUser(ctx context.Context, userID string) ([]models.Integration, error)

	// FindDueForSync returns syncable integrations never synced or last
	// synced before the cutoff, never-synced first then oldest first.
	FindDueForSync(ctx context.Context, before time.Time, limit int) ([]models.Integration, error)

	// Create returns *models.DuplicateIntegrationError if the user already
	// has an integration for the provider.
	Create(ctx context.Context, integ *models.Integration) error

	// UpdateCredentials stores new credentials, sets ACTIVE and clears the error message.
	UpdateCredentials(ctx context.Context, id string, creds models.OAuthCredentials) error

	// UpdateStatus sets the status and error message.
	UpdateStatus(ctx context.Context, id string, status models.IntegrationStatus, message *string) error

	// UpdateLastSynced sets lastSyncedAt, ACTIVE, and clears the error message.
	UpdateLastSynced(ctx context.Context, id string, at time.Time) error

	// RecordSyncError sets ERROR with the message.
	RecordSyncError(ctx context.Context, id string, message string) error

	// Delete removes the integration.
	Delete(ctx context.Context, id string) error
}

// HealthRecordStore persists canonical records keyed by (user, provider, day).
type HealthRecordStore interface {
	// BulkUpsert inserts or replaces records and returns how many were written.
	BulkUpsert(ctx context.Context, records []models.HealthRecord) (int, error)

	// QueryRange returns the user's records with start <= date <= end,
	// most recent first.
	QueryRange(ctx context.Context, userID string, start, end time.Time) ([]models.HealthRecord, error)
}

// EventPublisher publishes sync completion events. Optional.
type EventPublisher interface {
	PublishSyncCompleted(ctx context.Context, event *SyncCompletedEvent) error
}

// Broadcaster pushes messages to connected websocket clients. Optional.
// Implemented by internal/websocket.Hub.
type Broadcaster interface {
	BroadcastJSON(messageType string, data interface{})
}

// SyncCompletedEvent describes the outcome of one integration sync.
type SyncCompletedEvent struct {
	EventID        string                   `json:"event_id"`
	IntegrationID  string                   `json:"integration_id"`
	UserID         string                   `json:"user_id"`
	Provider       models.Provider          `json:"provider"`
	Status         models.IntegrationStatus `json:"status"`
	RecordsFetched int                      `json:"records_fetched"`
	RangeStart     string                   `json:"range_start"`
	RangeEnd       string                   `json:"range_end"`
	Error          string                   `json:"error,omitempty"`
	DurationMs     int64                    `json:"duration_ms"`
	CompletedAt    time.Time                `json:"completed_at"`
}

// AudienceUserID limits websocket delivery of the event to its owner.
func (e *SyncCompletedEvent) AudienceUserID() string {
	return e.UserID
}
