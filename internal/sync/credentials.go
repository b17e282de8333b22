// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/vitalsync/internal/logging"
	"github.com/tomtom215/vitalsync/internal/metrics"
	"github.com/tomtom215/vitalsync/internal/models"
	"github.com/tomtom215/vitalsync/internal/provider"
)

// ErrCredentialsExpired is returned when the access token has expired and
// there is no refresh token to renew it. The user must reconnect.
var ErrCredentialsExpired = errors.New("credentials expired and no refresh token is available")

// CredentialManager keeps OAuth credentials fresh. Every read-modify-write
// of an integration's credentials happens under that integration's lock.
type CredentialManager struct {
	store     IntegrationStore
	registry  *provider.Registry
	lookahead time.Duration
	now       func() time.Time
	locks     *keyedMutex
}

// NewCredentialManager creates a manager that refreshes tokens expiring
// within lookahead.
func NewCredentialManager(store IntegrationStore, registry *provider.Registry, lookahead time.Duration) *CredentialManager {
	return &CredentialManager{
		store:     store,
		registry:  registry,
		lookahead: lookahead,
		now:       time.Now,
		locks:     newKeyedMutex(),
	}
}

// Lock serializes credential updates for one integration.
func (c *CredentialManager) Lock(integrationID string) func() {
	return c.locks.Lock(integrationID)
}

// NeedsRefresh reports whether creds expire within the lookahead window.
func (c *CredentialManager) NeedsRefresh(creds *models.OAuthCredentials) bool {
	return creds.ExpiresWithin(c.now(), c.lookahead)
}

// EnsureFresh returns usable credentials for integ, refreshing them first
// when they expire within the lookahead window. The stored integration is
// re-read under the lock so a refresh done by a concurrent caller is reused
// instead of spending the refresh token twice.
//
// A failed refresh sets ERROR with the cause and returns the
// *provider.TokenRefreshError. An expired token with no refresh token sets
// EXPIRED and returns ErrCredentialsExpired.
func (c *CredentialManager) EnsureFresh(ctx context.Context, integ *models.Integration) (*models.OAuthCredentials, error) {
	unlock := c.Lock(integ.ID)
	defer unlock()

	current, err := c.store.FindByID(ctx, integ.ID)
	if err != nil {
		return nil, err
	}
	creds := current.Credentials
	if !c.NeedsRefresh(&creds) {
		return &creds, nil
	}

	log := logging.Ctx(ctx).With().
		Str("integration_id", integ.ID).
		Str("user_id", integ.UserID).
		Str("provider", string(integ.Provider)).
		Logger()

	if creds.RefreshToken == "" {
		if c.now().Before(creds.ExpiresAt) {
			// Still valid for a moment and nothing to refresh with.
			return &creds, nil
		}
		msg := ErrCredentialsExpired.Error()
		if err := c.store.UpdateStatus(ctx, integ.ID, models.IntegrationExpired, &msg); err != nil {
			log.Error().Err(err).Msg("Failed to mark integration expired")
		}
		integ.Status = models.IntegrationExpired
		log.Warn().Msg("Access token expired with no refresh token")
		return nil, ErrCredentialsExpired
	}

	adapter, err := c.registry.Get(integ.Provider)
	if err != nil {
		return nil, err
	}

	refreshed, err := adapter.RefreshToken(ctx, creds.RefreshToken)
	metrics.RecordTokenRefresh(string(integ.Provider), err)
	if err != nil {
		msg := fmt.Sprintf("token refresh failed: %v", err)
		if recErr := c.store.RecordSyncError(ctx, integ.ID, msg); recErr != nil {
			log.Error().Err(recErr).Msg("Failed to record refresh failure")
		}
		integ.Status = models.IntegrationError
		log.Warn().Err(err).Msg("Token refresh failed")
		return nil, err
	}

	if err := c.store.UpdateCredentials(ctx, integ.ID, *refreshed); err != nil {
		return nil, fmt.Errorf("store refreshed credentials: %w", err)
	}
	integ.Credentials = *refreshed
	integ.Status = models.IntegrationActive
	log.Debug().Time("expires_at", refreshed.ExpiresAt).Msg("Refreshed access token")
	return refreshed, nil
}
