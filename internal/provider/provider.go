// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

// Package provider implements the OAuth and data-fetch adapters for the
// third-party health data providers (Strava, Fitbit, Lose It!).
//
// Every adapter exposes the same five operations (authorization URL, code
// exchange, token refresh, date-range fetch, revocation) and normalizes
// provider payloads into models.HealthRecord. Adapters hold no per-user
// state and are safe for concurrent use.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/vitalsync/internal/models"
)

const (
	// DefaultHTTPTimeout bounds every provider HTTP call.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultStateTTL is the lifetime hint returned with authorization URLs.
	DefaultStateTTL = 10 * time.Minute

	defaultRateLimitRetries = 3
	defaultRetryBaseDelay   = time.Second
)

// Adapter is the provider-neutral contract used by the sync engine.
type Adapter interface {
	// Provider identifies the adapter.
	Provider() models.Provider

	// BuildAuthorizationURL returns the consent URL carrying state.
	BuildAuthorizationURL(state string) AuthorizationURL

	// ExchangeCode trades an authorization code for credentials.
	// Failures are *AuthExchangeError.
	ExchangeCode(ctx context.Context, code string) (*models.OAuthCredentials, error)

	// RefreshToken obtains fresh credentials. When the provider omits a new
	// refresh token the old one is carried over. Failures are *TokenRefreshError.
	RefreshToken(ctx context.Context, refreshToken string) (*models.OAuthCredentials, error)

	// FetchRange returns normalized daily records for the inclusive day range.
	// An empty upstream result is an empty slice, never an error.
	// Failures are *ProviderFetchError.
	FetchRange(ctx context.Context, creds *models.OAuthCredentials, start, end time.Time) ([]models.HealthRecord, error)

	// Revoke asks the provider to invalidate the credentials. Best effort.
	Revoke(ctx context.Context, creds *models.OAuthCredentials) error
}

// AuthorizationURL is the result of BuildAuthorizationURL.
// ExpiresAt is a client-side hint; the provider does not enforce it.
type AuthorizationURL struct {
	URL       string    `json:"url"`
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Options tunes adapter transport behaviour. Zero values use defaults.
type Options struct {
	HTTPTimeout         time.Duration
	StateTTL            time.Duration
	MaxRateLimitRetries int
	RetryBaseDelay      time.Duration
	HTTPClient          *http.Client
	Now                 func() time.Time
}

func (o Options) withDefaults() Options {
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = DefaultHTTPTimeout
	}
	if o.StateTTL <= 0 {
		o.StateTTL = DefaultStateTTL
	}
	if o.MaxRateLimitRetries <= 0 {
		o.MaxRateLimitRetries = defaultRateLimitRetries
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = defaultRetryBaseDelay
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.HTTPTimeout}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// dayRange returns every UTC calendar day from start to end inclusive.
func dayRange(start, end time.Time) []time.Time {
	first, last := models.Day(start), models.Day(end)
	var days []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
