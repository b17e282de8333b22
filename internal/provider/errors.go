// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/vitalsync/internal/models"
)

// ErrUnsupportedProvider is returned for providers that are unknown or not configured.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// AuthExchangeError reports a failed authorization code exchange.
type AuthExchangeError struct {
	Provider   models.Provider
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthExchangeError) Error() string {
	return fmt.Sprintf("%s: authorization code exchange failed%s", e.Provider, describe(e.StatusCode, e.Body, e.Err))
}

func (e *AuthExchangeError) Unwrap() error { return e.Err }

// TokenRefreshError reports a failed token refresh.
type TokenRefreshError struct {
	Provider   models.Provider
	StatusCode int
	Body       string
	Err        error
}

func (e *TokenRefreshError) Error() string {
	return fmt.Sprintf("%s: token refresh failed%s", e.Provider, describe(e.StatusCode, e.Body, e.Err))
}

func (e *TokenRefreshError) Unwrap() error { return e.Err }

// ProviderFetchError reports a failed data fetch. Day is set when the
// failure is scoped to a single day of a multi-day fetch.
type ProviderFetchError struct {
	Provider   models.Provider
	Endpoint   string
	Day        *time.Time
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderFetchError) Error() string {
	scope := e.Endpoint
	if e.Day != nil {
		scope += " " + e.Day.Format(models.DateLayout)
	}
	return fmt.Sprintf("%s: fetch %s failed%s", e.Provider, scope, describe(e.StatusCode, e.Body, e.Err))
}

func (e *ProviderFetchError) Unwrap() error { return e.Err }

func describe(status int, body string, err error) string {
	s := ""
	if status > 0 {
		s += fmt.Sprintf(" (status %d)", status)
	}
	if body != "" {
		s += ": " + body
	} else if err != nil {
		s += ": " + err.Error()
	}
	return s
}

// statusOf extracts the upstream HTTP status from any provider error.
func statusOf(err error) int {
	var fetchErr *ProviderFetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.StatusCode
	}
	var refreshErr *TokenRefreshError
	if errors.As(err, &refreshErr) {
		return refreshErr.StatusCode
	}
	var exchangeErr *AuthExchangeError
	if errors.As(err, &exchangeErr) {
		return exchangeErr.StatusCode
	}
	return 0
}

// IsAuthFailure reports whether err means the credentials or the code were
// rejected by the provider, as opposed to the provider being unhealthy.
func IsAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	status := statusOf(err)
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return true
	}
	var exchangeErr *AuthExchangeError
	var refreshErr *TokenRefreshError
	if errors.As(err, &exchangeErr) || errors.As(err, &refreshErr) {
		return status >= 400 && status < 500 && status != http.StatusTooManyRequests
	}
	return false
}

// IsRetryable reports whether err is a transient failure: a transport
// error or timeout, HTTP 429, or an upstream 5xx. Cancellation by the
// caller and open circuits are not retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	status := statusOf(err)
	switch {
	case status == http.StatusTooManyRequests, status >= 500:
		return true
	case status > 0:
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var exchangeErr *AuthExchangeError
	var refreshErr *TokenRefreshError
	var fetchErr *ProviderFetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Err != nil && !errors.Is(fetchErr.Err, errMalformedResponse)
	}
	if errors.As(err, &exchangeErr) || errors.As(err, &refreshErr) {
		return !errors.Is(err, errMalformedResponse)
	}
	return false
}

// ErrorKind classifies err for metrics labels.
func ErrorKind(err error) string {
	var exchangeErr *AuthExchangeError
	var refreshErr *TokenRefreshError
	var fetchErr *ProviderFetchError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.As(err, &exchangeErr):
		return "auth_exchange"
	case errors.As(err, &refreshErr):
		return "token_refresh"
	case errors.As(err, &fetchErr):
		switch {
		case IsAuthFailure(err):
			return "fetch_unauthorized"
		case fetchErr.StatusCode == http.StatusTooManyRequests:
			return "fetch_rate_limited"
		case fetchErr.StatusCode >= 500:
			return "fetch_upstream"
		case IsRetryable(err):
			return "fetch_transport"
		default:
			return "fetch_invalid"
		}
	default:
		return "other"
	}
}
