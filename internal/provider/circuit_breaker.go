// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package provider

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/vitalsync/internal/logging"
	"github.com/tomtom215/vitalsync/internal/metrics"
	"github.com/tomtom215/vitalsync/internal/models"
)

// CircuitBreakerAdapter wraps an Adapter with a per-provider circuit breaker.
//
// Circuit breaker configuration:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
//
// Rejected credentials and caller cancellation count as successes: they say
// nothing about the provider's health.
type CircuitBreakerAdapter struct {
	next Adapter
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// NewCircuitBreakerAdapter wraps next. The breaker is named provider-<name>.
func NewCircuitBreakerAdapter(next Adapter) *CircuitBreakerAdapter {
	name := "provider-" + string(next.Provider())
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			return false
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsAuthFailure(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	})

	return &CircuitBreakerAdapter{next: next, cb: cb, name: name}
}

// State returns the breaker's current state.
func (c *CircuitBreakerAdapter) State() gobreaker.State {
	return c.cb.State()
}

func (c *CircuitBreakerAdapter) execute(fn func() (any, error)) (any, error) {
	result, err := c.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "rejected").Inc()
		logging.Warn().Err(err).Str("breaker", c.name).Msg("[CIRCUIT BREAKER] Request rejected")
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "failure").Inc()
	}
	return result, err
}

func isRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Provider implements Adapter.
func (c *CircuitBreakerAdapter) Provider() models.Provider { return c.next.Provider() }

// BuildAuthorizationURL implements Adapter. No network call is involved.
func (c *CircuitBreakerAdapter) BuildAuthorizationURL(state string) AuthorizationURL {
	return c.next.BuildAuthorizationURL(state)
}

// ExchangeCode implements Adapter.
func (c *CircuitBreakerAdapter) ExchangeCode(ctx context.Context, code string) (*models.OAuthCredentials, error) {
	result, err := c.execute(func() (any, error) {
		return c.next.ExchangeCode(ctx, code)
	})
	if isRejection(err) {
		return nil, &AuthExchangeError{Provider: c.Provider(), Err: err}
	}
	return castResult[models.OAuthCredentials](result, err)
}

// RefreshToken implements Adapter.
func (c *CircuitBreakerAdapter) RefreshToken(ctx context.Context, refreshToken string) (*models.OAuthCredentials, error) {
	result, err := c.execute(func() (any, error) {
		return c.next.RefreshToken(ctx, refreshToken)
	})
	if isRejection(err) {
		return nil, &TokenRefreshError{Provider: c.Provider(), Err: err}
	}
	return castResult[models.OAuthCredentials](result, err)
}

// FetchRange implements Adapter.
func (c *CircuitBreakerAdapter) FetchRange(ctx context.Context, creds *models.OAuthCredentials, start, end time.Time) ([]models.HealthRecord, error) {
	result, err := c.execute(func() (any, error) {
		return c.next.FetchRange(ctx, creds, start, end)
	})
	if isRejection(err) {
		return nil, &ProviderFetchError{Provider: c.Provider(), Endpoint: "range", Err: err}
	}
	if err != nil {
		return nil, err
	}
	records, _ := result.([]models.HealthRecord)
	return records, nil
}

// Revoke implements Adapter.
func (c *CircuitBreakerAdapter) Revoke(ctx context.Context, creds *models.OAuthCredentials) error {
	_, err := c.execute(func() (any, error) {
		return nil, c.next.Revoke(ctx, creds)
	})
	return err
}

// castResult type-asserts a breaker result, passing errors through.
func castResult[T any](result any, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type")
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
