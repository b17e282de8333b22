// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

// Package metrics defines the Prometheus instrumentation for VitalSync:
// provider requests, sync runs, token refreshes, circuit breakers,
// goal evaluations, event publishing and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Provider Metrics
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Duration of upstream provider HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "endpoint"},
	)

	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Total upstream provider HTTP requests by status class",
		},
		[]string{"provider", "endpoint", "status"},
	)

	ProviderRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_rate_limited_total",
			Help: "Total HTTP 429 responses received from providers",
		},
		[]string{"provider"},
	)

	// Sync Metrics
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of a single integration sync in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider"},
	)

	SyncRecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_processed_total",
			Help: "Total canonical health records persisted by sync",
		},
		[]string{"provider"},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_errors_total",
			Help: "Total sync failures by provider and error type",
		},
		[]string{"provider", "error_type"},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful integration sync",
		},
	)

	BatchIntegrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_batch_integrations_total",
			Help: "Integrations processed by batch sync runs",
		},
		[]string{"outcome"}, // "succeeded", "failed"
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_batch_duration_seconds",
			Help:    "Duration of a batch sync run in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_refresh_total",
			Help: "OAuth token refresh attempts",
		},
		[]string{"provider", "outcome"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Goal Metrics
	GoalCalculations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goal_progress_calculations_total",
			Help: "Goal progress evaluations by goal type and resulting status",
		},
		[]string{"goal_type", "status"},
	)

	// Event Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Domain events published to the message bus",
		},
		[]string{"topic", "result"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Currently connected websocket clients",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "API requests currently being served",
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordProviderRequest records one upstream HTTP call.
func RecordProviderRequest(provider, endpoint string, statusCode int, duration time.Duration) {
	ProviderRequestDuration.WithLabelValues(provider, endpoint).Observe(duration.Seconds())
	ProviderRequestsTotal.WithLabelValues(provider, endpoint, statusClass(statusCode)).Inc()
	if statusCode == 429 {
		ProviderRateLimited.WithLabelValues(provider).Inc()
	}
}

// statusClass collapses status codes to "2xx".."5xx"; 0 means a transport error.
func statusClass(code int) string {
	if code <= 0 {
		return "transport_error"
	}
	return strconv.Itoa(code/100) + "xx"
}

// RecordSyncOperation records the outcome of one integration sync.
// errorType is empty on success.
func RecordSyncOperation(provider string, duration time.Duration, recordsProcessed int, errorType string) {
	SyncDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if errorType != "" {
		SyncErrors.WithLabelValues(provider, errorType).Inc()
		return
	}
	SyncRecordsProcessed.WithLabelValues(provider).Add(float64(recordsProcessed))
	SyncLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordBatchSync records a completed batch run.
func RecordBatchSync(duration time.Duration, succeeded, failed int) {
	BatchDuration.Observe(duration.Seconds())
	BatchIntegrations.WithLabelValues("succeeded").Add(float64(succeeded))
	BatchIntegrations.WithLabelValues("failed").Add(float64(failed))
}

// RecordTokenRefresh records a refresh attempt.
func RecordTokenRefresh(provider string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	TokenRefreshes.WithLabelValues(provider, outcome).Inc()
}

// RecordGoalCalculation records a goal progress evaluation.
func RecordGoalCalculation(goalType, status string) {
	GoalCalculations.WithLabelValues(goalType, status).Inc()
}

// RecordEventPublish records a publish attempt.
func RecordEventPublish(topic string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	EventsPublished.WithLabelValues(topic, result).Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
