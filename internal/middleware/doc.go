// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

/*
Package middleware provides HTTP infrastructure middleware shared by the API
router.

Key Components:

  - RequestID: assigns or propagates X-Request-ID and seeds the logging
    context with request and correlation IDs
  - PrometheusMetrics: request count, latency and in-flight instrumentation
    labelled by chi route pattern

Authentication lives in internal/auth; CORS and rate limiting come from the
go-chi ecosystem and are assembled in internal/api.
*/
package middleware
