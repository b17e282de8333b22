// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/vitalsync/internal/metrics"
)

func TestPrometheusMetrics_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/metrics-test/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Get("/metrics-test/implicit", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	tests := []struct {
		path    string
		pattern string
		status  string
	}{
		{"/metrics-test/items/42", "/metrics-test/items/{id}", "202"},
		{"/metrics-test/implicit", "/metrics-test/implicit", "200"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, tt.pattern, tt.status)
			before := testutil.ToFloat64(counter)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if got := testutil.ToFloat64(counter) - before; got != 1 {
				t.Errorf("api_requests_total{endpoint=%q,status_code=%q} delta = %v, want 1", tt.pattern, tt.status, got)
			}
		})
	}
}

func TestPrometheusMetrics_ActiveRequests(t *testing.T) {
	var during float64
	handler := PrometheusMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = testutil.ToFloat64(metrics.APIActiveRequests)
	}))

	before := testutil.ToFloat64(metrics.APIActiveRequests)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if during != before+1 {
		t.Errorf("in-flight during request = %v, want %v", during, before+1)
	}
	if after := testutil.ToFloat64(metrics.APIActiveRequests); after != before {
		t.Errorf("in-flight after request = %v, want %v", after, before)
	}
}

func TestRoutePattern_Unmatched(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	if got := routePattern(req); got != unmatchedRoute {
		t.Errorf("routePattern() = %q, want %q", got, unmatchedRoute)
	}
}
