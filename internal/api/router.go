// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/vitalsync/internal/auth"
	"github.com/tomtom215/vitalsync/internal/middleware"
)

// Router wires handlers and middleware into a chi router.
type Router struct {
	handler       *Handler
	auth          *auth.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router.
func NewRouter(handler *Handler, authMW *auth.Middleware, chiMW *ChiMiddleware) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, auth: authMW, chiMiddleware: chiMW}
}

// Setup builds the HTTP handler with every route.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()
	h := router.handler

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	// The provider redirects the browser here; the state nonce identifies
	// the user, so no bearer token is required.
	r.With(router.chiMiddleware.RateLimitOAuth()).
		Get("/api/v1/oauth/{provider}/callback", h.OAuthCallback)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(router.auth.Authenticate)

		r.Get("/providers", h.ListProviders)
		r.Get("/providers/{provider}/authorize", h.Authorize)

		r.Get("/integrations", h.ListIntegrations)
		r.Get("/integrations/{id}", h.GetIntegration)
		r.Delete("/integrations/{id}", h.DisconnectIntegration)
		r.Post("/integrations/{id}/sync", h.SyncIntegration)

		r.Get("/goals", h.ListGoalProgress)
		r.Post("/goals", h.CreateGoal)
		r.Post("/goals/validate", h.ValidateGoal)
		r.Get("/goals/{id}/progress", h.GoalProgress)

		r.Get("/ws", h.WebSocket)

		r.Route("/admin", func(r chi.Router) {
			r.Use(router.auth.RequireAdmin)
			r.Post("/sync/batch", h.RunBatchSync)
			r.Get("/audit", h.ListAuditEvents)
		})
	})

	return r
}
