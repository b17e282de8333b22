// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/vitalsync/internal/auth"
	"github.com/tomtom215/vitalsync/internal/logging"
	"github.com/tomtom215/vitalsync/internal/models"
	"github.com/tomtom215/vitalsync/internal/sync"
)

// ProviderInfo describes one supported provider.
type ProviderInfo struct {
	Provider    models.Provider `json:"provider"`
	DisplayName string          `json:"display_name"`
}

// OAuthCallbackResponse is returned after a successful connection.
type OAuthCallbackResponse struct {
	Integration *models.Integration `json:"integration"`
	Message     string              `json:"message"`
}

// ListProviders lists the providers users can connect.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers := h.sync.Providers()
	out := make([]ProviderInfo, 0, len(providers))
	for _, p := range providers {
		out = append(out, ProviderInfo{Provider: p, DisplayName: p.DisplayName()})
	}
	NewResponseWriter(w, r).List(out, len(out))
}

// Authorize returns the provider's authorization URL for the caller. The
// embedded state nonce is single-use and expires after oauth.state_ttl.
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	p, ok := providerParam(w, r)
	if !ok {
		return
	}

	authURL, err := h.sync.GetAuthorizationURL(r.Context(), auth.UserID(r.Context()), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(authURL)
}

// OAuthCallback completes a connection after the provider redirects back
// with ?code=...&state=....
func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	p, ok := providerParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	if denied := q.Get("error"); denied != "" {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeBadRequest, "Authorization was not granted",
			map[string]string{"error": denied, "description": q.Get("error_description")})
		return
	}
	code, nonce := q.Get("code"), q.Get("state")
	if code == "" || nonce == "" {
		rw.BadRequest("code and state query parameters are required")
		return
	}

	state, err := h.sync.ConsumeState(r.Context(), nonce)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if state.Provider != p {
		logging.Ctx(r.Context()).Warn().
			Str("state_provider", string(state.Provider)).
			Str("callback_provider", string(p)).
			Msg("OAuth callback provider does not match state")
		rw.BadRequest("OAuth state was issued for a different provider")
		return
	}

	integ, err := h.sync.CompleteOAuth(r.Context(), state.UserID, p, code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.audit.IntegrationConnected(r.Context(), r, integ)
	rw.Success(OAuthCallbackResponse{
		Integration: integ,
		Message:     p.DisplayName() + " connected",
	})
}

// ListIntegrations lists the caller's integrations.
func (h *Handler) ListIntegrations(w http.ResponseWriter, r *http.Request) {
	list, err := h.sync.ListIntegrations(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Integration{}
	}
	NewResponseWriter(w, r).List(list, len(list))
}

// GetIntegration returns one of the caller's integrations.
func (h *Handler) GetIntegration(w http.ResponseWriter, r *http.Request) {
	integ, ok := h.ownedIntegration(w, r)
	if !ok {
		return
	}
	NewResponseWriter(w, r).Success(integ)
}

// DisconnectIntegration revokes and deletes one of the caller's integrations.
// Synced health records are kept.
func (h *Handler) DisconnectIntegration(w http.ResponseWriter, r *http.Request) {
	integ, ok := h.ownedIntegration(w, r)
	if !ok {
		return
	}
	if err := h.sync.Disconnect(r.Context(), integ.ID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.audit.IntegrationDisconnected(r.Context(), r, integ)
	NewResponseWriter(w, r).NoContent()
}

// SyncIntegration syncs one of the caller's integrations immediately.
func (h *Handler) SyncIntegration(w http.ResponseWriter, r *http.Request) {
	integ, ok := h.ownedIntegration(w, r)
	if !ok {
		return
	}
	result, err := h.sync.SyncNow(r.Context(), integ.ID)
	if err != nil {
		if errors.Is(err, sync.ErrCredentialsExpired) {
			h.audit.ReauthorizationRequired(r.Context(), integ, err.Error())
		}
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(result)
}

// RunBatchSync runs one scheduler batch. Admin only.
func (h *Handler) RunBatchSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.sync.RunBatchSync(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.audit.BatchSyncTriggered(r.Context(), r, auth.UserID(r.Context()), result.Attempted, result.Succeeded, result.Failed)
	NewResponseWriter(w, r).Success(result)
}

// ownedIntegration loads {id} and checks the caller may access it. Other
// users' integrations are reported as not found.
func (h *Handler) ownedIntegration(w http.ResponseWriter, r *http.Request) (*models.Integration, bool) {
	integ, err := h.sync.GetIntegration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}
	if !h.canAccess(r.Context(), integ.UserID) {
		NewResponseWriter(w, r).NotFound("Integration not found")
		return nil, false
	}
	return integ, true
}

func providerParam(w http.ResponseWriter, r *http.Request) (models.Provider, bool) {
	p, err := models.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return "", false
	}
	return p, true
}
