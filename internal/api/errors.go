// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package api

import (
	"context"
	"errors"
	"net/http"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/vitalsync/internal/auth"
	"github.com/tomtom215/vitalsync/internal/logging"
	"github.com/tomtom215/vitalsync/internal/models"
	"github.com/tomtom215/vitalsync/internal/provider"
	"github.com/tomtom215/vitalsync/internal/sync"
	"github.com/tomtom215/vitalsync/internal/validation"
)

var errNoDatabase = errors.New("database not configured")

// writeServiceError maps domain errors to HTTP responses:
//
//	validation                      400 VALIDATION_FAILED
//	unsupported provider/goal type  400
//	invalid or expired OAuth state  400
//	integration / goal not found    404
//	duplicate integration           409
//	expired credentials             409 REAUTHORIZATION_REQUIRED
//	provider circuit open           503
//	provider auth / fetch failure   502
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)

	var (
		verr        *validation.RequestValidationError
		exchangeErr *provider.AuthExchangeError
		refreshErr  *provider.TokenRefreshError
		fetchErr    *provider.ProviderFetchError
		goalTypeErr *models.UnsupportedGoalTypeError
	)

	switch {
	case errors.As(err, &verr):
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
	case errors.As(err, &goalTypeErr):
		rw.BadRequest(goalTypeErr.Error())
	case errors.Is(err, provider.ErrUnsupportedProvider):
		rw.BadRequest(err.Error())
	case errors.Is(err, auth.ErrStateNotFound), errors.Is(err, auth.ErrStateExpired):
		rw.BadRequest("OAuth state is invalid or has expired; start the connection again")
	case errors.Is(err, models.ErrIntegrationNotFound):
		rw.NotFound("Integration not found")
	case errors.Is(err, models.ErrGoalNotFound):
		rw.NotFound("Goal not found")
	case errors.Is(err, models.ErrDuplicateIntegration):
		rw.Conflict(err.Error())
	case errors.Is(err, sync.ErrCredentialsExpired):
		rw.Error(http.StatusConflict, ErrCodeReauthRequired, "Provider authorization expired; reconnect the integration")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		rw.ServiceUnavailable("Provider is temporarily unavailable")
	case errors.As(err, &exchangeErr):
		writeUpstreamError(rw, r, err, exchangeErr.Provider, exchangeErr.StatusCode, "Authorization code exchange failed")
	case errors.As(err, &refreshErr):
		writeUpstreamError(rw, r, err, refreshErr.Provider, refreshErr.StatusCode, "Token refresh failed")
	case errors.As(err, &fetchErr):
		writeUpstreamError(rw, r, err, fetchErr.Provider, fetchErr.StatusCode, "Fetching provider data failed")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Request cancelled")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Unhandled API error")
		rw.InternalError("An internal error occurred")
	}
}

func writeUpstreamError(rw *ResponseWriter, r *http.Request, err error, p models.Provider, status int, message string) {
	logging.Ctx(r.Context()).Warn().Err(err).Str("provider", string(p)).Int("upstream_status", status).Msg(message)

	details := map[string]interface{}{
		"provider":   p,
		"error_kind": provider.ErrorKind(err),
	}
	if status > 0 {
		details["upstream_status"] = status
	}
	rw.ErrorWithDetails(http.StatusBadGateway, ErrCodeExternalServiceFail, message, details)
}
