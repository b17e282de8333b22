// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/tomtom215/vitalsync/internal/logging"
)

type contextKey string

// WebSocketTokenParam carries the bearer token on websocket handshakes.
const WebSocketTokenParam = "access_token"

// ClaimsContextKey holds the validated *Claims on the request context.
const ClaimsContextKey contextKey = "claims"

// Middleware authenticates API requests with bearer tokens.
type Middleware struct {
	jwtManager    *JWTManager
	adminSubjects map[string]struct{}
}

// NewMiddleware creates the middleware. Subjects in adminSubjects are
// treated as admins regardless of their role claim.
func NewMiddleware(jwtManager *JWTManager, adminSubjects []string) *Middleware {
	admins := make(map[string]struct{}, len(adminSubjects))
	for _, s := range adminSubjects {
		if s = strings.TrimSpace(s); s != "" {
			admins[s] = struct{}{}
		}
	}
	return &Middleware{jwtManager: jwtManager, adminSubjects: admins}
}

// Authenticate rejects requests without a valid bearer token and stores
// the claims on the context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok && isWebSocketUpgrade(r) {
			// Browsers cannot set headers on websocket handshakes.
			token = r.URL.Query().Get(WebSocketTokenParam)
			ok = token != ""
		}
		if !ok {
			http.Error(w, "Unauthorized: missing bearer token", http.StatusUnauthorized)
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Token validation failed")
			http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after Authenticate.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || !m.IsAdmin(claims) {
			http.Error(w, "Forbidden: admin role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IsAdmin reports whether claims grant admin access.
func (m *Middleware) IsAdmin(claims *Claims) bool {
	if claims == nil {
		return false
	}
	if claims.Role == RoleAdmin {
		return true
	}
	_, ok := m.adminSubjects[claims.Subject]
	return ok
}

// ClaimsFromContext returns the claims stored by Authenticate.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return claims, ok && claims != nil
}

// UserID returns the authenticated user's ID, or "" when unauthenticated.
func UserID(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.Subject
	}
	return ""
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func isWebSocketUpgrade(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
