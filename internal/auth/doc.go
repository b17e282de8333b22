// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

/*
Package auth provides API authentication and OAuth state handling.

Key Components:

  - JWTManager: HS256 bearer token issuing and validation (golang-jwt/v5)
  - Middleware: chi-compatible middleware that resolves the calling user
  - StateStore: single-use OAuth state nonces with a TTL, backed by memory
    or BadgerDB

OAuth State Flow:

 1. The sync manager creates an OAuthState for (user, provider) and saves it.
 2. The nonce travels through the provider's consent screen as ?state=.
 3. The callback calls Consume, which returns and deletes the state in one
    step so a nonce can never be replayed.

Usage Example:

	store, err := auth.NewStateStore(cfg.StateStore)
	if err != nil {
	    return err
	}
	defer store.Close()

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
	    return err
	}
	mw := auth.NewMiddleware(jwtManager, cfg.Security.AdminSubjects)
	r.With(mw.Authenticate).Get("/api/v1/integrations", handler)
*/
package auth
