// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package models

import "time"

// IntegrationStatus is the credential lifecycle state of an integration.
//
//	ACTIVE  --refresh/sync ok--> ACTIVE
//	ACTIVE  --refresh or sync failure--> ERROR
//	ACTIVE  --expired, no refresh token--> EXPIRED
//	ERROR   --sync ok--> ACTIVE
//	any     --reconnect via new OAuth code--> ACTIVE
//
// ERROR is not terminal; such integrations stay eligible for batch sync.
type IntegrationStatus string

const (
	IntegrationActive  IntegrationStatus = "ACTIVE"
	IntegrationExpired IntegrationStatus = "EXPIRED"
	IntegrationRevoked IntegrationStatus = "REVOKED"
	IntegrationError   IntegrationStatus = "ERROR"
)

// Syncable reports whether the batch scheduler may pick up integrations in this state.
func (s IntegrationStatus) Syncable() bool {
	return s == IntegrationActive || s == IntegrationError
}

// OAuthCredentials are the provider tokens for one integration.
// ExpiresAt is absolute regardless of whether the provider reported
// absolute or relative expiry.
type OAuthCredentials struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
}

// ExpiresWithin reports whether the access token expires at or before now+window.
func (c *OAuthCredentials) ExpiresWithin(now time.Time, window time.Duration) bool {
	return !c.ExpiresAt.After(now.Add(window))
}

// Integration links one user to one provider. (UserID, Provider) is unique.
type Integration struct {
	ID               string            `json:"id"`
	UserID           string            `json:"user_id"`
	Provider         Provider          `json:"provider"`
	Credentials      OAuthCredentials  `json:"credentials"`
	Status           IntegrationStatus `json:"status"`
	LastSyncedAt     *time.Time        `json:"last_synced_at,omitempty"`
	SyncErrorMessage *string           `json:"sync_error_message,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}
