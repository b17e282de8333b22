// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/vitalsync/internal/config"
	"github.com/tomtom215/vitalsync/internal/models"
)

var (
	// ErrStateNotFound is returned when a nonce is unknown or already consumed.
	ErrStateNotFound = errors.New("oauth state not found")

	// ErrStateExpired is returned when a nonce outlived its TTL.
	ErrStateExpired = errors.New("oauth state expired")
)

// OAuthState binds an authorization request to the user who started it.
type OAuthState struct {
	Nonce     string          `json:"nonce"`
	UserID    string          `json:"user_id"`
	Provider  models.Provider `json:"provider"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// NewOAuthState creates a state with a random nonce valid for ttl from now.
func NewOAuthState(userID string, provider models.Provider, now time.Time, ttl time.Duration) *OAuthState {
	return &OAuthState{
		Nonce:     uuid.NewString(),
		UserID:    userID,
		Provider:  provider,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired reports whether the state is no longer valid at now.
func (s *OAuthState) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// StateStore persists OAuth state nonces.
type StateStore interface {
	// Save stores the state until its ExpiresAt.
	Save(ctx context.Context, state *OAuthState) error

	// Consume returns and deletes the state for nonce. A nonce can be
	// consumed at most once.
	Consume(ctx context.Context, nonce string) (*OAuthState, error)

	// CleanupExpired removes expired states and returns how many were removed.
	CleanupExpired(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

// NewStateStore creates the store selected by cfg.Backend.
func NewStateStore(cfg config.StateStoreConfig) (StateStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemoryStateStore(), nil
	case "badger":
		return NewBadgerStateStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown state store backend %q", cfg.Backend)
	}
}

func validateState(state *OAuthState) error {
	if state == nil {
		return errors.New("state cannot be nil")
	}
	if state.Nonce == "" {
		return errors.New("state nonce cannot be empty")
	}
	return nil
}
