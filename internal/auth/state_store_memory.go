// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryStateStore keeps states in process memory. States are lost on
// restart, which only forces users to click "connect" again.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]OAuthState
	now    func() time.Time
}

// NewMemoryStateStore creates an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		states: make(map[string]OAuthState),
		now:    time.Now,
	}
}

// Save implements StateStore.
func (s *MemoryStateStore) Save(_ context.Context, state *OAuthState) error {
	if err := validateState(state); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.Nonce] = *state
	return nil
}

// Consume implements StateStore.
func (s *MemoryStateStore) Consume(_ context.Context, nonce string) (*OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[nonce]
	if !ok {
		return nil, ErrStateNotFound
	}
	delete(s.states, nonce)
	if state.IsExpired(s.now()) {
		return nil, ErrStateExpired
	}
	return &state, nil
}

// CleanupExpired implements StateStore.
func (s *MemoryStateStore) CleanupExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for nonce, state := range s.states {
		if state.IsExpired(now) {
			delete(s.states, nonce)
			removed++
		}
	}
	return removed, nil
}

// Close implements StateStore.
func (s *MemoryStateStore) Close() error { return nil }

var _ StateStore = (*MemoryStateStore)(nil)
