// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in memory. Data is lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
	maxLen int
}

// NewMemoryStore creates a store that keeps at most maxLen events
// (10000 when maxLen is not positive).
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{events: make([]Event, 0, min(maxLen, 1024)), maxLen: maxLen}
}

// Save appends event, dropping the oldest tenth when full.
func (s *MemoryStore) Save(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) >= s.maxLen {
		s.events = s.events[max(s.maxLen/10, 1):]
	}
	s.events = append(s.events, *event)
	return nil
}

// Query returns matching events, newest first.
func (s *MemoryStore) Query(_ context.Context, filter QueryFilter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []Event{}
	for i := len(s.events) - 1; i >= 0; i-- {
		if !filter.matches(&s.events[i]) {
			continue
		}
		results = append(results, s.events[i])
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}
	return results, nil
}

// Delete removes events older than olderThan.
func (s *MemoryStore) Delete(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	for i := range s.events {
		if !s.events[i].Timestamp.Before(olderThan) {
			kept = append(kept, s.events[i])
		}
	}
	removed := int64(len(s.events) - len(kept))
	s.events = kept
	return removed, nil
}
