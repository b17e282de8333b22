// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package services

import (
	"context"
	"time"

	"github.com/tomtom215/vitalsync/internal/logging"
)

// ExpiredCleaner deletes records past their lifetime. Every auth.StateStore,
// *audit.Logger and *wal.BadgerWAL satisfy it.
type ExpiredCleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// CleanupService runs an ExpiredCleaner on a fixed interval.
type CleanupService struct {
	cleaner  ExpiredCleaner
	interval time.Duration
	name     string
	subject  string
}

// NewStateCleanupService removes OAuth state nonces whose authorization flow
// was abandoned. Consume already rejects expired nonces; this only reclaims
// storage. A non-positive interval selects five minutes.
func NewStateCleanupService(store ExpiredCleaner, interval time.Duration) *CleanupService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CleanupService{cleaner: store, interval: interval, name: "oauth-state-cleanup", subject: "OAuth states"}
}

// NewAuditRetentionService deletes audit events past retention. A
// non-positive interval selects 24 hours.
func NewAuditRetentionService(logger ExpiredCleaner, interval time.Duration) *CleanupService {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &CleanupService{cleaner: logger, interval: interval, name: "audit-retention", subject: "audit events"}
}

// NewWALCompactionService drops WAL entries older than their TTL and runs
// value log GC. A non-positive interval selects five minutes.
func NewWALCompactionService(w ExpiredCleaner, interval time.Duration) *CleanupService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CleanupService{cleaner: w, interval: interval, name: "wal-compaction", subject: "WAL entries"}
}

// Serve implements suture.Service. Cleanup errors are logged and retried on
// the next tick rather than restarting the service.
func (s *CleanupService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.cleanup(ctx)
		}
	}
}

func (s *CleanupService) cleanup(ctx context.Context) {
	removed, err := s.cleaner.CleanupExpired(ctx)
	if err != nil {
		logging.Warn().Err(err).Str("service", s.name).Msg("Cleanup of expired " + s.subject + " failed")
		return
	}
	if removed > 0 {
		logging.Debug().Int("removed", removed).Msg("Removed expired " + s.subject)
	}
}

func (s *CleanupService) String() string {
	return s.name
}
