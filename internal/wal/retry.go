// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package wal

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/vitalsync/internal/logging"
)

const (
	maxBackoff     = 5 * time.Minute
	publishTimeout = 10 * time.Second
)

// EntryPublisher republishes a stored entry.
type EntryPublisher interface {
	PublishEntry(ctx context.Context, entry *Entry) error
}

type retryResult int

const (
	retryResultSuccess retryResult = iota
	retryResultFailed
	retryResultDropped
	retryResultSkipped
)

// RetryLoop republishes pending entries. It implements suture.Service; the
// first pass on Serve recovers entries left by a previous run.
type RetryLoop struct {
	wal       *BadgerWAL
	publisher EntryPublisher
	interval  time.Duration
	maxTries  int
	now       func() time.Time
}

// NewRetryLoop creates a retry loop using the WAL's retry settings.
func NewRetryLoop(w *BadgerWAL, publisher EntryPublisher) *RetryLoop {
	cfg := w.Config()
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	maxTries := cfg.MaxRetries
	if maxTries <= 0 {
		maxTries = 100
	}
	return &RetryLoop{wal: w, publisher: publisher, interval: interval, maxTries: maxTries, now: time.Now}
}

// Serve implements suture.Service.
func (r *RetryLoop) Serve(ctx context.Context) error {
	logging.Info().
		Dur("interval", r.interval).
		Int("max_retries", r.maxTries).
		Msg("WAL retry loop started")

	r.retryPending(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.retryPending(ctx)
		}
	}
}

func (r *RetryLoop) String() string {
	return "wal-retry"
}

func (r *RetryLoop) retryPending(ctx context.Context) {
	entries, err := r.wal.GetPending(ctx)
	if err != nil {
		if !errors.Is(err, ErrWALClosed) {
			logging.Error().Err(err).Msg("WAL retry: failed to list pending entries")
		}
		return
	}

	var success, failed, dropped int
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		switch r.process(ctx, entry) {
		case retryResultSuccess:
			success++
		case retryResultFailed:
			failed++
		case retryResultDropped:
			dropped++
		}
	}

	if success > 0 || failed > 0 || dropped > 0 {
		logging.Info().
			Int("succeeded", success).
			Int("failed", failed).
			Int("dropped", dropped).
			Int("pending", len(entries)-success-dropped).
			Msg("WAL retry pass complete")
	}
}

func (r *RetryLoop) process(ctx context.Context, entry *Entry) retryResult {
	if entry.Attempts >= r.maxTries {
		logging.Warn().
			Str("entry_id", entry.ID).
			Int("attempts", entry.Attempts).
			Str("last_error", entry.LastError).
			Msg("WAL entry exceeded max retries, removing")
		if err := r.wal.DeleteEntry(ctx, entry.ID); err != nil && !errors.Is(err, ErrEntryNotFound) {
			logging.Error().Err(err).Str("entry_id", entry.ID).Msg("WAL retry: failed to delete entry")
		}
		walDropped.WithLabelValues("max_retries").Inc()
		return retryResultDropped
	}
	if !r.readyForRetry(entry) {
		return retryResultSkipped
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	err := r.publisher.PublishEntry(pubCtx, entry)
	cancel()
	if err != nil {
		logging.Warn().
			Err(err).
			Str("entry_id", entry.ID).
			Int("attempt", entry.Attempts+1).
			Msg("WAL retry: publish failed")
		if updateErr := r.wal.UpdateAttempt(ctx, entry.ID, err.Error()); updateErr != nil {
			logging.Error().Err(updateErr).Str("entry_id", entry.ID).Msg("WAL retry: failed to record attempt")
		}
		return retryResultFailed
	}

	if err := r.wal.Confirm(ctx, entry.ID); err != nil && !errors.Is(err, ErrEntryNotFound) {
		logging.Error().Err(err).Str("entry_id", entry.ID).Msg("WAL retry: failed to confirm entry")
	}
	return retryResultSuccess
}

// readyForRetry gives a fresh entry one interval for its inline publish to
// finish, then backs off exponentially from the last attempt.
func (r *RetryLoop) readyForRetry(entry *Entry) bool {
	if entry.LastAttemptAt.IsZero() {
		return r.now().Sub(entry.CreatedAt) >= r.interval
	}
	return r.now().Sub(entry.LastAttemptAt) >= r.backoff(entry.Attempts)
}

// backoff is interval * 2^(attempts-1), capped at maxBackoff.
func (r *RetryLoop) backoff(attempts int) time.Duration {
	if attempts <= 1 {
		return r.interval
	}
	if attempts > 20 {
		return maxBackoff
	}
	d := r.interval << (attempts - 1)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}
