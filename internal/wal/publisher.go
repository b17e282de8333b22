// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package wal

import (
	"context"
	"fmt"

	"github.com/tomtom215/vitalsync/internal/logging"
	"github.com/tomtom215/vitalsync/internal/sync"
)

// DurablePublisher persists each sync event before passing it to next. A
// failed publish leaves the entry for RetryLoop and is not reported to the
// caller.
type DurablePublisher struct {
	wal  *BadgerWAL
	next sync.EventPublisher
}

var (
	_ sync.EventPublisher = (*DurablePublisher)(nil)
	_ EntryPublisher      = (*DurablePublisher)(nil)
)

// NewDurablePublisher wraps next.
func NewDurablePublisher(w *BadgerWAL, next sync.EventPublisher) *DurablePublisher {
	return &DurablePublisher{wal: w, next: next}
}

// PublishSyncCompleted implements sync.EventPublisher. If the WAL write
// itself fails the event is published without durability.
func (p *DurablePublisher) PublishSyncCompleted(ctx context.Context, event *sync.SyncCompletedEvent) error {
	entryID, err := p.wal.Write(ctx, event)
	if err != nil {
		walWriteFailures.Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("event_id", event.EventID).Msg("WAL write failed, publishing without durability")
		return p.next.PublishSyncCompleted(ctx, event)
	}

	if err := p.next.PublishSyncCompleted(ctx, event); err != nil {
		if updateErr := p.wal.UpdateAttempt(ctx, entryID, err.Error()); updateErr != nil {
			logging.Ctx(ctx).Error().Err(updateErr).Str("entry_id", entryID).Msg("Failed to record WAL attempt")
		}
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("event_id", event.EventID).
			Str("entry_id", entryID).
			Msg("Sync event kept in WAL for retry")
		return nil
	}

	if err := p.wal.Confirm(ctx, entryID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("entry_id", entryID).Msg("Failed to confirm WAL entry")
	}
	return nil
}

// PublishEntry implements EntryPublisher.
func (p *DurablePublisher) PublishEntry(ctx context.Context, entry *Entry) error {
	var event sync.SyncCompletedEvent
	if err := entry.UnmarshalPayload(&event); err != nil {
		return fmt.Errorf("decode wal entry %s: %w", entry.ID, err)
	}
	return p.next.PublishSyncCompleted(ctx, &event)
}
