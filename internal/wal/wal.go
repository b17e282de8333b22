// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package wal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/vitalsync/internal/config"
	"github.com/tomtom215/vitalsync/internal/logging"
)

var (
	ErrWALClosed     = errors.New("wal is closed")
	ErrNilEvent      = errors.New("event cannot be nil")
	ErrEmptyEntryID  = errors.New("entry ID cannot be empty")
	ErrEntryNotFound = errors.New("wal entry not found")
)

const prefixPending = "pending:"

// gcDiscardRatio is the value log file ratio Badger must be able to reclaim
// before rewriting a file.
const gcDiscardRatio = 0.5

// Entry is one event awaiting publication.
type Entry struct {
	ID            string          `json:"id"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	Attempts      int             `json:"attempts"`
	LastAttemptAt time.Time       `json:"last_attempt_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
}

// UnmarshalPayload decodes the stored event into v.
func (e *Entry) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Stats are counters since Open.
type Stats struct {
	TotalWrites   int64
	TotalConfirms int64
	TotalRetries  int64
}

// BadgerWAL stores pending entries in BadgerDB. Safe for concurrent use.
type BadgerWAL struct {
	db  *badger.DB
	cfg config.WALConfig
	now func() time.Time

	totalWrites   atomic.Int64
	totalConfirms atomic.Int64
	totalRetries  atomic.Int64

	mu     gosync.RWMutex
	closed bool
}

// Open opens the WAL at cfg.Path. An empty path opens an in-memory WAL.
func Open(cfg config.WALConfig) (*BadgerWAL, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	} else {
		opts.SyncWrites = cfg.SyncWrites
		opts.ValueLogFileSize = 16 << 20
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for wal: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("WAL opened")
	return &BadgerWAL{db: db, cfg: cfg, now: time.Now}, nil
}

// Config returns the configuration the WAL was opened with.
func (w *BadgerWAL) Config() config.WALConfig {
	return w.cfg
}

func (w *BadgerWAL) checkOpen() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWALClosed
	}
	return nil
}

// Write persists event as a new pending entry and returns its ID.
func (w *BadgerWAL) Write(_ context.Context, event interface{}) (string, error) {
	if err := w.checkOpen(); err != nil {
		return "", err
	}
	if event == nil {
		return "", ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	entry := &Entry{
		ID:        uuid.NewString(),
		Payload:   payload,
		CreatedAt: w.now().UTC(),
	}
	if err := w.put(entry); err != nil {
		return "", fmt.Errorf("write wal entry: %w", err)
	}

	w.totalWrites.Add(1)
	walWrites.Inc()
	return entry.ID, nil
}

// put stores entry with a Badger TTL covering what remains of EntryTTL.
func (w *BadgerWAL) put(entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	return w.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(prefixPending+entry.ID), data)
		if w.cfg.EntryTTL > 0 {
			if ttl := w.cfg.EntryTTL - w.now().Sub(entry.CreatedAt); ttl > 0 {
				e = e.WithTTL(ttl)
			}
		}
		return txn.SetEntry(e)
	})
}

// get loads one pending entry.
func (w *BadgerWAL) get(id string) (*Entry, error) {
	var entry Entry
	err := w.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixPending + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Confirm removes an entry after a successful publish.
func (w *BadgerWAL) Confirm(ctx context.Context, entryID string) error {
	if err := w.DeleteEntry(ctx, entryID); err != nil {
		return err
	}
	w.totalConfirms.Add(1)
	walConfirms.Inc()
	return nil
}

// DeleteEntry removes an entry without counting it as published.
func (w *BadgerWAL) DeleteEntry(_ context.Context, entryID string) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if entryID == "" {
		return ErrEmptyEntryID
	}

	key := []byte(prefixPending + entryID)
	return w.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrEntryNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
}

// UpdateAttempt records a failed publish attempt.
func (w *BadgerWAL) UpdateAttempt(_ context.Context, entryID, lastError string) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if entryID == "" {
		return ErrEmptyEntryID
	}

	entry, err := w.get(entryID)
	if err != nil {
		return err
	}
	entry.Attempts++
	entry.LastAttemptAt = w.now().UTC()
	entry.LastError = lastError
	if err := w.put(entry); err != nil {
		return fmt.Errorf("update wal entry: %w", err)
	}

	w.totalRetries.Add(1)
	walRetries.Inc()
	return nil
}

// GetPending returns every pending entry, oldest first.
func (w *BadgerWAL) GetPending(_ context.Context) ([]*Entry, error) {
	if err := w.checkOpen(); err != nil {
		return nil, err
	}

	var entries []*Entry
	err := w.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixPending)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var entry Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return fmt.Errorf("unmarshal wal entry %s: %w", it.Item().Key(), err)
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	walPending.Set(float64(len(entries)))
	return entries, nil
}

// CleanupExpired deletes entries older than EntryTTL and reclaims value log
// space. It returns how many entries were deleted.
func (w *BadgerWAL) CleanupExpired(ctx context.Context) (int, error) {
	entries, err := w.GetPending(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	if w.cfg.EntryTTL > 0 {
		cutoff := w.now().Add(-w.cfg.EntryTTL)
		for _, entry := range entries {
			if !entry.CreatedAt.Before(cutoff) {
				continue
			}
			if err := w.DeleteEntry(ctx, entry.ID); err != nil && !errors.Is(err, ErrEntryNotFound) {
				return removed, err
			}
			removed++
			walDropped.WithLabelValues("expired").Inc()
		}
	}

	return removed, w.runGC()
}

func (w *BadgerWAL) runGC() error {
	if w.cfg.Path == "" {
		return nil
	}
	walGCRuns.Inc()
	for {
		err := w.db.RunValueLogGC(gcDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("wal value log gc: %w", err)
		}
	}
}

// Stats returns counters since Open.
func (w *BadgerWAL) Stats() Stats {
	return Stats{
		TotalWrites:   w.totalWrites.Load(),
		TotalConfirms: w.totalConfirms.Load(),
		TotalRetries:  w.totalRetries.Load(),
	}
}

// Close closes the database. Pending entries remain for the next Open.
func (w *BadgerWAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.db.Close()
}
