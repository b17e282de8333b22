// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// State key prefix for namespacing in BadgerDB.
const badgerStateKeyPrefix = "oauth_state:"

// BadgerStateStore persists OAuth states in BadgerDB so pending
// authorizations survive a restart. Entries carry a Badger TTL matching
// ExpiresAt.
type BadgerStateStore struct {
	db  *badger.DB
	now func() time.Time
}

// NewBadgerStateStore opens a BadgerDB at path. An empty path opens an
// in-memory database.
func NewBadgerStateStore(path string) (*BadgerStateStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	} else {
		opts.SyncWrites = true
		opts.ValueLogFileSize = 16 << 20
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for oauth state: %w", err)
	}
	return &BadgerStateStore{db: db, now: time.Now}, nil
}

// Save implements StateStore.
func (s *BadgerStateStore) Save(_ context.Context, state *OAuthState) error {
	if err := validateState(state); err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(badgerStateKeyPrefix+state.Nonce), data)
		if ttl := state.ExpiresAt.Sub(s.now()); ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Consume implements StateStore. Read and delete happen in one transaction;
// of two concurrent consumers exactly one wins, the other gets a conflict
// that is reported as ErrStateNotFound.
func (s *BadgerStateStore) Consume(_ context.Context, nonce string) (*OAuthState, error) {
	if nonce == "" {
		return nil, ErrStateNotFound
	}

	var state OAuthState
	key := []byte(badgerStateKeyPrefix + nonce)
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrStateNotFound
		}
		if err != nil {
			return fmt.Errorf("get state: %w", err)
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		}); err != nil {
			return fmt.Errorf("decode state: %w", err)
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrConflict) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, err
	}

	if state.IsExpired(s.now()) {
		return nil, ErrStateExpired
	}
	return &state, nil
}

// CleanupExpired implements StateStore. Badger's TTL handles most expiry;
// this catches entries written without one.
func (s *BadgerStateStore) CleanupExpired(_ context.Context) (int, error) {
	var expired [][]byte
	now := s.now()

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(badgerStateKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var state OAuthState
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &state)
			}); err != nil || state.IsExpired(now) {
				expired = append(expired, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan for expired states: %w", err)
	}

	removed := 0
	for _, key := range expired {
		if err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		}); err == nil {
			removed++
		}
	}
	return removed, nil
}

// Close implements StateStore.
func (s *BadgerStateStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ StateStore = (*BadgerStateStore)(nil)
