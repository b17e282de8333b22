// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

// Package wal provides a durable write-ahead log for sync events using
// BadgerDB.
//
// With NATS enabled, a sync event is persisted before it is published, so a
// broker outage or a crash between sync and publish does not lose it:
//
//	Event → WAL Write → NATS Publish → WAL Confirm
//	                         ↓ (on failure)
//	                   entry kept for RetryLoop
//
// # Components
//
//   - BadgerWAL: pending entries under the "pending:" key prefix
//   - DurablePublisher: sync.EventPublisher that writes through the WAL
//   - RetryLoop: suture service that republishes pending entries with
//     exponential backoff and recovers entries left by a previous run
//
// CleanupExpired drops entries older than WAL_ENTRY_TTL and runs Badger's
// value log GC; the supervisor calls it every WAL_COMPACT_INTERVAL.
//
// Republishing can deliver an event twice. Consumers deduplicate on the
// event ID, which is also the Watermill message UUID.
package wal
