// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

/*
Package sync implements the health data synchronization engine.

Components:

  - CredentialManager: refreshes OAuth tokens before they expire and drives
    the integration status machine (ACTIVE, ERROR, EXPIRED)
  - Scheduler: selects integrations that are due for a batch sync
  - Manager: OAuth connect/disconnect, manual sync and batch sync, plus the
    periodic batch loop run under the supervisor

Per-integration sync sequence:

 1. Ensure credentials are fresh (refresh under a per-integration lock)
 2. Fetch the date range from the provider adapter, retrying transient errors
 3. Upsert the normalized records
 4. Mark the integration synced, or record the error and set ERROR

Only the last step changes status, so a failed fetch never looks synced.
Concurrent requests to sync the same integration collapse into one run
(singleflight). A batch runs integrations concurrently up to
sync.concurrency; one failure never aborts the others.

Thread Safety:
  - Manager and CredentialManager are safe for concurrent use
  - Stores and adapters must be safe for concurrent use
*/
package sync
