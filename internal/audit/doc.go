// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

/*
Package audit records who changed which integration or goal, and when.

Events are written asynchronously through a buffered channel so request
handlers never wait on storage. A full buffer drops the event with a
warning rather than blocking.

Event types:

	integration.connected               OAuth callback stored new tokens
	integration.disconnected            user removed an integration
	integration.reauthorization_required  a sync found the grant revoked or expired
	goal.created                        user created a goal
	sync.batch_triggered                an admin ran a batch sync on demand

Stores:

	MemoryStore   bounded slice, used in tests and when DuckDB is unavailable
	DuckDBStore   audit_events table in the application database

Retention: Logger.CleanupExpired deletes events older than RetentionDays.
The supervisor runs it on an interval as the "audit-retention" service.
*/
package audit
