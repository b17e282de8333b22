// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

/*
Package supervisor provides process supervision for VitalSync using suture v4.

Every long-running component runs as a suture.Service inside a three-layer
tree:

	RootSupervisor ("vitalsync")
	├── DataSupervisor ("data-layer")
	│   ├── CleanupService "oauth-state-cleanup"
	│   ├── CleanupService "audit-retention" (if AUDIT_ENABLED)
	│   └── CleanupService "wal-compaction" (if WAL_ENABLED)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocketHubService
	│   ├── SyncSchedulerService
	│   ├── ForwarderService (if NATS_ENABLED)
	│   └── wal.RetryLoop "wal-retry" (if WAL_ENABLED)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crashed service is restarted with backoff once FailureThreshold is
exceeded; failures decay over FailureDecay seconds. Cancelling the context
passed to Serve stops every service, giving each ShutdownTimeout to return.

DuckDB is not supervised. It is an embedded library whose handle is opened
before the tree starts and closed after it stops.

Supervisor events are logged through sutureslog into the zerolog-backed
slog handler from the logging package.

See internal/supervisor/services for the service wrappers.
*/
package supervisor
