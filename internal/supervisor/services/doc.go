// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

/*
Package services provides suture.Service wrappers for VitalSync components.

Each wrapper translates a component's own lifecycle (Start/Stop, Run,
ListenAndServe) into suture's context-aware Serve method and names itself
via fmt.Stringer so supervisor events identify it.

# Available Services

	HTTPServerService     *http.Server with graceful Shutdown
	SyncSchedulerService  sync.Manager batch loop (Start/Stop)
	WebSocketHubService   websocket.Hub.RunWithContext
	ForwarderService      eventprocessor.Forwarder (NATS to websocket)
	CleanupService        periodic removal of expired OAuth states, audit events and WAL entries
	wal.RetryLoop         republishes WAL entries (already a suture.Service)

# Restart Semantics

suture restarts a service whenever Serve returns, subject to backoff, unless
the supervisor's context is done. Wrappers therefore return ctx.Err() on
shutdown and a descriptive error for anything else.
*/
package services
