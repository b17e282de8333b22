// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

/*
Package websocket pushes live updates to connected browser clients.

The hub keeps the set of connected clients and fans broadcast messages out to
them. Each client is bound to the authenticated user that opened the
connection. Messages whose payload names an owning user (see Audience) are
delivered only to that user and to admins; other messages go to everyone.

Message Types:

  - sync_completed: an integration sync finished (records fetched, status,
    date range, error)
  - ping / pong: application-level keepalive sent by clients

Each client runs two goroutines:
  - readPump: reads client messages, answers pings, enforces the pong deadline
  - writePump: writes queued messages and periodic protocol pings

Slow clients whose send buffer fills are dropped rather than blocking the hub.

The hub is run under the supervisor via RunWithContext; cancelling the
context closes every client.
*/
package websocket
