// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package api

import (
	"net/http"

	"github.com/tomtom215/vitalsync/internal/auth"
	"github.com/tomtom215/vitalsync/internal/websocket"
)

// WebSocket upgrades the connection and subscribes the caller to live sync
// results for their integrations.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		NewResponseWriter(w, r).ServiceUnavailable("Live updates are disabled")
		return
	}
	websocket.ServeWS(h.hub, h.upgrader, w, r, websocket.Identity{
		UserID: auth.UserID(r.Context()),
		Admin:  h.isAdmin(r.Context()),
	})
}
