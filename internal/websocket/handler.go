// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package websocket

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/vitalsync/internal/logging"
)

// NewUpgrader returns an upgrader that accepts requests without an Origin
// header, and browser requests whose Origin is in allowedOrigins. "*"
// allows any origin.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(strings.TrimSpace(o), "/")] = struct{}{}
	}
	_, allowAll := allowed["*"]

	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowAll {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// ServeWS upgrades the request and registers a client for identity.
// The upgrader writes the HTTP error response when the upgrade fails.
func ServeWS(hub *Hub, upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, identity Identity) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(hub, conn, identity)
	select {
	case hub.Register <- client:
		client.Start()
	case <-r.Context().Done():
		_ = conn.Close()
	}
}
