// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/vitalsync/internal/audit"
)

const maxAuditLimit = 1000

// ListAuditEvents returns recent audit events, newest first. Admin only.
//
// Query parameters: type (comma-separated), actor_id, target_id,
// since (RFC 3339) and limit (1-1000, default 100).
func (h *Handler) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.audit == nil {
		rw.ServiceUnavailable("Audit logging is disabled")
		return
	}

	filter, msg := parseAuditFilter(r)
	if msg != "" {
		rw.BadRequest(msg)
		return
	}

	events, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	rw.List(events, len(events))
}

func parseAuditFilter(r *http.Request) (audit.QueryFilter, string) {
	q := r.URL.Query()
	filter := audit.DefaultQueryFilter()
	filter.ActorID = q.Get("actor_id")
	filter.TargetID = q.Get("target_id")

	if raw := q.Get("type"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Types = append(filter.Types, audit.EventType(t))
			}
		}
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, "since must be an RFC 3339 timestamp"
		}
		filter.Since = &since
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxAuditLimit {
			return filter, "limit must be between 1 and 1000"
		}
		filter.Limit = limit
	}
	return filter, ""
}
