// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// EventType categorizes audit events.
type EventType string

const (
	EventTypeIntegrationConnected    EventType = "integration.connected"
	EventTypeIntegrationDisconnected EventType = "integration.disconnected"
	EventTypeReauthorizationRequired EventType = "integration.reauthorization_required"
	EventTypeGoalCreated             EventType = "goal.created"
	EventTypeBatchSyncTriggered      EventType = "sync.batch_triggered"
)

// Severity indicates the severity level of an audit event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Outcome indicates whether an action succeeded or failed.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is one audit record.
type Event struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Type        EventType       `json:"type"`
	Severity    Severity        `json:"severity"`
	Outcome     Outcome         `json:"outcome"`
	Actor       Actor           `json:"actor"`
	Target      *Target         `json:"target,omitempty"`
	Source      Source          `json:"source"`
	Action      string          `json:"action"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	RequestID   string          `json:"request_id,omitempty"`
}

// Actor is who performed the action.
type Actor struct {
	ID   string `json:"id"`
	Type string `json:"type"` // user or system
}

// Target is the object of an action.
type Target struct {
	ID   string `json:"id"`
	Type string `json:"type"` // integration or goal
	Name string `json:"name,omitempty"`
}

// Source is where a request originated. Empty for scheduler actions.
type Source struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Store persists audit events.
type Store interface {
	Save(ctx context.Context, event *Event) error

	// Query returns matching events, newest first.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)

	// Delete removes events older than olderThan and returns how many.
	Delete(ctx context.Context, olderThan time.Time) (int64, error)
}

// QueryFilter narrows an audit query. Zero fields match everything.
type QueryFilter struct {
	Types    []EventType
	ActorID  string
	TargetID string
	Since    *time.Time
	Limit    int
}

// DefaultQueryFilter returns the 100 most recent events.
func DefaultQueryFilter() QueryFilter {
	return QueryFilter{Limit: 100}
}

func (f *QueryFilter) matches(e *Event) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ActorID != "" && e.Actor.ID != f.ActorID {
		return false
	}
	if f.TargetID != "" && (e.Target == nil || e.Target.ID != f.TargetID) {
		return false
	}
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	return true
}
