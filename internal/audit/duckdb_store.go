// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

var auditSchema = []string{
	`CREATE TABLE IF NOT EXISTS audit_events (
		id VARCHAR PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		type VARCHAR NOT NULL,
		severity VARCHAR NOT NULL,
		outcome VARCHAR NOT NULL,
		actor_id VARCHAR NOT NULL,
		actor_type VARCHAR NOT NULL,
		target_id VARCHAR,
		target_type VARCHAR,
		target_name VARCHAR,
		source_ip VARCHAR,
		source_user_agent VARCHAR,
		action VARCHAR NOT NULL,
		description VARCHAR NOT NULL,
		metadata VARCHAR,
		request_id VARCHAR
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_actor_id ON audit_events(actor_id)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_target_id ON audit_events(target_id)`,
}

// DuckDBStore implements Store on the audit_events table.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore creates a store on db. Call CreateTable before use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates the audit_events table and its indexes if missing.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	for _, stmt := range auditSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create audit schema: %w", err)
		}
	}
	return nil
}

// Save inserts event.
func (s *DuckDBStore) Save(ctx context.Context, event *Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	var targetID, targetType, targetName sql.NullString
	if event.Target != nil {
		targetID = nullString(event.Target.ID)
		targetType = nullString(event.Target.Type)
		targetName = nullString(event.Target.Name)
	}
	var metadata sql.NullString
	if len(event.Metadata) > 0 {
		metadata = sql.NullString{String: string(event.Metadata), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, timestamp, type, severity, outcome, actor_id, actor_type,
			target_id, target_type, target_name, source_ip, source_user_agent,
			action, description, metadata, request_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Timestamp.UTC(),
		string(event.Type),
		string(event.Severity),
		string(event.Outcome),
		event.Actor.ID,
		event.Actor.Type,
		targetID,
		targetType,
		targetName,
		nullString(event.Source.IPAddress),
		nullString(event.Source.UserAgent),
		event.Action,
		event.Description,
		metadata,
		nullString(event.RequestID),
	)
	if err != nil {
		return fmt.Errorf("failed to save audit event: %w", err)
	}
	return nil
}

// Query returns matching events, newest first.
func (s *DuckDBStore) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		conditions = append(conditions, "type IN ("+strings.Join(placeholders, ",")+")")
	}
	if filter.ActorID != "" {
		conditions = append(conditions, "actor_id = ?")
		args = append(args, filter.ActorID)
	}
	if filter.TargetID != "" {
		conditions = append(conditions, "target_id = ?")
		args = append(args, filter.TargetID)
	}
	if filter.Since != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := `SELECT id, timestamp, type, severity, outcome, actor_id, actor_type,
		target_id, target_type, target_name, source_ip, source_user_agent,
		action, description, metadata, request_id
		FROM audit_events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}

// Delete removes events older than olderThan.
func (s *DuckDBStore) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_events WHERE timestamp < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit events: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted audit events: %w", err)
	}
	return n, nil
}

func scanEvent(rows *sql.Rows) (*Event, error) {
	var (
		e                                 Event
		eventType, severity, outcome      string
		targetID, targetType, targetName  sql.NullString
		sourceIP, userAgent, metadata, rq sql.NullString
	)
	if err := rows.Scan(
		&e.ID, &e.Timestamp, &eventType, &severity, &outcome, &e.Actor.ID, &e.Actor.Type,
		&targetID, &targetType, &targetName, &sourceIP, &userAgent,
		&e.Action, &e.Description, &metadata, &rq,
	); err != nil {
		return nil, fmt.Errorf("failed to scan audit event: %w", err)
	}

	e.Timestamp = e.Timestamp.UTC()
	e.Type = EventType(eventType)
	e.Severity = Severity(severity)
	e.Outcome = Outcome(outcome)
	if targetID.Valid {
		e.Target = &Target{ID: targetID.String, Type: targetType.String, Name: targetName.String}
	}
	e.Source = Source{IPAddress: sourceIP.String, UserAgent: userAgent.String}
	if metadata.Valid && metadata.String != "" {
		e.Metadata = json.RawMessage(metadata.String)
	}
	e.RequestID = rq.String
	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
