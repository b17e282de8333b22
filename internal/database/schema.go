// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

/*
schema.go - Database Schema Management

Tables:
  - integrations: one row per (user, provider) link, OAuth tokens sealed with
    AES-256-GCM in the *_encrypted columns
  - health_records: canonical daily records keyed by (user_id, provider, date);
    a later sync of the same day replaces the row
  - goals: user-defined targets; progress is derived and never stored

All timestamps are stored as UTC TIMESTAMP values. Columns that UPDATE
statements change are kept out of indexes.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

var tableCreationQueries = []string{
	`CREATE TABLE IF NOT EXISTS integrations (
		id VARCHAR PRIMARY KEY,
		user_id VARCHAR NOT NULL,
		provider VARCHAR NOT NULL,
		access_token_encrypted VARCHAR NOT NULL,
		refresh_token_encrypted VARCHAR,
		expires_at TIMESTAMP NOT NULL,
		scope VARCHAR,
		token_type VARCHAR,
		status VARCHAR NOT NULL,
		last_synced_at TIMESTAMP,
		sync_error_message VARCHAR,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (user_id, provider)
	)`,
	`CREATE TABLE IF NOT EXISTS health_records (
		user_id VARCHAR NOT NULL,
		provider VARCHAR NOT NULL,
		date DATE NOT NULL,
		weight DOUBLE,
		steps INTEGER,
		calories_burned DOUBLE,
		calories_intake DOUBLE,
		exercise_minutes DOUBLE,
		active_minutes DOUBLE,
		sleep_minutes DOUBLE,
		heart_rate DOUBLE,
		resting_heart_rate DOUBLE,
		distance_meters DOUBLE,
		water_ml DOUBLE,
		raw_payload VARCHAR,
		synced_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, provider, date)
	)`,
	`CREATE TABLE IF NOT EXISTS goals (
		id VARCHAR PRIMARY KEY,
		user_id VARCHAR NOT NULL,
		type VARCHAR NOT NULL,
		title VARCHAR NOT NULL,
		target_value DOUBLE NOT NULL,
		start_value DOUBLE,
		start_date TIMESTAMP NOT NULL,
		end_date TIMESTAMP NOT NULL,
		status VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
}

var indexCreationQueries = []string{
	`CREATE INDEX IF NOT EXISTS idx_health_records_user_date ON health_records(user_id, date)`,
	`CREATE INDEX IF NOT EXISTS idx_goals_user_status ON goals(user_id, status)`,
}

// initialize creates tables and indexes.
func (db *DB) initialize() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	for _, query := range indexCreationQueries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
