// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/vitalsync/internal/config"
	"github.com/tomtom215/vitalsync/internal/logging"
)

// DB wraps the DuckDB connection. The stores built on it implement the
// persistence interfaces of the sync and goals packages.
type DB struct {
	conn      *sql.DB
	cfg       *config.DatabaseConfig
	encryptor *config.CredentialEncryptor
}

// New opens the database at cfg.Path (":memory:" for an ephemeral one) and
// creates the schema. OAuth tokens are sealed with encryptor before they
// are written.
func New(cfg *config.DatabaseConfig, encryptor *config.CredentialEncryptor) (*DB, error) {
	if encryptor == nil {
		return nil, errors.New("credential encryptor is required")
	}

	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	connStr := fmt.Sprintf("%s?threads=%d", cfg.Path, numThreads)
	if cfg.MaxMemory != "" {
		connStr += "&max_memory=" + cfg.MaxMemory
	}

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg, encryptor: encryptor}
	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Str("max_memory", cfg.MaxMemory).
		Msg("Database ready")
	return db, nil
}

// Conn returns the underlying connection pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Integrations returns the integration store.
func (db *DB) Integrations() *IntegrationStore {
	return &IntegrationStore{db: db}
}

// HealthRecords returns the health record store.
func (db *DB) HealthRecords() *HealthRecordStore {
	return &HealthRecordStore{db: db}
}

// Goals returns the goal store.
func (db *DB) Goals() *GoalStore {
	return &GoalStore{db: db}
}
