// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

// Package main is the entry point for the VitalSync server.
//
// VitalSync connects users' Strava, Fitbit and Lose It! accounts over OAuth,
// normalizes their daily activity, sleep, nutrition and weight data into one
// health record per user, provider and day, and evaluates fitness goals
// against those records.
//
// # Startup Order
//
//  1. Configuration (Koanf v2: defaults, config.yaml, environment)
//  2. Logging (zerolog)
//  3. DuckDB, the credential encryptor and the audit trail
//  4. OAuth state store (memory or BadgerDB)
//  5. Provider registry (each adapter behind a circuit breaker)
//  6. Sync manager and goal service
//  7. Event delivery: NATS via Watermill when NATS_ENABLED, optionally
//     behind the BadgerDB write-ahead log when WAL_ENABLED; otherwise the
//     sync manager broadcasts straight to the websocket hub
//  8. HTTP API (chi) and the suture supervisor tree
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains for
// SHUTDOWN_TIMEOUT, an in-flight batch sync is allowed to finish, and the
// database is closed last.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/vitalsync/internal/api"
	"github.com/tomtom215/vitalsync/internal/audit"
	"github.com/tomtom215/vitalsync/internal/auth"
	"github.com/tomtom215/vitalsync/internal/config"
	"github.com/tomtom215/vitalsync/internal/database"
	"github.com/tomtom215/vitalsync/internal/goals"
	"github.com/tomtom215/vitalsync/internal/logging"
	"github.com/tomtom215/vitalsync/internal/provider"
	"github.com/tomtom215/vitalsync/internal/supervisor"
	"github.com/tomtom215/vitalsync/internal/supervisor/services"
	"github.com/tomtom215/vitalsync/internal/sync"
	ws "github.com/tomtom215/vitalsync/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("VitalSync stopped with an error")
	}
}

//nolint:gocyclo // sequential setup steps
func run() error {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})
	logging.Info().
		Str("version", version).
		Str("db_path", cfg.Database.Path).
		Str("state_store", cfg.StateStore.Backend).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Bool("wal_enabled", cfg.WAL.Enabled).
		Msg("Starting VitalSync")

	encryptor, err := config.NewCredentialEncryptor(cfg.Security.EncryptionSecret())
	if err != nil {
		return fmt.Errorf("initialize credential encryption: %w", err)
	}

	db, err := database.New(&cfg.Database, encryptor)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	auditLogger, err := initAudit(db, cfg.Audit)
	if err != nil {
		return fmt.Errorf("initialize audit trail: %w", err)
	}
	defer func() {
		if err := auditLogger.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit logger")
		}
	}()

	states, err := auth.NewStateStore(cfg.StateStore)
	if err != nil {
		return fmt.Errorf("initialize OAuth state store: %w", err)
	}
	defer func() {
		if err := states.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing OAuth state store")
		}
	}()

	registry := provider.NewRegistry(cfg)
	if len(registry.Providers()) == 0 {
		logging.Warn().Msg("No providers enabled; set STRAVA_ENABLED, FITBIT_ENABLED or LOSEIT_ENABLED")
	}

	syncManager := sync.NewManager(cfg, db.Integrations(), db.HealthRecords(), registry, states)
	goalService := goals.NewService(db.Goals(), db.HealthRecords())
	hub := ws.NewHub()

	events, err := initEvents(cfg, syncManager, hub)
	if err != nil {
		return fmt.Errorf("initialize event delivery: %w", err)
	}
	defer events.Close()

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return fmt.Errorf("initialize JWT manager: %w", err)
	}
	authMW := auth.NewMiddleware(jwtManager, cfg.Security.AdminSubjects)

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (RATE_LIMIT_DISABLED=true)")
	}
	for _, origin := range cfg.Security.CORSOrigins {
		if origin == "*" {
			logging.Warn().Msg("CORS allows any origin (CORS_ORIGINS=*); set explicit origins in production")
			break
		}
	}

	handler := api.NewHandler(api.HandlerDeps{
		Sync:           syncManager,
		Goals:          goalService,
		DB:             db,
		Hub:            hub,
		Auth:           authMW,
		Audit:          auditLogger,
		AllowedOrigins: cfg.Security.CORSOrigins,
		Version:        version,
	})
	router := api.NewRouter(handler, authMW, api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(cfg.Security)))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddDataService(services.NewStateCleanupService(states, cfg.StateStore.CleanupInterval))
	if auditLogger != nil {
		tree.AddDataService(services.NewAuditRetentionService(auditLogger, cfg.Audit.CleanupInterval))
	}
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddMessagingService(services.NewSyncSchedulerService(syncManager))
	if events != nil {
		tree.AddMessagingService(services.NewForwarderService(events.forwarder))
		if events.wal != nil {
			tree.AddMessagingService(events.retry)
			tree.AddDataService(services.NewWALCompactionService(events.wal, cfg.WAL.CompactInterval))
		}
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logging.Info().Msg("Starting supervisor tree...")
	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	logging.Info().Msg("VitalSync stopped")
	return nil
}

// initAudit stores audit events in the application database. It returns a
// nil logger when auditing is disabled.
func initAudit(db *database.DB, cfg config.AuditConfig) (*audit.Logger, error) {
	if !cfg.Enabled {
		logging.Info().Msg("Audit trail disabled")
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := audit.NewDuckDBStore(db.Conn())
	if err := store.CreateTable(ctx); err != nil {
		return nil, err
	}
	logging.Info().Int("retention_days", cfg.RetentionDays).Msg("Audit trail enabled")
	return audit.NewLogger(store, cfg), nil
}
