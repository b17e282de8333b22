// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

// Package config provides configuration management for VitalSync.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in defaults for every setting
//  2. Config File: optional YAML file (config.yaml or CONFIG_PATH)
//  3. Environment Variables: override any mapped setting
//
// Config is immutable after LoadWithKoanf() and safe for concurrent reads.
package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Providers  ProvidersConfig  `koanf:"providers"`
	OAuth      OAuthConfig      `koanf:"oauth"`
	Sync       SyncConfig       `koanf:"sync"`
	Database   DatabaseConfig   `koanf:"database"`
	StateStore StateStoreConfig `koanf:"state_store"`
	Server     ServerConfig     `koanf:"server"`
	Security   SecurityConfig   `koanf:"security"`
	NATS       NATSConfig       `koanf:"nats"`
	WAL        WALConfig        `koanf:"wal"`
	Audit      AuditConfig      `koanf:"audit"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ProvidersConfig holds OAuth application settings for each health data provider.
type ProvidersConfig struct {
	Strava ProviderConfig `koanf:"strava"`
	Fitbit ProviderConfig `koanf:"fitbit"`
	LoseIt ProviderConfig `koanf:"loseit"`
}

// ProviderConfig describes one registered OAuth application.
// The URL fields default to the provider's production endpoints and
// exist so tests and staging deployments can point elsewhere.
type ProviderConfig struct {
	Enabled      bool   `koanf:"enabled"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RedirectURI  string `koanf:"redirect_uri"`
	Scopes       string `koanf:"scopes"`
	AuthURL      string `koanf:"auth_url"`
	TokenURL     string `koanf:"token_url"`
	RevokeURL    string `koanf:"revoke_url"`
	APIURL       string `koanf:"api_url"`
}

// OAuthConfig holds authorization-flow settings.
type OAuthConfig struct {
	// StateTTL bounds how long an authorization URL's state nonce stays valid.
	StateTTL time.Duration `koanf:"state_ttl"`
}

// SyncConfig holds synchronization settings.
type SyncConfig struct {
	SchedulerEnabled        bool          `koanf:"scheduler_enabled"`
	Interval                time.Duration `koanf:"interval"`
	Staleness               time.Duration `koanf:"staleness"`
	BatchLimit              int           `koanf:"batch_limit"`
	Concurrency             int           `koanf:"concurrency"`
	RefreshLookaheadMinutes int           `koanf:"refresh_lookahead_minutes"`
	InitialLookbackDays     int           `koanf:"initial_lookback_days"`
	MaxRangeDays            int           `koanf:"max_range_days"`
	RetryAttempts           int           `koanf:"retry_attempts"`
	RetryDelay              time.Duration `koanf:"retry_delay"`
	HTTPTimeout             time.Duration `koanf:"http_timeout"`
	StravaMaxPages          int           `koanf:"strava_max_pages"`
	FitbitDayDelay          time.Duration `koanf:"fitbit_day_delay"`
}

// RefreshLookahead returns the token refresh window as a duration.
func (s SyncConfig) RefreshLookahead() time.Duration {
	return time.Duration(s.RefreshLookaheadMinutes) * time.Minute
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// StateStoreConfig selects where OAuth state nonces live.
type StateStoreConfig struct {
	Backend         string        `koanf:"backend"` // memory or badger
	Path            string        `koanf:"path"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SecurityConfig holds API authentication and abuse protection settings.
type SecurityConfig struct {
	JWTSecret         string        `koanf:"jwt_secret"`
	CredentialKey     string        `koanf:"credential_key"`
	AdminSubjects     []string      `koanf:"admin_subjects"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// EncryptionSecret returns the secret credential encryption keys derive from.
// CredentialKey wins when set so the JWT secret can rotate independently.
func (s SecurityConfig) EncryptionSecret() string {
	if s.CredentialKey != "" {
		return s.CredentialKey
	}
	return s.JWTSecret
}

// NATSConfig holds event publishing settings.
type NATSConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url"`
	Topic         string        `koanf:"topic"`
	JetStream     bool          `koanf:"jetstream"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// WALConfig controls the BadgerDB write-ahead log that holds sync events
// until NATS accepts them. Only used when NATS is enabled.
type WALConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Path            string        `koanf:"path"`
	SyncWrites      bool          `koanf:"sync_writes"`
	RetryInterval   time.Duration `koanf:"retry_interval"`
	MaxRetries      int           `koanf:"max_retries"`
	EntryTTL        time.Duration `koanf:"entry_ttl"`
	CompactInterval time.Duration `koanf:"compact_interval"`
}

// AuditConfig controls the audit trail of integration and goal changes.
type AuditConfig struct {
	Enabled         bool          `koanf:"enabled"`
	RetentionDays   int           `koanf:"retention_days"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	BufferSize      int           `koanf:"buffer_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
