// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists config file locations in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/vitalsync/config.yaml",
	"/etc/vitalsync/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Strava: ProviderConfig{
				Enabled:   false,
				Scopes:    "read,activity:read_all",
				AuthURL:   "https://www.strava.com/oauth/authorize",
				TokenURL:  "https://www.strava.com/oauth/token",
				RevokeURL: "https://www.strava.com/oauth/deauthorize",
				APIURL:    "https://www.strava.com/api/v3",
			},
			Fitbit: ProviderConfig{
				Enabled:   false,
				Scopes:    "activity heartrate sleep weight profile",
				AuthURL:   "https://www.fitbit.com/oauth2/authorize",
				TokenURL:  "https://api.fitbit.com/oauth2/token",
				RevokeURL: "https://api.fitbit.com/oauth2/revoke",
				APIURL:    "https://api.fitbit.com",
			},
			LoseIt: ProviderConfig{
				Enabled:  false,
				Scopes:   "read",
				AuthURL:  "https://www.loseit.com/oauth/authorize",
				TokenURL: "https://api.loseit.com/oauth/token",
				APIURL:   "https://api.loseit.com",
			},
		},
		OAuth: OAuthConfig{
			StateTTL: 10 * time.Minute,
		},
		Sync: SyncConfig{
			SchedulerEnabled:        true,
			Interval:                15 * time.Minute,
			Staleness:               6 * time.Hour,
			BatchLimit:              50,
			Concurrency:             4,
			RefreshLookaheadMinutes: 5,
			InitialLookbackDays:     30,
			MaxRangeDays:            90,
			RetryAttempts:           3,
			RetryDelay:              2 * time.Second,
			HTTPTimeout:             30 * time.Second,
			StravaMaxPages:          10,
			FitbitDayDelay:          time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/vitalsync.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		StateStore: StateStoreConfig{
			Backend:         "badger",
			Path:            "/data/oauth-state",
			CleanupInterval: 5 * time.Minute,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{},
			AdminSubjects:   []string{},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		NATS: NATSConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			Topic:         "vitalsync.integration.synced",
			JetStream:     false,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		WAL: WALConfig{
			Enabled:         false,
			Path:            "/data/wal",
			SyncWrites:      true,
			RetryInterval:   30 * time.Second,
			MaxRetries:      100,
			EntryTTL:        24 * time.Hour,
			CompactInterval: 5 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:         true,
			RetentionDays:   90,
			CleanupInterval: 24 * time.Hour,
			BufferSize:      1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration with precedence ENV > File > Defaults
// and validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// STRAVA_CLIENT_ID -> providers.strava.client_id
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.admin_subjects",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names to koanf paths.
// Unmapped variables are ignored so the process environment cannot
// leak into configuration.
var envMappings = map[string]string{
	"strava_enabled":       "providers.strava.enabled",
	"strava_client_id":     "providers.strava.client_id",
	"strava_client_secret": "providers.strava.client_secret",
	"strava_redirect_uri":  "providers.strava.redirect_uri",
	"strava_api_url":       "providers.strava.api_url",
	"fitbit_enabled":       "providers.fitbit.enabled",
	"fitbit_client_id":     "providers.fitbit.client_id",
	"fitbit_client_secret": "providers.fitbit.client_secret",
	"fitbit_redirect_uri":  "providers.fitbit.redirect_uri",
	"fitbit_api_url":       "providers.fitbit.api_url",
	"loseit_enabled":       "providers.loseit.enabled",
	"loseit_client_id":     "providers.loseit.client_id",
	"loseit_client_secret": "providers.loseit.client_secret",
	"loseit_redirect_uri":  "providers.loseit.redirect_uri",
	"loseit_api_url":       "providers.loseit.api_url",

	"oauth_state_ttl": "oauth.state_ttl",

	"sync_scheduler_enabled":    "sync.scheduler_enabled",
	"sync_interval":             "sync.interval",
	"sync_staleness":            "sync.staleness",
	"sync_batch_limit":          "sync.batch_limit",
	"sync_concurrency":          "sync.concurrency",
	"refresh_lookahead_minutes": "sync.refresh_lookahead_minutes",
	"sync_initial_lookback":     "sync.initial_lookback_days",
	"sync_max_range_days":       "sync.max_range_days",
	"sync_retry_attempts":       "sync.retry_attempts",
	"sync_retry_delay":          "sync.retry_delay",
	"provider_http_timeout":     "sync.http_timeout",
	"strava_max_pages":          "sync.strava_max_pages",
	"fitbit_day_delay":          "sync.fitbit_day_delay",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"state_store_backend":          "state_store.backend",
	"state_store_path":             "state_store.path",
	"state_store_cleanup_interval": "state_store.cleanup_interval",

	"http_host":        "server.host",
	"http_port":        "server.port",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",

	"jwt_secret":         "security.jwt_secret",
	"credential_key":     "security.credential_key",
	"admin_subjects":     "security.admin_subjects",
	"cors_origins":       "security.cors_origins",
	"rate_limit_reqs":    "security.rate_limit_reqs",
	"rate_limit_window":  "security.rate_limit_window",
	"disable_rate_limit": "security.rate_limit_disabled",

	"nats_enabled":        "nats.enabled",
	"nats_url":            "nats.url",
	"nats_topic":          "nats.topic",
	"nats_jetstream":      "nats.jetstream",
	"nats_max_reconnects": "nats.max_reconnects",

	"wal_enabled":          "wal.enabled",
	"wal_path":             "wal.path",
	"wal_sync_writes":      "wal.sync_writes",
	"wal_retry_interval":   "wal.retry_interval",
	"wal_max_retries":      "wal.max_retries",
	"wal_entry_ttl":        "wal.entry_ttl",
	"wal_compact_interval": "wal.compact_interval",

	"audit_enabled":          "audit.enabled",
	"audit_retention_days":   "audit.retention_days",
	"audit_cleanup_interval": "audit.cleanup_interval",
	"audit_buffer_size":      "audit.buffer_size",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
