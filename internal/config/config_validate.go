// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// minJWTSecretLength matches HS256's 256-bit key size.
const minJWTSecretLength = 32

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateOAuth(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateStateStore(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	if err := c.validateWAL(); err != nil {
		return err
	}
	if err := c.validateAudit(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateProviders() error {
	providers := map[string]ProviderConfig{
		"STRAVA": c.Providers.Strava,
		"FITBIT": c.Providers.Fitbit,
		"LOSEIT": c.Providers.LoseIt,
	}
	for name, p := range providers {
		if !p.Enabled {
			continue
		}
		if p.ClientID == "" {
			return fmt.Errorf("%s_CLIENT_ID is required when %s_ENABLED=true", name, name)
		}
		if p.ClientSecret == "" {
			return fmt.Errorf("%s_CLIENT_SECRET is required when %s_ENABLED=true", name, name)
		}
		for field, raw := range map[string]string{
			"REDIRECT_URI": p.RedirectURI,
			"AUTH_URL":     p.AuthURL,
			"TOKEN_URL":    p.TokenURL,
			"API_URL":      p.APIURL,
		} {
			if err := validateHTTPURL(raw); err != nil {
				return fmt.Errorf("%s_%s: %w", name, field, err)
			}
		}
	}
	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}

func (c *Config) validateOAuth() error {
	if c.OAuth.StateTTL <= 0 {
		return fmt.Errorf("OAUTH_STATE_TTL must be positive")
	}
	return nil
}

func (c *Config) validateSync() error {
	s := c.Sync
	if s.SchedulerEnabled && s.Interval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive when the scheduler is enabled")
	}
	if s.Staleness <= 0 {
		return fmt.Errorf("SYNC_STALENESS must be positive")
	}
	if s.BatchLimit < 1 {
		return fmt.Errorf("SYNC_BATCH_LIMIT must be at least 1")
	}
	if s.Concurrency < 1 {
		return fmt.Errorf("SYNC_CONCURRENCY must be at least 1")
	}
	if s.RefreshLookaheadMinutes < 0 {
		return fmt.Errorf("REFRESH_LOOKAHEAD_MINUTES must not be negative")
	}
	if s.InitialLookbackDays < 1 {
		return fmt.Errorf("SYNC_INITIAL_LOOKBACK must be at least 1 day")
	}
	if s.MaxRangeDays < 1 {
		return fmt.Errorf("SYNC_MAX_RANGE_DAYS must be at least 1")
	}
	if s.RetryAttempts < 0 {
		return fmt.Errorf("SYNC_RETRY_ATTEMPTS must not be negative")
	}
	if s.HTTPTimeout <= 0 {
		return fmt.Errorf("PROVIDER_HTTP_TIMEOUT must be positive")
	}
	if s.StravaMaxPages < 1 {
		return fmt.Errorf("STRAVA_MAX_PAGES must be at least 1")
	}
	if s.FitbitDayDelay < 0 {
		return fmt.Errorf("FITBIT_DAY_DELAY must not be negative")
	}
	return nil
}

func (c *Config) validateStateStore() error {
	if c.StateStore.CleanupInterval <= 0 {
		return fmt.Errorf("STATE_STORE_CLEANUP_INTERVAL must be positive")
	}
	switch c.StateStore.Backend {
	case "memory":
		return nil
	case "badger":
		if c.StateStore.Path == "" {
			return fmt.Errorf("STATE_STORE_PATH is required for the badger backend")
		}
		return nil
	default:
		return fmt.Errorf("STATE_STORE_BACKEND must be one of: memory, badger")
	}
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS must list explicit origins, wildcard is not allowed")
		}
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQS must be at least 1")
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
		}
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("NATS_URL is required when NATS_ENABLED=true")
	}
	if c.NATS.Topic == "" {
		return fmt.Errorf("NATS_TOPIC is required when NATS_ENABLED=true")
	}
	// JetStream streams are provisioned under the topic name, and stream
	// names cannot contain subject tokens.
	if c.NATS.JetStream && strings.ContainsAny(c.NATS.Topic, ".*> ") {
		return fmt.Errorf("NATS_TOPIC %q is not a valid JetStream stream name", c.NATS.Topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

func (c *Config) validateAudit() error {
	if !c.Audit.Enabled {
		return nil
	}
	if c.Audit.RetentionDays < 1 {
		return fmt.Errorf("AUDIT_RETENTION_DAYS must be at least 1, got %d", c.Audit.RetentionDays)
	}
	if c.Audit.CleanupInterval <= 0 {
		return fmt.Errorf("AUDIT_CLEANUP_INTERVAL must be positive")
	}
	if c.Audit.BufferSize < 1 {
		return fmt.Errorf("AUDIT_BUFFER_SIZE must be at least 1, got %d", c.Audit.BufferSize)
	}
	return nil
}

func (c *Config) validateWAL() error {
	w := c.WAL
	if !w.Enabled {
		return nil
	}
	if !c.NATS.Enabled {
		return fmt.Errorf("WAL_ENABLED requires NATS_ENABLED=true")
	}
	if w.Path == "" {
		return fmt.Errorf("WAL_PATH is required when WAL_ENABLED=true")
	}
	if w.RetryInterval <= 0 || w.CompactInterval <= 0 || w.EntryTTL <= 0 {
		return fmt.Errorf("WAL_RETRY_INTERVAL, WAL_COMPACT_INTERVAL and WAL_ENTRY_TTL must be positive")
	}
	if w.MaxRetries < 1 {
		return fmt.Errorf("WAL_MAX_RETRIES must be at least 1, got %d", w.MaxRetries)
	}
	return nil
}
