// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package provider

import (
	"fmt"

	"github.com/tomtom215/vitalsync/internal/config"
	"github.com/tomtom215/vitalsync/internal/models"
)

// Registry maps providers to their adapters. It is populated at startup and
// read-only afterwards, so lookups need no locking.
type Registry struct {
	adapters map[models.Provider]Adapter
}

// NewRegistry builds a circuit-breaker-wrapped adapter for every enabled provider.
func NewRegistry(cfg *config.Config) *Registry {
	opts := Options{
		HTTPTimeout: cfg.Sync.HTTPTimeout,
		StateTTL:    cfg.OAuth.StateTTL,
	}

	r := &Registry{adapters: make(map[models.Provider]Adapter)}
	if cfg.Providers.Strava.Enabled {
		r.Register(NewCircuitBreakerAdapter(NewStravaAdapter(cfg.Providers.Strava, opts, cfg.Sync.StravaMaxPages)))
	}
	if cfg.Providers.Fitbit.Enabled {
		r.Register(NewCircuitBreakerAdapter(NewFitbitAdapter(cfg.Providers.Fitbit, opts, cfg.Sync.FitbitDayDelay)))
	}
	if cfg.Providers.LoseIt.Enabled {
		r.Register(NewCircuitBreakerAdapter(NewLoseItAdapter(cfg.Providers.LoseIt, opts)))
	}
	return r
}

// NewRegistryWith builds a registry from explicit adapters.
func NewRegistryWith(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.Provider]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for a.Provider(). Call only during startup.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Provider()] = a
}

// Get returns the adapter for p, or ErrUnsupportedProvider.
func (r *Registry) Get(p models.Provider) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, p)
	}
	return a, nil
}

// Providers lists the registered providers in models.AllProviders order.
func (r *Registry) Providers() []models.Provider {
	out := make([]models.Provider, 0, len(r.adapters))
	for _, p := range models.AllProviders() {
		if _, ok := r.adapters[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
