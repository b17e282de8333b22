// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package models

import (
	"fmt"
	"strings"
)

// Provider identifies a third-party health data source.
type Provider string

const (
	ProviderStrava Provider = "strava"
	ProviderFitbit Provider = "fitbit"
	ProviderLoseIt Provider = "loseit"
)

// AllProviders lists every supported provider in display order.
func AllProviders() []Provider {
	return []Provider{ProviderStrava, ProviderFitbit, ProviderLoseIt}
}

// ParseProvider accepts the canonical names plus common spellings
// ("Lose It!", "lose_it") and is case-insensitive.
func ParseProvider(s string) (Provider, error) {
	normalized := strings.NewReplacer(" ", "", "_", "", "-", "", "!", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch normalized {
	case "strava":
		return ProviderStrava, nil
	case "fitbit":
		return ProviderFitbit, nil
	case "loseit":
		return ProviderLoseIt, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

// DisplayName returns the provider's brand name.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderStrava:
		return "Strava"
	case ProviderFitbit:
		return "Fitbit"
	case ProviderLoseIt:
		return "Lose It!"
	default:
		return string(p)
	}
}

func (p Provider) String() string {
	return string(p)
}
