// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package models

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestHealthRecord_HasMetrics(t *testing.T) {
	empty := HealthRecord{UserID: "u1", Provider: ProviderFitbit, Date: Day(time.Now())}
	if empty.HasMetrics() {
		t.Error("record without metrics reported HasMetrics() = true")
	}

	zeroSteps := empty
	zeroSteps.Steps = IntPtr(0)
	if !zeroSteps.HasMetrics() {
		t.Error("a reported zero is still a metric")
	}

	water := empty
	water.WaterMilliliters = Float64Ptr(500)
	if !water.HasMetrics() {
		t.Error("water-only record reported HasMetrics() = false")
	}
}

func TestHealthRecord_Value(t *testing.T) {
	r := HealthRecord{Steps: IntPtr(8000), SleepMinutes: Float64Ptr(420)}

	if v, ok := r.Value(MetricSteps); !ok || v != 8000 {
		t.Errorf("Value(steps) = %v, %v; want 8000, true", v, ok)
	}
	if v, ok := r.Value(MetricSleepMinutes); !ok || v != 420 {
		t.Errorf("Value(sleep) = %v, %v; want 420, true", v, ok)
	}
	if _, ok := r.Value(MetricWeight); ok {
		t.Error("Value(weight) reported a missing metric")
	}
	if _, ok := r.Value(Metric("unknown")); ok {
		t.Error("Value(unknown) reported a value")
	}
}

func TestDayAndParseDay(t *testing.T) {
	ts := time.Date(2024, 3, 9, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	if got := Day(ts); !got.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Day(%v) = %v, want 2024-03-10 UTC", ts, got)
	}

	for _, in := range []string{"2024-03-10", "2024-03-10T07:15:00Z"} {
		got, err := ParseDay(in)
		if err != nil {
			t.Fatalf("ParseDay(%q) error = %v", in, err)
		}
		if got.Format(DateLayout) != "2024-03-10" {
			t.Errorf("ParseDay(%q) = %v", in, got)
		}
	}
	if _, err := ParseDay("not-a-date"); err == nil {
		t.Error("ParseDay(invalid) returned nil error")
	}
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    Provider
		wantErr bool
	}{
		{"strava", ProviderStrava, false},
		{"FITBIT", ProviderFitbit, false},
		{"Lose It!", ProviderLoseIt, false},
		{"lose_it", ProviderLoseIt, false},
		{"garmin", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProvider(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseProvider(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseProvider(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOAuthCredentials_ExpiresWithin(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	creds := OAuthCredentials{ExpiresAt: now.Add(4 * time.Minute)}

	if !creds.ExpiresWithin(now, 5*time.Minute) {
		t.Error("token expiring in 4m should be inside a 5m window")
	}
	if creds.ExpiresWithin(now, 3*time.Minute) {
		t.Error("token expiring in 4m should be outside a 3m window")
	}
}

func TestIntegrationStatus_Syncable(t *testing.T) {
	want := map[IntegrationStatus]bool{
		IntegrationActive:  true,
		IntegrationError:   true,
		IntegrationExpired: false,
		IntegrationRevoked: false,
	}
	for status, syncable := range want {
		if got := status.Syncable(); got != syncable {
			t.Errorf("%s.Syncable() = %v, want %v", status, got, syncable)
		}
	}
}

func TestErrorTaxonomy(t *testing.T) {
	wrapped := fmt.Errorf("load: %w", &IntegrationNotFoundError{ID: "abc"})
	if !errors.Is(wrapped, ErrIntegrationNotFound) {
		t.Error("wrapped IntegrationNotFoundError should match ErrIntegrationNotFound")
	}
	var notFound *IntegrationNotFoundError
	if !errors.As(wrapped, &notFound) || notFound.ID != "abc" {
		t.Errorf("errors.As() = %v", notFound)
	}

	dup := &DuplicateIntegrationError{UserID: "u1", Provider: ProviderStrava}
	if !errors.Is(dup, ErrDuplicateIntegration) {
		t.Error("DuplicateIntegrationError should match ErrDuplicateIntegration")
	}
	if errors.Is(dup, ErrIntegrationNotFound) {
		t.Error("DuplicateIntegrationError should not match ErrIntegrationNotFound")
	}

	unsupported := &UnsupportedGoalTypeError{Type: "MEDITATION"}
	if !errors.Is(unsupported, ErrUnsupportedGoalType) {
		t.Error("UnsupportedGoalTypeError should match ErrUnsupportedGoalType")
	}
}

func TestGoalType_IsTrajectory(t *testing.T) {
	for _, gt := range AllGoalTypes() {
		want := gt == GoalWeightLoss || gt == GoalWeightGain
		if gt.IsTrajectory() != want {
			t.Errorf("%s.IsTrajectory() = %v, want %v", gt, gt.IsTrajectory(), want)
		}
	}
}
