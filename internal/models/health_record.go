// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// DateLayout is the calendar-day format used by providers and storage keys.
const DateLayout = "2006-01-02"

// HealthRecord is the canonical daily record every provider adapter emits.
// Records are keyed by (UserID, Provider, Date); a later sync of the same
// day replaces the earlier one.
type HealthRecord struct {
	UserID   string    `json:"user_id"`
	Provider Provider  `json:"provider"`
	Date     time.Time `json:"date"`

	Weight           *float64 `json:"weight,omitempty"` // kg
	Steps            *int     `json:"steps,omitempty"`
	CaloriesBurned   *float64 `json:"calories_burned,omitempty"`
	CaloriesIntake   *float64 `json:"calories_intake,omitempty"`
	ExerciseMinutes  *float64 `json:"exercise_minutes,omitempty"`
	ActiveMinutes    *float64 `json:"active_minutes,omitempty"`
	SleepMinutes     *float64 `json:"sleep_minutes,omitempty"`
	HeartRate        *float64 `json:"heart_rate,omitempty"`
	RestingHeartRate *float64 `json:"resting_heart_rate,omitempty"`
	DistanceMeters   *float64 `json:"distance_meters,omitempty"`
	WaterMilliliters *float64 `json:"water_ml,omitempty"`

	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
}

// Metric names one optional field of HealthRecord.
type Metric string

const (
	MetricWeight           Metric = "weight"
	MetricSteps            Metric = "steps"
	MetricCaloriesBurned   Metric = "calories_burned"
	MetricCaloriesIntake   Metric = "calories_intake"
	MetricExerciseMinutes  Metric = "exercise_minutes"
	MetricActiveMinutes    Metric = "active_minutes"
	MetricSleepMinutes     Metric = "sleep_minutes"
	MetricHeartRate        Metric = "heart_rate"
	MetricRestingHeartRate Metric = "resting_heart_rate"
	MetricDistanceMeters   Metric = "distance_meters"
	MetricWaterMilliliters Metric = "water_ml"
)

// AllMetrics lists every metric field.
func AllMetrics() []Metric {
	return []Metric{
		MetricWeight, MetricSteps, MetricCaloriesBurned, MetricCaloriesIntake,
		MetricExerciseMinutes, MetricActiveMinutes, MetricSleepMinutes,
		MetricHeartRate, MetricRestingHeartRate, MetricDistanceMeters, MetricWaterMilliliters,
	}
}

// Value returns the metric's value and whether the provider reported it.
func (r *HealthRecord) Value(m Metric) (float64, bool) {
	if m == MetricSteps {
		if r.Steps == nil {
			return 0, false
		}
		return float64(*r.Steps), true
	}
	p := r.floatField(m)
	if p == nil {
		return 0, false
	}
	return *p, true
}

func (r *HealthRecord) floatField(m Metric) *float64 {
	switch m {
	case MetricWeight:
		return r.Weight
	case MetricCaloriesBurned:
		return r.CaloriesBurned
	case MetricCaloriesIntake:
		return r.CaloriesIntake
	case MetricExerciseMinutes:
		return r.ExerciseMinutes
	case MetricActiveMinutes:
		return r.ActiveMinutes
	case MetricSleepMinutes:
		return r.SleepMinutes
	case MetricHeartRate:
		return r.HeartRate
	case MetricRestingHeartRate:
		return r.RestingHeartRate
	case MetricDistanceMeters:
		return r.DistanceMeters
	case MetricWaterMilliliters:
		return r.WaterMilliliters
	default:
		return nil
	}
}

// HasMetrics reports whether at least one metric is populated.
// Adapters drop records for which this is false.
func (r *HealthRecord) HasMetrics() bool {
	for _, m := range AllMetrics() {
		if _, ok := r.Value(m); ok {
			return true
		}
	}
	return false
}

// DateKey returns the record's calendar day as YYYY-MM-DD.
func (r *HealthRecord) DateKey() string {
	return r.Date.Format(DateLayout)
}

// Day truncates t to midnight UTC of its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string (or a longer timestamp starting with one)
// into midnight UTC.
func ParseDay(s string) (time.Time, error) {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
