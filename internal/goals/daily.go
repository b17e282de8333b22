// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package goals

import (
	"math"
	"time"

	"github.com/tomtom215/vitalsync/internal/models"
)

// dailyMetric maps a daily goal type to the record field it reads and the
// factor converting that field into the goal's unit.
type dailyMetric struct {
	metric models.Metric
	scale  float64
}

var dailyMetrics = map[models.GoalType]dailyMetric{
	models.GoalSteps:          {models.MetricSteps, 1},
	models.GoalExercise:       {models.MetricExerciseMinutes, 1},
	models.GoalCaloriesBurned: {models.MetricCaloriesBurned, 1},
	models.GoalCaloriesIntake: {models.MetricCaloriesIntake, 1},
	models.GoalSleep:          {models.MetricSleepMinutes, 1.0 / 60},       // hours
	models.GoalWaterIntake:    {models.MetricWaterMilliliters, 1.0 / 1000}, // liters
}

var dailyGoalTypes = []models.GoalType{
	models.GoalSteps,
	models.GoalExercise,
	models.GoalCaloriesBurned,
	models.GoalCaloriesIntake,
	models.GoalSleep,
	models.GoalWaterIntake,
}

// DailyStrategy compares one day's metric value with a per-day target.
type DailyStrategy struct {
	goalType models.GoalType
	metric   dailyMetric
}

// NewDailyStrategy returns the strategy for a daily goal type.
func NewDailyStrategy(goalType models.GoalType) *DailyStrategy {
	return &DailyStrategy{goalType: goalType, metric: dailyMetrics[goalType]}
}

// Supports implements Strategy.
func (s *DailyStrategy) Supports(goalType models.GoalType) bool {
	return goalType == s.goalType
}

// Calculate implements Strategy. The current value is taken from the first
// record that reports the metric; records must already be limited to the
// evaluation day.
func (s *DailyStrategy) Calculate(goal *models.Goal, records []models.HealthRecord, now time.Time) (*models.GoalProgress, error) {
	currentValue := 0.0
	for i := range records {
		if v, ok := records[i].Value(s.metric.metric); ok {
			currentValue = v * s.metric.scale
			break
		}
	}

	percentage := 0.0
	if goal.TargetValue > 0 {
		percentage = clampPercentage(currentValue / goal.TargetValue * 100)
	}

	return &models.GoalProgress{
		Percentage:     percentage,
		Status:         progressStatus(percentage, goal.EndDate, now),
		CurrentValue:   currentValue,
		TargetValue:    goal.TargetValue,
		StartValue:     goal.StartValue,
		RemainingValue: math.Max(0, goal.TargetValue-currentValue),
		RemainingDays:  remainingDays(goal.EndDate, now),
		IsOnTrack:      percentage > 0,
	}, nil
}

// RecordsForDay returns the records dated on the UTC calendar day of date,
// preserving order.
func RecordsForDay(records []models.HealthRecord, date time.Time) []models.HealthRecord {
	target := models.Day(date)
	out := make([]models.HealthRecord, 0, len(records))
	for _, r := range records {
		if models.Day(r.Date).Equal(target) {
			out = append(out, r)
		}
	}
	return out
}
