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

// TrajectoryStrategy tracks weight change from a start value toward a
// target across the goal window.
type TrajectoryStrategy struct {
	goalType models.GoalType
	// decreasing is true when progress means the value going down.
	decreasing bool
}

// NewTrajectoryStrategy returns the strategy for WEIGHT_LOSS or WEIGHT_GAIN.
func NewTrajectoryStrategy(goalType models.GoalType) *TrajectoryStrategy {
	return &TrajectoryStrategy{
		goalType:   goalType,
		decreasing: goalType == models.GoalWeightLoss,
	}
}

// Supports implements Strategy.
func (s *TrajectoryStrategy) Supports(goalType models.GoalType) bool {
	return goalType == s.goalType
}

// Calculate implements Strategy.
//
// The current value is the most recent weight. Without any weight it falls
// back to the start value, then to the target. A goal without a start value
// starts from the earliest weight supplied, or from the current value.
func (s *TrajectoryStrategy) Calculate(goal *models.Goal, records []models.HealthRecord, now time.Time) (*models.GoalProgress, error) {
	latest, earliest, found := weightBounds(records)

	var startValue float64
	switch {
	case goal.StartValue != nil:
		startValue = *goal.StartValue
	case found:
		startValue = earliest
	}

	currentValue := goal.TargetValue
	switch {
	case found:
		currentValue = latest
	case goal.StartValue != nil:
		currentValue = *goal.StartValue
	}
	if goal.StartValue == nil && !found {
		startValue = currentValue
	}

	delta := currentValue - startValue
	remaining := goal.TargetValue - currentValue
	if s.decreasing {
		delta = startValue - currentValue
		remaining = currentValue - goal.TargetValue
	}

	percentage := 0.0
	if totalNeeded := math.Abs(goal.TargetValue - startValue); totalNeeded > 0 {
		percentage = clampPercentage(delta / totalNeeded * 100)
	}

	elapsed := daysElapsed(goal.StartDate, now)
	total := totalDays(goal.StartDate, goal.EndDate)
	expected := math.Min(100, float64(elapsed)/float64(total)*100)

	status := progressStatus(percentage, goal.EndDate, now)
	progress := &models.GoalProgress{
		Percentage:     percentage,
		Status:         status,
		CurrentValue:   currentValue,
		TargetValue:    goal.TargetValue,
		StartValue:     models.Float64Ptr(startValue),
		RemainingValue: math.Max(0, remaining),
		RemainingDays:  remainingDays(goal.EndDate, now),
		IsOnTrack:      percentage >= onTrackRatio*expected,
	}
	if status == models.ProgressCompleted {
		completedAt := now
		progress.CompletedAt = &completedAt
	}
	return progress, nil
}

// weightBounds returns the most recent and the earliest weight by date.
func weightBounds(records []models.HealthRecord) (latest, earliest float64, found bool) {
	var latestDate, earliestDate time.Time
	for i := range records {
		w := records[i].Weight
		if w == nil {
			continue
		}
		d := records[i].Date
		if !found || d.After(latestDate) {
			latest, latestDate = *w, d
		}
		if !found || d.Before(earliestDate) {
			earliest, earliestDate = *w, d
		}
		found = true
	}
	return latest, earliest, found
}
