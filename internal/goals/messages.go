// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package goals

import (
	"fmt"

	"github.com/tomtom215/vitalsync/internal/models"
)

// messageTemplates holds the per-type wording. Verbs receive current,
// target and percentage in that order.
var messageTemplates = map[models.GoalType]string{
	models.GoalWeightLoss:     "Weight is %.1f kg, heading for %.1f kg (%.0f%% of the way)",
	models.GoalWeightGain:     "Weight is %.1f kg, building toward %.1f kg (%.0f%% of the way)",
	models.GoalSteps:          "%.0f of %.0f steps today (%.0f%%)",
	models.GoalExercise:       "%.0f of %.0f exercise minutes today (%.0f%%)",
	models.GoalCaloriesBurned: "%.0f of %.0f calories burned today (%.0f%%)",
	models.GoalCaloriesIntake: "%.0f of %.0f calories eaten today (%.0f%%)",
	models.GoalSleep:          "%.1f of %.1f hours slept (%.0f%%)",
	models.GoalWaterIntake:    "%.1f of %.1f liters of water today (%.0f%%)",
}

func progressMessage(goalType models.GoalType, p *models.GoalProgress) string {
	template, ok := messageTemplates[goalType]
	if !ok {
		template = "%.1f of %.1f (%.0f%%)"
	}
	msg := fmt.Sprintf(template, p.CurrentValue, p.TargetValue, p.Percentage)

	switch p.Status {
	case models.ProgressCompleted:
		return "Goal reached! " + msg
	case models.ProgressOverdue:
		return "Goal period ended. " + msg
	case models.ProgressNotStarted:
		return "Not started yet. " + msg
	}
	if !p.IsOnTrack {
		return msg + ", behind schedule"
	}
	return msg
}
