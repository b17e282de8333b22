// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package goals

import (
	"fmt"
	"math"
	"strconv"

	"github.com/tomtom215/vitalsync/internal/models"
	"github.com/tomtom215/vitalsync/internal/validation"
)

// TargetRange is the realistic range for a goal type's target. For
// trajectory goals it bounds the change between start and target.
type TargetRange struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Unit string  `json:"unit"`
}

// TargetRanges is the rule table applied at goal creation.
var TargetRanges = map[models.GoalType]TargetRange{
	models.GoalWeightLoss:     {Min: 0.5, Max: 50, Unit: "kg"},
	models.GoalWeightGain:     {Min: 0.5, Max: 30, Unit: "kg"},
	models.GoalSteps:          {Min: 1000, Max: 50000, Unit: "steps/day"},
	models.GoalExercise:       {Min: 10, Max: 300, Unit: "min/day"},
	models.GoalCaloriesBurned: {Min: 100, Max: 5000, Unit: "kcal/day"},
	models.GoalCaloriesIntake: {Min: 1000, Max: 5000, Unit: "kcal/day"},
	models.GoalSleep:          {Min: 4, Max: 12, Unit: "h/day"},
	models.GoalWaterIntake:    {Min: 0.5, Max: 6, Unit: "L/day"},
}

// ValidateGoal checks goal's fields and its target against TargetRanges.
// Failures are *validation.RequestValidationError.
func ValidateGoal(goal *models.Goal) error {
	if verr := validation.ValidateStruct(goal); verr != nil {
		return verr
	}

	r, ok := TargetRanges[goal.Type]
	if !ok {
		return &models.UnsupportedGoalTypeError{Type: goal.Type}
	}

	if !goal.Type.IsTrajectory() {
		if goal.TargetValue < r.Min || goal.TargetValue > r.Max {
			return rangeError("TargetValue", goal.TargetValue, r)
		}
		return nil
	}

	// Without a start weight the change is only known once data arrives.
	if goal.StartValue == nil {
		return nil
	}
	start := *goal.StartValue
	if goal.Type == models.GoalWeightLoss && goal.TargetValue >= start {
		return validation.NewFieldError("TargetValue", "ltfield", "StartValue", goal.TargetValue,
			"TargetValue must be below StartValue for a weight loss goal")
	}
	if goal.Type == models.GoalWeightGain && goal.TargetValue <= start {
		return validation.NewFieldError("TargetValue", "gtfield", "StartValue", goal.TargetValue,
			"TargetValue must be above StartValue for a weight gain goal")
	}
	if change := math.Abs(goal.TargetValue - start); change < r.Min || change > r.Max {
		return rangeError("TargetValue", change, r)
	}
	return nil
}

func rangeError(field string, value float64, r TargetRange) error {
	param := formatFloat(r.Min) + "-" + formatFloat(r.Max)
	return validation.NewFieldError(field, "range", param, value,
		fmt.Sprintf("%s must be between %s and %s %s", field, formatFloat(r.Min), formatFloat(r.Max), r.Unit))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
