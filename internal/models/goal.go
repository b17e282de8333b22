// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package models

import "time"

// GoalType selects how progress is computed.
type GoalType string

const (
	GoalWeightLoss     GoalType = "WEIGHT_LOSS"
	GoalWeightGain     GoalType = "WEIGHT_GAIN"
	GoalSteps          GoalType = "STEPS"
	GoalExercise       GoalType = "EXERCISE"
	GoalCaloriesBurned GoalType = "CALORIES_BURNED"
	GoalCaloriesIntake GoalType = "CALORIES_INTAKE"
	GoalSleep          GoalType = "SLEEP"
	GoalWaterIntake    GoalType = "WATER_INTAKE"
)

// AllGoalTypes lists every known goal type.
func AllGoalTypes() []GoalType {
	return []GoalType{
		GoalWeightLoss, GoalWeightGain, GoalSteps, GoalExercise,
		GoalCaloriesBurned, GoalCaloriesIntake, GoalSleep, GoalWaterIntake,
	}
}

// IsTrajectory reports whether the goal tracks movement from a start value
// toward a target over the goal window (as opposed to a daily threshold).
func (t GoalType) IsTrajectory() bool {
	return t == GoalWeightLoss || t == GoalWeightGain
}

// GoalStatus is the user-managed lifecycle status of a goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "ACTIVE"
	GoalCompleted GoalStatus = "COMPLETED"
	GoalCancelled GoalStatus = "CANCELLED"
	GoalPaused    GoalStatus = "PAUSED"
)

// Goal is a user-defined target.
type Goal struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Type        GoalType   `json:"type" validate:"required,goaltype"`
	Title       string     `json:"title" validate:"required,max=200"`
	TargetValue float64    `json:"target_value" validate:"gt=0"`
	StartValue  *float64   `json:"start_value,omitempty" validate:"omitempty,gt=0"`
	StartDate   time.Time  `json:"start_date" validate:"required"`
	EndDate     time.Time  `json:"end_date" validate:"required,gtfield=StartDate"`
	Status      GoalStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ProgressStatus is the derived state of a goal at evaluation time.
type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not_started"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
	ProgressOverdue    ProgressStatus = "overdue"
)

// GoalProgress is computed on every read and never persisted.
type GoalProgress struct {
	GoalID         string         `json:"goal_id"`
	GoalType       GoalType       `json:"goal_type"`
	Percentage     float64        `json:"percentage"`
	Status         ProgressStatus `json:"status"`
	CurrentValue   float64        `json:"current_value"`
	TargetValue    float64        `json:"target_value"`
	StartValue     *float64       `json:"start_value,omitempty"`
	RemainingValue float64        `json:"remaining_value"`
	RemainingDays  int            `json:"remaining_days"`
	IsOnTrack      bool           `json:"is_on_track"`
	Message        string         `json:"message"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}
