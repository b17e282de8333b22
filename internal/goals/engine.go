// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package goals

import (
	"math"
	"sync"
	"time"

	"github.com/tomtom215/vitalsync/internal/logging"
	"github.com/tomtom215/vitalsync/internal/metrics"
	"github.com/tomtom215/vitalsync/internal/models"
)

const day = 24 * time.Hour

// onTrackRatio is the share of time-expected progress a trajectory goal
// must reach to count as on track.
const onTrackRatio = 0.8

// Strategy computes progress for the goal types it supports.
type Strategy interface {
	// Supports reports whether the strategy handles goalType.
	Supports(goalType models.GoalType) bool

	// Calculate derives progress for goal from records as of now.
	// Records are ordered most recent first.
	Calculate(goal *models.Goal, records []models.HealthRecord, now time.Time) (*models.GoalProgress, error)
}

// Engine dispatches goals to registered strategies.
type Engine struct {
	mu         sync.RWMutex
	strategies []Strategy
}

// NewEngine returns an engine with the built-in strategies registered.
func NewEngine() *Engine {
	e := &Engine{}
	e.Register(NewTrajectoryStrategy(models.GoalWeightLoss))
	e.Register(NewTrajectoryStrategy(models.GoalWeightGain))
	for _, goalType := range dailyGoalTypes {
		e.Register(NewDailyStrategy(goalType))
	}
	return e
}

// Register adds a strategy. Strategies registered later take precedence.
func (e *Engine) Register(s Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies = append(e.strategies, s)
}

func (e *Engine) strategyFor(goalType models.GoalType) Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for i := len(e.strategies) - 1; i >= 0; i-- {
		if e.strategies[i].Supports(goalType) {
			return e.strategies[i]
		}
	}
	return nil
}

// Calculate computes progress for goal. A goal type without a registered
// strategy returns *models.UnsupportedGoalTypeError.
func (e *Engine) Calculate(goal *models.Goal, records []models.HealthRecord, now time.Time) (*models.GoalProgress, error) {
	strategy := e.strategyFor(goal.Type)
	if strategy == nil {
		logging.Warn().Str("goal_id", goal.ID).Str("goal_type", string(goal.Type)).Msg("No strategy registered for goal type")
		return nil, &models.UnsupportedGoalTypeError{Type: goal.Type}
	}

	progress, err := strategy.Calculate(goal, records, now)
	if err != nil {
		return nil, err
	}
	progress.GoalID = goal.ID
	progress.GoalType = goal.Type
	progress.Message = progressMessage(goal.Type, progress)

	metrics.RecordGoalCalculation(string(goal.Type), string(progress.Status))
	return progress, nil
}

// remainingDays is the number of whole or partial days left before endDate.
func remainingDays(endDate, now time.Time) int {
	return max(0, int(math.Ceil(float64(endDate.Sub(now))/float64(day))))
}

// daysElapsed is the number of whole days since startDate.
func daysElapsed(startDate, now time.Time) int {
	return max(0, int(math.Floor(float64(now.Sub(startDate))/float64(day))))
}

// totalDays is the goal window length in days, at least one.
func totalDays(startDate, endDate time.Time) int {
	return max(1, int(math.Ceil(float64(endDate.Sub(startDate))/float64(day))))
}

func clampPercentage(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(0, math.Min(100, p))
}

// progressStatus applies the status rules shared by every strategy.
func progressStatus(percentage float64, endDate, now time.Time) models.ProgressStatus {
	switch {
	case percentage >= 100:
		return models.ProgressCompleted
	case now.After(endDate):
		return models.ProgressOverdue
	case percentage > 0:
		return models.ProgressInProgress
	default:
		return models.ProgressNotStarted
	}
}
