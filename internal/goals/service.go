// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package goals

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/vitalsync/internal/logging"
	"github.com/tomtom215/vitalsync/internal/models"
)

// GoalStore persists goals.
type GoalStore interface {
	FindByID(ctx context.Context, id string) (*models.Goal, error)
	FindActiveByUser(ctx context.Context, userID string) ([]models.Goal, error)
	Create(ctx context.Context, goal *models.Goal) error
}

// RecordReader reads persisted health records. QueryRange covers the
// inclusive day range [start, end].
type RecordReader interface {
	QueryRange(ctx context.Context, userID string, start, end time.Time) ([]models.HealthRecord, error)
}

// Service loads goals and their records and runs the engine.
type Service struct {
	goals   GoalStore
	records RecordReader
	engine  *Engine
	now     func() time.Time
}

// NewService creates a goal service with the built-in strategies.
func NewService(goals GoalStore, records RecordReader) *Service {
	return &Service{
		goals:   goals,
		records: records,
		engine:  NewEngine(),
		now:     time.Now,
	}
}

// Engine returns the service's engine, for registering extra strategies.
func (s *Service) Engine() *Engine {
	return s.engine
}

// GetGoalProgress computes the current progress of one goal.
func (s *Service) GetGoalProgress(ctx context.Context, goalID string) (*models.GoalProgress, error) {
	goal, err := s.goals.FindByID(ctx, goalID)
	if err != nil {
		return nil, err
	}
	return s.progress(ctx, goal)
}

// GetGoal returns one goal without evaluating it.
func (s *Service) GetGoal(ctx context.Context, goalID string) (*models.Goal, error) {
	return s.goals.FindByID(ctx, goalID)
}

// Progress evaluates an already loaded goal.
func (s *Service) Progress(ctx context.Context, goal *models.Goal) (*models.GoalProgress, error) {
	return s.progress(ctx, goal)
}

// ListActiveProgress computes progress for each of the user's active goals.
func (s *Service) ListActiveProgress(ctx context.Context, userID string) ([]models.GoalProgress, error) {
	active, err := s.goals.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list active goals: %w", err)
	}

	out := make([]models.GoalProgress, 0, len(active))
	for i := range active {
		p, err := s.progress(ctx, &active[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// CreateGoal validates goal, fills in server-side fields and stores it.
func (s *Service) CreateGoal(ctx context.Context, goal *models.Goal) error {
	if err := ValidateGoal(goal); err != nil {
		return err
	}

	now := s.now().UTC()
	goal.ID = uuid.NewString()
	goal.Status = models.GoalActive
	goal.CreatedAt = now
	goal.UpdatedAt = now
	if err := s.goals.Create(ctx, goal); err != nil {
		return fmt.Errorf("create goal: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("goal_id", goal.ID).
		Str("user_id", goal.UserID).
		Str("goal_type", string(goal.Type)).
		Msg("Goal created")
	return nil
}

// progress selects the records a goal is evaluated against: today's for
// daily goals, the window from the start date to now for trajectory goals.
func (s *Service) progress(ctx context.Context, goal *models.Goal) (*models.GoalProgress, error) {
	now := s.now()
	today := models.Day(now)

	start := today
	if goal.Type.IsTrajectory() {
		start = models.Day(goal.StartDate)
		if start.After(today) {
			start = today
		}
	}

	records, err := s.records.QueryRange(ctx, goal.UserID, start, today)
	if err != nil {
		return nil, fmt.Errorf("query health records: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.After(records[j].Date)
	})
	if !goal.Type.IsTrajectory() {
		records = RecordsForDay(records, today)
	}

	return s.engine.Calculate(goal, records, now)
}
