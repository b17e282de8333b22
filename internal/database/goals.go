// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/vitalsync/internal/models"
)

// GoalStore persists goals.
type GoalStore struct {
	db *DB
}

const goalColumns = `id, user_id, type, title, target_value, start_value,
	start_date, end_date, status, created_at, updated_at`

// Create inserts goal, generating an ID when it has none.
func (s *GoalStore) Create(ctx context.Context, goal *models.Goal) error {
	if goal.ID == "" {
		goal.ID = uuid.New().String()
	}
	if goal.Status == "" {
		goal.Status = models.GoalActive
	}
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = time.Now().UTC()
	}
	if goal.UpdatedAt.IsZero() {
		goal.UpdatedAt = goal.CreatedAt
	}

	_, err := s.db.conn.ExecContext(ctx, `INSERT INTO goals (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		goal.ID, goal.UserID, string(goal.Type), goal.Title, goal.TargetValue, nullableFloat(goal.StartValue),
		goal.StartDate.UTC(), goal.EndDate.UTC(), string(goal.Status), goal.CreatedAt.UTC(), goal.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}
	return nil
}

// FindByID returns the goal or models.ErrGoalNotFound.
func (s *GoalStore) FindByID(ctx context.Context, id string) (*models.Goal, error) {
	row := s.db.conn.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id)
	goal, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("goal %s: %w", id, models.ErrGoalNotFound)
	}
	return goal, err
}

// FindActiveByUser lists the user's ACTIVE goals, newest first.
func (s *GoalStore) FindActiveByUser(ctx context.Context, userID string) ([]models.Goal, error) {
	rows, err := s.db.conn.QueryContext(ctx, `SELECT `+goalColumns+` FROM goals
		WHERE user_id = ? AND status = ?
		ORDER BY created_at DESC, id`, userID, string(models.GoalActive))
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer closeWithLog(rows, "goal rows")

	out := make([]models.Goal, 0)
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *goal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating goals: %w", err)
	}
	return out, nil
}

func scanGoal(row rowScanner) (*models.Goal, error) {
	var (
		goal             models.Goal
		goalType, status string
		startValue       sql.NullFloat64
	)
	err := row.Scan(&goal.ID, &goal.UserID, &goalType, &goal.Title, &goal.TargetValue, &startValue,
		&goal.StartDate, &goal.EndDate, &status, &goal.CreatedAt, &goal.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan goal: %w", err)
	}

	goal.Type = models.GoalType(goalType)
	goal.Status = models.GoalStatus(status)
	goal.StartValue = floatPtr(startValue)
	goal.StartDate = goal.StartDate.UTC()
	goal.EndDate = goal.EndDate.UTC()
	goal.CreatedAt = goal.CreatedAt.UTC()
	goal.UpdatedAt = goal.UpdatedAt.UTC()
	return &goal, nil
}
