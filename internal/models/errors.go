// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package models

import (
	"errors"
	"fmt"
)

var (
	// ErrIntegrationNotFound matches any *IntegrationNotFoundError.
	ErrIntegrationNotFound = errors.New("integration not found")

	// ErrDuplicateIntegration matches any *DuplicateIntegrationError.
	ErrDuplicateIntegration = errors.New("integration already exists")

	// ErrGoalNotFound is returned when a goal id does not exist.
	ErrGoalNotFound = errors.New("goal not found")

	// ErrUnsupportedGoalType matches any *UnsupportedGoalTypeError.
	ErrUnsupportedGoalType = errors.New("unsupported goal type")
)

// IntegrationNotFoundError reports an unknown integration id.
type IntegrationNotFoundError struct {
	ID string
}

func (e *IntegrationNotFoundError) Error() string {
	return fmt.Sprintf("integration %s not found", e.ID)
}

// Is lets errors.Is match ErrIntegrationNotFound.
func (e *IntegrationNotFoundError) Is(target error) bool {
	return target == ErrIntegrationNotFound
}

// DuplicateIntegrationError reports a second integration for the same user and provider.
type DuplicateIntegrationError struct {
	UserID   string
	Provider Provider
}

func (e *DuplicateIntegrationError) Error() string {
	return fmt.Sprintf("user %s already has a %s integration", e.UserID, e.Provider)
}

// Is lets errors.Is match ErrDuplicateIntegration.
func (e *DuplicateIntegrationError) Is(target error) bool {
	return target == ErrDuplicateIntegration
}

// UnsupportedGoalTypeError reports a goal type no strategy handles.
type UnsupportedGoalTypeError struct {
	Type GoalType
}

func (e *UnsupportedGoalTypeError) Error() string {
	return fmt.Sprintf("unsupported goal type %q", string(e.Type))
}

// Is lets errors.Is match ErrUnsupportedGoalType.
func (e *UnsupportedGoalTypeError) Is(target error) bool {
	return target == ErrUnsupportedGoalType
}
