// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vitalsync/internal/models"
	"github.com/tomtom215/vitalsync/internal/validation"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 64 * 1024

// CreateGoalRequest is the body of POST /goals and /goals/validate.
// Dates are calendar days (YYYY-MM-DD, UTC).
type CreateGoalRequest struct {
	Type        models.GoalType `json:"type" validate:"required,goaltype"`
	Title       string          `json:"title" validate:"required,max=200"`
	TargetValue float64         `json:"target_value" validate:"gt=0"`
	StartValue  *float64        `json:"start_value,omitempty" validate:"omitempty,gt=0"`
	StartDate   string          `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string          `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// toGoal validates the request and converts it to a goal owned by userID.
// Goal-level rules (date order, target ranges) are checked by the goal
// service.
func (req *CreateGoalRequest) toGoal(userID string) (*models.Goal, error) {
	if verr := validation.ValidateStruct(req); verr != nil {
		return nil, verr
	}
	start, err := models.ParseDay(req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("parse start_date: %w", err)
	}
	end, err := models.ParseDay(req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("parse end_date: %w", err)
	}
	return &models.Goal{
		UserID:      userID,
		Type:        req.Type,
		Title:       req.Title,
		TargetValue: req.TargetValue,
		StartValue:  req.StartValue,
		StartDate:   start,
		EndDate:     end,
	}, nil
}

// decodeJSON decodes a bounded JSON body into dst, rejecting unknown fields.
// It writes the 400 response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		NewResponseWriter(w, r).BadRequest("Request body too large or unreadable")
		return false
	}
	if len(body) == 0 {
		NewResponseWriter(w, r).BadRequest("Request body is required")
		return false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		NewResponseWriter(w, r).BadRequest("Invalid JSON body: " + err.Error())
		return false
	}
	return true
}
