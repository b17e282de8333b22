// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/vitalsync/internal/auth"
	"github.com/tomtom215/vitalsync/internal/goals"
	"github.com/tomtom215/vitalsync/internal/models"
)

// GoalValidationResponse is returned by POST /goals/validate.
type GoalValidationResponse struct {
	Valid       bool               `json:"valid"`
	TargetRange *goals.TargetRange `json:"target_range,omitempty"`
}

// CreateGoal validates and stores a goal for the caller.
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req CreateGoalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	goal, err := req.toGoal(auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.goals.CreateGoal(r.Context(), goal); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.audit.GoalCreated(r.Context(), r, goal)
	NewResponseWriter(w, r).Created(goal)
}

// ValidateGoal checks a goal against the validation rules without storing it.
func (h *Handler) ValidateGoal(w http.ResponseWriter, r *http.Request) {
	var req CreateGoalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	goal, err := req.toGoal(auth.UserID(r.Context()))
	if err == nil {
		err = goals.ValidateGoal(goal)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := GoalValidationResponse{Valid: true}
	if tr, ok := goals.TargetRanges[goal.Type]; ok {
		resp.TargetRange = &tr
	}
	NewResponseWriter(w, r).Success(resp)
}

// ListGoalProgress returns progress for each of the caller's active goals.
func (h *Handler) ListGoalProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.goals.ListActiveProgress(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if progress == nil {
		progress = []models.GoalProgress{}
	}
	NewResponseWriter(w, r).List(progress, len(progress))
}

// GoalProgress returns the current progress of one of the caller's goals.
func (h *Handler) GoalProgress(w http.ResponseWriter, r *http.Request) {
	goal, err := h.goals.GetGoal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !h.canAccess(r.Context(), goal.UserID) {
		NewResponseWriter(w, r).NotFound("Goal not found")
		return
	}

	progress, err := h.goals.Progress(r.Context(), goal)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(progress)
}
