// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is built lazily and shared, so struct metadata
// is cached across requests. Two domain tags are registered on top of the
// built-in ones:
//
//   - goaltype: the value is a known models.GoalType
//   - provider: the value is a known models.Provider
//
// Failures come back as *RequestValidationError, which converts to the API's
// VALIDATION_ERROR shape through ToAPIError:
//
//	type CreateGoalRequest struct {
//	    Type        models.GoalType `validate:"required,goaltype"`
//	    TargetValue float64         `validate:"gt=0"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	    return
//	}
//
// Rules that span several fields or depend on lookup tables (for example the
// per-type goal target ranges) are checked by their owning package, which
// reports them through NewFieldError so callers see a single error shape.
package validation
