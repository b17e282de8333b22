// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

/*
Package models defines the data structures shared across VitalSync.

Key Components:

  - HealthRecord: one user's normalized metrics for one provider and one calendar day
  - Integration: a user's link to a provider, with OAuth credentials and sync status
  - Goal / GoalProgress: user goals and their derived, never-persisted progress view
  - Error taxonomy: typed errors shared by the stores, the sync manager and the goal engine

Every metric on HealthRecord is optional. A nil pointer means the provider
did not report the metric for that day; it never means zero.
*/
package models
