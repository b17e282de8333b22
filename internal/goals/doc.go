// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

// Package goals computes goal progress from synced health records.
//
// The Engine dispatches each goal to the Strategy registered for its type.
// Two families are built in:
//
//   - Trajectory goals (WEIGHT_LOSS, WEIGHT_GAIN) measure movement from a
//     start weight toward a target over the goal window, and compare it with
//     the progress expected for the elapsed time.
//   - Daily goals (STEPS, EXERCISE, CALORIES_BURNED, CALORIES_INTAKE, SLEEP,
//     WATER_INTAKE) compare a single day's value against a per-day target.
//
// Progress is derived on every read and never stored. Strategies never fail
// for missing data; a goal without records reports not_started at 0%.
//
// Daily strategies take the first record carrying their metric, so callers
// must pass only the evaluation day's records. RecordsForDay performs that
// filtering and Service.GetGoalProgress applies it.
//
// ValidateGoal enforces the realistic target ranges in TargetRanges at goal
// creation time. The engine itself accepts any target.
package goals
