// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package sync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/vitalsync/internal/models"
)

// Scheduler decides which integrations a batch sync should process.
// It never fetches data itself.
type Scheduler struct {
	store IntegrationStore
}

// NewScheduler creates a scheduler over store.
func NewScheduler(store IntegrationStore) *Scheduler {
	return &Scheduler{store: store}
}

// SelectDueIntegrations returns up to limit syncable integrations that were
// never synced or last synced before staleBefore. Never-synced come first,
// then oldest-synced. The store query does the heavy lifting; the result is
// filtered and ordered again here so the contract holds for any store.
func (s *Scheduler) SelectDueIntegrations(ctx context.Context, staleBefore time.Time, limit int) ([]models.Integration, error) {
	if limit <= 0 {
		return []models.Integration{}, nil
	}
	candidates, err := s.store.FindDueForSync(ctx, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("find integrations due for sync: %w", err)
	}
	return selectDue(candidates, staleBefore, limit), nil
}

// selectDue filters and orders candidates.
func selectDue(candidates []models.Integration, staleBefore time.Time, limit int) []models.Integration {
	due := make([]models.Integration, 0, len(candidates))
	for i := range candidates {
		if isDue(&candidates[i], staleBefore) {
			due = append(due, candidates[i])
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i].LastSyncedAt, due[j].LastSyncedAt
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		if !due[i].CreatedAt.Equal(due[j].CreatedAt) {
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		}
		return due[i].ID < due[j].ID
	})

	if len(due) > limit {
		due = due[:limit]
	}
	return due
}

func isDue(integ *models.Integration, staleBefore time.Time) bool {
	if !integ.Status.Syncable() {
		return false
	}
	return integ.LastSyncedAt == nil || integ.LastSyncedAt.Before(staleBefore)
}

// syncRange computes the inclusive day range for one sync. The day of the
// last sync is fetched again so a partially recorded day gets completed.
func syncRange(lastSyncedAt *time.Time, now time.Time, lookbackDays, maxRangeDays int) (time.Time, time.Time) {
	end := models.Day(now)
	var start time.Time
	if lastSyncedAt != nil {
		start = models.Day(*lastSyncedAt)
	} else {
		start = end.AddDate(0, 0, -lookbackDays)
	}
	if start.After(end) {
		start = end
	}
	if maxRangeDays > 0 {
		if earliest := end.AddDate(0, 0, -(maxRangeDays - 1)); start.Before(earliest) {
			start = earliest
		}
	}
	return start, end
}
