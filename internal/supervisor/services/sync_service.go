// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package services

import (
	"context"
	"fmt"
)

// StartStopManager is satisfied by *sync.Manager.
type StartStopManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SyncSchedulerService runs the sync manager's periodic batch loop.
//
// Stop waits for an in-flight batch, so a supervisor shutdown never cuts an
// integration's sync off between the fetch and the upsert.
type SyncSchedulerService struct {
	manager StartStopManager
	name    string
}

// NewSyncSchedulerService wraps manager.
func NewSyncSchedulerService(manager StartStopManager) *SyncSchedulerService {
	return &SyncSchedulerService{manager: manager, name: "sync-scheduler"}
}

// Serve implements suture.Service.
func (s *SyncSchedulerService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("sync scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("sync scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

func (s *SyncSchedulerService) String() string {
	return s.name
}
