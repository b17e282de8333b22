// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

type mockSyncManager struct {
	startErr error
	stopErr  error
	started  chan struct{}
	stopped  atomic.Bool
}

func newMockSyncManager() *mockSyncManager {
	return &mockSyncManager{started: make(chan struct{}, 1)}
}

func (m *mockSyncManager) Start(context.Context) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.started <- struct{}{}
	return nil
}

func (m *mockSyncManager) Stop() error {
	m.stopped.Store(true)
	return m.stopErr
}

var _ suture.Service = (*SyncSchedulerService)(nil)

func TestSyncSchedulerService(t *testing.T) {
	t.Run("starts and stops the manager", func(t *testing.T) {
		mgr := newMockSyncManager()
		svc := NewSyncSchedulerService(mgr)
		ctx, cancel := context.WithCancel(context.Background())

		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()

		select {
		case <-mgr.started:
		case <-time.After(time.Second):
			t.Fatal("manager was not started")
		}
		cancel()

		if err := <-errCh; !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
		if !mgr.stopped.Load() {
			t.Error("manager was not stopped")
		}
	})

	t.Run("start failure is returned for restart", func(t *testing.T) {
		mgr := newMockSyncManager()
		mgr.startErr = errors.New("sync manager is already running")

		err := NewSyncSchedulerService(mgr).Serve(context.Background())
		if !errors.Is(err, mgr.startErr) {
			t.Errorf("Serve() = %v, want wrapping %v", err, mgr.startErr)
		}
		if mgr.stopped.Load() {
			t.Error("Stop called after failed Start")
		}
	})

	t.Run("stop failure is returned", func(t *testing.T) {
		mgr := newMockSyncManager()
		mgr.stopErr = errors.New("sync manager is not running")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := NewSyncSchedulerService(mgr).Serve(ctx)
		if !errors.Is(err, mgr.stopErr) {
			t.Errorf("Serve() = %v, want wrapping %v", err, mgr.stopErr)
		}
	})
}
