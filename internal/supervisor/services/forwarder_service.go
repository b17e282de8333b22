// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/vitalsync/internal/logging"
)

// EventForwarder is satisfied by *eventprocessor.Forwarder.
type EventForwarder interface {
	Run(ctx context.Context) error
	Close() error
}

// ForwarderService relays sync events from NATS to websocket clients.
//
// Run resubscribes on every restart. The subscriber is closed only when the
// supervisor shuts the service down.
type ForwarderService struct {
	forwarder EventForwarder
	name      string
}

// NewForwarderService wraps forwarder.
func NewForwarderService(forwarder EventForwarder) *ForwarderService {
	return &ForwarderService{forwarder: forwarder, name: "event-forwarder"}
}

// Serve implements suture.Service.
func (f *ForwarderService) Serve(ctx context.Context) error {
	err := f.forwarder.Run(ctx)
	if ctx.Err() != nil {
		if closeErr := f.forwarder.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("Failed to close event subscriber")
		}
		return ctx.Err()
	}
	if err == nil {
		return errors.New("event subscription closed")
	}
	return fmt.Errorf("event forwarder failed: %w", err)
}

func (f *ForwarderService) String() string {
	return f.name
}
