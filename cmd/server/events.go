// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package main

import (
	"fmt"

	"github.com/tomtom215/vitalsync/internal/config"
	"github.com/tomtom215/vitalsync/internal/eventprocessor"
	"github.com/tomtom215/vitalsync/internal/logging"
	"github.com/tomtom215/vitalsync/internal/sync"
	"github.com/tomtom215/vitalsync/internal/wal"
)

// eventSink is the part of *sync.Manager that routes sync events.
type eventSink interface {
	SetEventPublisher(publisher sync.EventPublisher)
	SetBroadcaster(hub sync.Broadcaster)
}

// eventComponents holds the NATS side of event delivery. wal and retry are
// nil unless WAL_ENABLED.
type eventComponents struct {
	publisher *eventprocessor.Publisher
	forwarder *eventprocessor.Forwarder
	wal       *wal.BadgerWAL
	retry     *wal.RetryLoop
}

// initEvents wires sync events to websocket clients. With NATS enabled the
// manager publishes to the NATS topic and a forwarder relays the topic to
// hub, so every instance behind a load balancer reaches its own clients.
// With the WAL enabled as well, events are persisted before publishing and
// republished by a retry loop until NATS accepts them. Without NATS the
// manager broadcasts to hub directly and nil is returned.
func initEvents(appCfg *config.Config, sink eventSink, hub sync.Broadcaster) (*eventComponents, error) {
	cfg := appCfg.NATS
	if !cfg.Enabled {
		sink.SetBroadcaster(hub)
		logging.Info().Msg("NATS disabled; sync events go straight to websocket clients")
		return nil, nil
	}

	wmLogger := logging.NewWatermillAdapter()

	natsPub, err := eventprocessor.NewNATSPublisher(cfg, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}
	natsSub, err := eventprocessor.NewNATSSubscriber(cfg, wmLogger)
	if err != nil {
		if closeErr := natsPub.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("Failed to close NATS publisher")
		}
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}

	components := &eventComponents{
		publisher: eventprocessor.NewPublisher(natsPub, cfg.Topic),
		forwarder: eventprocessor.NewForwarder(natsSub, cfg.Topic, hub),
	}

	if appCfg.WAL.Enabled {
		w, err := wal.Open(appCfg.WAL)
		if err != nil {
			components.Close()
			if closeErr := components.forwarder.Close(); closeErr != nil {
				logging.Warn().Err(closeErr).Msg("Failed to close NATS subscriber")
			}
			return nil, fmt.Errorf("open WAL: %w", err)
		}
		durable := wal.NewDurablePublisher(w, components.publisher)
		components.wal = w
		components.retry = wal.NewRetryLoop(w, durable)
		sink.SetEventPublisher(durable)
	} else {
		sink.SetEventPublisher(components.publisher)
	}

	logging.Info().
		Str("url", cfg.URL).
		Str("topic", cfg.Topic).
		Bool("jetstream", cfg.JetStream).
		Bool("wal", components.wal != nil).
		Msg("NATS event delivery enabled")
	return components, nil
}

// Close releases the publisher and then the WAL. The forwarder's subscriber
// is closed by its supervised service. Safe on a nil receiver.
func (c *eventComponents) Close() {
	if c == nil {
		return
	}
	if err := c.publisher.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close event publisher")
	}
	if c.wal != nil {
		if err := c.wal.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close WAL")
		}
	}
}
