// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

// Package eventprocessor publishes integration sync results through
// Watermill and relays them to websocket clients.
//
// When NATS is enabled, the sync manager publishes every completed sync as
// an "integration.synced" message on the configured topic. Each instance
// runs a Forwarder that consumes the topic and broadcasts the event to its
// own websocket clients, so a browser connected to any instance sees syncs
// run by every instance.
//
// Components:
//   - Publisher: implements sync.EventPublisher over any message.Publisher,
//     guarded by a circuit breaker so a NATS outage never slows syncs down
//   - Forwarder: subscription loop that decodes events and broadcasts them
//   - NewNATSPublisher / NewNATSSubscriber: watermill-nats constructors with
//     reconnect handling and optional JetStream
//
// Tests run against Watermill's in-process gochannel pub/sub.
package eventprocessor
