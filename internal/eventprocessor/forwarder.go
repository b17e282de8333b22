// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package eventprocessor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/vitalsync/internal/cache"
	"github.com/tomtom215/vitalsync/internal/logging"
	"github.com/tomtom215/vitalsync/internal/sync"
)

const (
	dedupeCapacity = 10000
	dedupeTTL      = 10 * time.Minute
)

// Forwarder relays sync events from a topic to websocket clients. Events
// whose ID was forwarded recently are skipped.
type Forwarder struct {
	subscriber message.Subscriber
	topic      string
	hub        sync.Broadcaster
	seen       *cache.DedupeCache

	forwarded  atomic.Int64
	dropped    atomic.Int64
	duplicates atomic.Int64
}

// NewForwarder creates a forwarder from topic on subscriber to hub.
func NewForwarder(subscriber message.Subscriber, topic string, hub sync.Broadcaster) *Forwarder {
	return &Forwarder{
		subscriber: subscriber,
		topic:      topic,
		hub:        hub,
		seen:       cache.NewDedupeCache(dedupeCapacity, dedupeTTL),
	}
}

// Run consumes until ctx is cancelled or the subscription closes.
// Malformed messages are acked and dropped so they are not redelivered.
func (f *Forwarder) Run(ctx context.Context) error {
	messages, err := f.subscriber.Subscribe(ctx, f.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", f.topic, err)
	}

	log := logging.WithComponent("forwarder")
	log.Info().Str("topic", f.topic).Msg("Forwarding sync events to websocket clients")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			f.handle(msg)
		}
	}
}

func (f *Forwarder) handle(msg *message.Message) {
	defer msg.Ack()

	event, err := DecodeSyncMessage(msg)
	if err != nil {
		f.dropped.Add(1)
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed sync event")
		return
	}
	if f.seen.Seen(event.EventID) {
		f.duplicates.Add(1)
		logging.Debug().Str("event_id", event.EventID).Msg("Skipping redelivered sync event")
		return
	}
	f.hub.BroadcastJSON(sync.MessageTypeSyncCompleted, event)
	f.forwarded.Add(1)
}

// Stats returns how many events were forwarded and dropped.
func (f *Forwarder) Stats() (forwarded, dropped int64) {
	return f.forwarded.Load(), f.dropped.Load()
}

// Duplicates returns how many redelivered events were skipped.
func (f *Forwarder) Duplicates() int64 {
	return f.duplicates.Load()
}

// Close closes the subscriber.
func (f *Forwarder) Close() error {
	return f.subscriber.Close()
}
