// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/vitalsync/internal/logging"
	"github.com/tomtom215/vitalsync/internal/metrics"
	"github.com/tomtom215/vitalsync/internal/sync"
)

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// Publisher publishes sync completion events to one topic.
// Publishing is guarded by a circuit breaker; while it is open events are
// dropped immediately instead of waiting on the broker.
type Publisher struct {
	publisher message.Publisher
	topic     string
	cb        *gobreaker.CircuitBreaker[any]

	mu     gosync.RWMutex
	closed bool
}

var _ sync.EventPublisher = (*Publisher)(nil)

// NewPublisher wraps pub. The Publisher owns pub and closes it on Close.
func NewPublisher(pub message.Publisher, topic string) *Publisher {
	name := "publisher-" + topic
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Publisher{publisher: pub, topic: topic, cb: cb}
}

// Topic returns the topic events are published to.
func (p *Publisher) Topic() string {
	return p.topic
}

// PublishSyncCompleted implements sync.EventPublisher.
func (p *Publisher) PublishSyncCompleted(ctx context.Context, event *sync.SyncCompletedEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	msg, err := NewSyncMessage(event)
	if err != nil {
		return err
	}
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(MetadataCorrelationID, id)
	}
	msg.SetContext(ctx)

	_, err = p.cb.Execute(func() (any, error) {
		return nil, p.publisher.Publish(p.topic, msg)
	})
	metrics.RecordEventPublish(p.topic, err)
	metrics.CircuitBreakerRequests.WithLabelValues(p.cb.Name(), breakerResult(err)).Inc()
	if err != nil {
		return fmt.Errorf("publish %s event: %w", EventTypeIntegrationSynced, err)
	}

	logging.Ctx(ctx).Debug().
		Str("topic", p.topic).
		Str("event_id", event.EventID).
		Str("integration_id", event.IntegrationID).
		Msg("Published sync event")
	return nil
}

// Close closes the underlying publisher. Further publishes fail.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}

func breakerResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	default:
		return "failure"
	}
}
