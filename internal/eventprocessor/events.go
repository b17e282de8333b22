// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package eventprocessor

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/vitalsync/internal/sync"
)

// EventTypeIntegrationSynced names the sync completion event.
const EventTypeIntegrationSynced = "integration.synced"

// Metadata keys set on every published message.
const (
	MetadataEventType     = "event_type"
	MetadataIntegrationID = "integration_id"
	MetadataUserID        = "user_id"
	MetadataProvider      = "provider"
	MetadataStatus        = "status"
	MetadataCorrelationID = "correlation_id"
)

// NewSyncMessage encodes event as a Watermill message. The event ID becomes
// the message UUID so JetStream can deduplicate redeliveries.
func NewSyncMessage(event *sync.SyncCompletedEvent) (*message.Message, error) {
	if event.EventID == "" {
		return nil, fmt.Errorf("event id is required")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal sync event: %w", err)
	}

	msg := message.NewMessage(event.EventID, payload)
	msg.Metadata.Set(MetadataEventType, EventTypeIntegrationSynced)
	msg.Metadata.Set(MetadataIntegrationID, event.IntegrationID)
	msg.Metadata.Set(MetadataUserID, event.UserID)
	msg.Metadata.Set(MetadataProvider, string(event.Provider))
	msg.Metadata.Set(MetadataStatus, string(event.Status))
	return msg, nil
}

// DecodeSyncMessage decodes a message produced by NewSyncMessage.
func DecodeSyncMessage(msg *message.Message) (*sync.SyncCompletedEvent, error) {
	if t := msg.Metadata.Get(MetadataEventType); t != "" && t != EventTypeIntegrationSynced {
		return nil, fmt.Errorf("unexpected event type %q", t)
	}
	var event sync.SyncCompletedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("unmarshal sync event: %w", err)
	}
	if event.IntegrationID == "" {
		return nil, fmt.Errorf("sync event %s has no integration id", msg.UUID)
	}
	return &event, nil
}
