// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package eventprocessor

import (
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/vitalsync/internal/models"
	"github.com/tomtom215/vitalsync/internal/sync"
)

func testEvent(id string) *sync.SyncCompletedEvent {
	return &sync.SyncCompletedEvent{
		EventID:        id,
		IntegrationID:  "integration-1",
		UserID:         "user-1",
		Provider:       models.ProviderFitbit,
		Status:         models.IntegrationActive,
		RecordsFetched: 7,
		RangeStart:     "2024-03-03",
		RangeEnd:       "2024-03-10",
		DurationMs:     120,
		CompletedAt:    time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewSyncMessage(t *testing.T) {
	msg, err := NewSyncMessage(testEvent("event-1"))
	if err != nil {
		t.Fatalf("NewSyncMessage() error = %v", err)
	}
	if msg.UUID != "event-1" {
		t.Errorf("UUID = %q, want %q", msg.UUID, "event-1")
	}

	tests := map[string]string{
		MetadataEventType:     EventTypeIntegrationSynced,
		MetadataIntegrationID: "integration-1",
		MetadataUserID:        "user-1",
		MetadataProvider:      "fitbit",
		MetadataStatus:        "ACTIVE",
	}
	for key, want := range tests {
		if got := msg.Metadata.Get(key); got != want {
			t.Errorf("Metadata[%s] = %q, want %q", key, got, want)
		}
	}
}

func TestNewSyncMessage_RequiresEventID(t *testing.T) {
	if _, err := NewSyncMessage(testEvent("")); err == nil {
		t.Error("NewSyncMessage() with empty event id should fail")
	}
}

func TestDecodeSyncMessage(t *testing.T) {
	msg, err := NewSyncMessage(testEvent("event-1"))
	if err != nil {
		t.Fatalf("NewSyncMessage() error = %v", err)
	}
	event, err := DecodeSyncMessage(msg)
	if err != nil {
		t.Fatalf("DecodeSyncMessage() error = %v", err)
	}
	if event.IntegrationID != "integration-1" || event.RecordsFetched != 7 {
		t.Errorf("decoded event = %+v", event)
	}
	if !event.CompletedAt.Equal(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("CompletedAt = %v", event.CompletedAt)
	}
}

func TestDecodeSyncMessage_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		eventType string
	}{
		{"malformed json", "{not json", EventTypeIntegrationSynced},
		{"missing integration id", `{"event_id":"x"}`, EventTypeIntegrationSynced},
		{"wrong event type", `{"integration_id":"x"}`, "goal.updated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := message.NewMessage("m-1", []byte(tt.payload))
			msg.Metadata.Set(MetadataEventType, tt.eventType)
			if _, err := DecodeSyncMessage(msg); err == nil {
				t.Error("DecodeSyncMessage() should fail")
			}
		})
	}
}
