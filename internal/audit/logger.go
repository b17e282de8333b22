// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package audit

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/vitalsync/internal/config"
	"github.com/tomtom215/vitalsync/internal/logging"
	"github.com/tomtom215/vitalsync/internal/middleware"
	"github.com/tomtom215/vitalsync/internal/models"
)

// saveTimeout bounds one store write from the async writer.
const saveTimeout = 5 * time.Second

// Logger records audit events asynchronously. A nil *Logger is valid and
// records nothing, so callers need no enabled checks.
type Logger struct {
	store     Store
	retention time.Duration
	now       func() time.Time

	eventChan chan *Event
	stopOnce  sync.Once
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewLogger starts the async writer for store. It returns nil when cfg
// disables auditing.
func NewLogger(store Store, cfg config.AuditConfig) *Logger {
	if !cfg.Enabled {
		return nil
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	l := &Logger{
		store:     store,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		now:       time.Now,
		eventChan: make(chan *Event, bufferSize),
		stopChan:  make(chan struct{}),
	}

	l.wg.Add(1)
	go l.asyncWriter()
	return l
}

func (l *Logger) asyncWriter() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopChan:
			for {
				select {
				case event := <-l.eventChan:
					l.writeEvent(event)
				default:
					return
				}
			}
		case event := <-l.eventChan:
			l.writeEvent(event)
		}
	}
}

func (l *Logger) writeEvent(event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := l.store.Save(ctx, event); err != nil {
		logging.Error().Err(err).Str("event_id", event.ID).Str("type", string(event.Type)).Msg("Failed to save audit event")
	}
}

// Log queues event, filling in ID and timestamp when unset.
func (l *Logger) Log(event *Event) {
	if l == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}

	select {
	case l.eventChan <- event:
	default:
		logging.Warn().Str("event_id", event.ID).Msg("Audit event buffer full, dropping event")
	}
}

// Close stops the writer after flushing queued events.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.stopOnce.Do(func() { close(l.stopChan) })
	l.wg.Wait()
	return nil
}

// Query returns events matching filter, newest first.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// CleanupExpired deletes events older than the retention period.
func (l *Logger) CleanupExpired(ctx context.Context) (int, error) {
	if l == nil || l.retention <= 0 {
		return 0, nil
	}
	n, err := l.store.Delete(ctx, l.now().Add(-l.retention))
	return int(n), err
}

// IntegrationConnected records a completed OAuth authorization.
func (l *Logger) IntegrationConnected(ctx context.Context, r *http.Request, integration *models.Integration) {
	l.Log(&Event{
		Type:        EventTypeIntegrationConnected,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       userActor(integration.UserID),
		Target:      integrationTarget(integration.ID, integration.Provider),
		Source:      SourceFromRequest(r),
		Action:      "connect",
		Description: "Connected " + integration.Provider.DisplayName(),
		Metadata:    mustJSON(map[string]string{"provider": string(integration.Provider), "scope": integration.Credentials.Scope}),
		RequestID:   middleware.GetRequestID(ctx),
	})
}

// IntegrationDisconnected records a user removing an integration.
func (l *Logger) IntegrationDisconnected(ctx context.Context, r *http.Request, integration *models.Integration) {
	l.Log(&Event{
		Type:        EventTypeIntegrationDisconnected,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Actor:       userActor(integration.UserID),
		Target:      integrationTarget(integration.ID, integration.Provider),
		Source:      SourceFromRequest(r),
		Action:      "disconnect",
		Description: "Disconnected " + integration.Provider.DisplayName(),
		Metadata:    mustJSON(map[string]string{"provider": string(integration.Provider)}),
		RequestID:   middleware.GetRequestID(ctx),
	})
}

// ReauthorizationRequired records a sync that found the grant unusable.
func (l *Logger) ReauthorizationRequired(ctx context.Context, integration *models.Integration, reason string) {
	l.Log(&Event{
		Type:        EventTypeReauthorizationRequired,
		Severity:    SeverityWarning,
		Outcome:     OutcomeFailure,
		Actor:       SystemActor(),
		Target:      integrationTarget(integration.ID, integration.Provider),
		Action:      "sync",
		Description: integration.Provider.DisplayName() + " requires reauthorization",
		Metadata:    mustJSON(map[string]string{"provider": string(integration.Provider), "user_id": integration.UserID, "reason": reason}),
		RequestID:   middleware.GetRequestID(ctx),
	})
}

// GoalCreated records a new goal.
func (l *Logger) GoalCreated(ctx context.Context, r *http.Request, goal *models.Goal) {
	l.Log(&Event{
		Type:     EventTypeGoalCreated,
		Severity: SeverityInfo,
		Outcome:  OutcomeSuccess,
		Actor:    userActor(goal.UserID),
		Target:   &Target{ID: goal.ID, Type: "goal", Name: goal.Title},
		Source:   SourceFromRequest(r),
		Action:   "create",
		Metadata: mustJSON(map[string]interface{}{
			"goal_type":    goal.Type,
			"target_value": goal.TargetValue,
		}),
		Description: "Created goal " + goal.Title,
		RequestID:   middleware.GetRequestID(ctx),
	})
}

// BatchSyncTriggered records an on-demand batch run and its totals.
func (l *Logger) BatchSyncTriggered(ctx context.Context, r *http.Request, actorID string, attempted, succeeded, failed int) {
	outcome := OutcomeSuccess
	if failed > 0 {
		outcome = OutcomeFailure
	}
	l.Log(&Event{
		Type:        EventTypeBatchSyncTriggered,
		Severity:    SeverityWarning,
		Outcome:     outcome,
		Actor:       userActor(actorID),
		Source:      SourceFromRequest(r),
		Action:      "batch_sync",
		Description: "Batch sync triggered",
		Metadata: mustJSON(map[string]int{
			"attempted": attempted,
			"succeeded": succeeded,
			"failed":    failed,
		}),
		RequestID: middleware.GetRequestID(ctx),
	})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

func userActor(id string) Actor {
	return Actor{ID: id, Type: "user"}
}

func integrationTarget(id string, p models.Provider) *Target {
	return &Target{ID: id, Type: "integration", Name: string(p)}
}

// SystemActor is the actor for scheduler-initiated changes.
func SystemActor() Actor {
	return Actor{ID: "system", Type: "system"}
}

// SourceFromRequest extracts the client address and user agent. r may be nil.
func SourceFromRequest(r *http.Request) Source {
	if r == nil {
		return Source{}
	}
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return Source{IPAddress: ip, UserAgent: r.UserAgent()}
}
