// Package events encodes account domain events into a versioned JSON envelope and hands
// them to a transport sink (Kafka, NATS or the log).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/wizlearn/account-service/internal/core/domain"
	"github.com/wizlearn/account-service/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types. Transports prepend their own topic or subject prefix.
const (
	TypeAccountRegistered    = "account.registered"
	TypeAccountLocked        = "account.locked"
	TypePasswordReset        = "account.password.reset"
	TypeAccountStatusChanged = "account.status.changed"
)

// Sink transports one encoded envelope. key is the account id, used for partitioning.
type Sink interface {
	Emit(ctx context.Context, eventType, key string, body []byte) error
}

// Envelope wraps every payload on the wire.
type Envelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	AccountID string            `json:"account_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Publisher implements port.EventPublisher over a Sink.
type Publisher struct {
	sink Sink
	app  config.AppSettings
}

func NewPublisher(sink Sink, app config.AppSettings) *Publisher {
	return &Publisher{sink: sink, app: app}
}

func (p *Publisher) publish(ctx context.Context, eventID, eventType, accountID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	metadata := map[string]string{
		"service":     p.app.Name,
		"environment": p.app.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	encoded, err := json.Marshal(Envelope{
		EventID:   eventID,
		EventType: eventType,
		AccountID: accountID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   body,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}
	return p.sink.Emit(ctx, eventType, accountID, encoded)
}

// PublishAccountRegistered publishes account.registered.
func (p *Publisher) PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error {
	payload := struct {
		AccountID    string    `json:"account_id"`
		Email        string    `json:"email"`
		Role         string    `json:"role"`
		Status       string    `json:"status"`
		TutorCode    *string   `json:"tutor_code,omitempty"`
		RegisteredAt time.Time `json:"registered_at"`
	}{
		AccountID:    event.AccountID,
		Email:        event.Email,
		Role:         string(event.Role),
		Status:       string(event.Status),
		TutorCode:    event.TutorCode,
		RegisteredAt: event.RegisteredAt.UTC(),
	}
	return p.publish(ctx, event.EventID, TypeAccountRegistered, event.AccountID, event.RegisteredAt, payload)
}

// PublishAccountLocked publishes account.locked.
func (p *Publisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	payload := struct {
		AccountID      string    `json:"account_id"`
		FailedAttempts int       `json:"failed_attempts"`
		LockedUntil    time.Time `json:"locked_until"`
		LockedAt       time.Time `json:"locked_at"`
	}{
		AccountID:      event.AccountID,
		FailedAttempts: event.FailedAttempts,
		LockedUntil:    event.LockedUntil.UTC(),
		LockedAt:       event.LockedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, TypeAccountLocked, event.AccountID, event.LockedAt, payload)
}

// PublishPasswordReset publishes account.password.reset.
func (p *Publisher) PublishPasswordReset(ctx context.Context, event domain.PasswordResetEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		Role      string    `json:"role"`
		ResetAt   time.Time `json:"reset_at"`
	}{
		AccountID: event.AccountID,
		Role:      string(event.Role),
		ResetAt:   event.ResetAt.UTC(),
	}
	return p.publish(ctx, event.EventID, TypePasswordReset, event.AccountID, event.ResetAt, payload)
}

// PublishAccountStatusChanged publishes account.status.changed.
func (p *Publisher) PublishAccountStatusChanged(ctx context.Context, event domain.AccountStatusChangedEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		Role      string    `json:"role"`
		From      string    `json:"from"`
		To        string    `json:"to"`
		ChangedBy string    `json:"changed_by,omitempty"`
		ChangedAt time.Time `json:"changed_at"`
	}{
		AccountID: event.AccountID,
		Role:      string(event.Role),
		From:      string(event.From),
		To:        string(event.To),
		ChangedBy: event.ChangedBy,
		ChangedAt: event.ChangedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, TypeAccountStatusChanged, event.AccountID, event.ChangedAt, payload)
}
