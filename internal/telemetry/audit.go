package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// AuditEmitter publishes fire-and-forget audit envelopes describing client
// activity (send failures, channel drops, reconnects). A nil emitter or nil
// publisher turns Emit into a no-op.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	environment string
}

// AuditEnvelope is the wire format of one audit event.
type AuditEnvelope struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	OccurredAt    string         `json:"occurred_at"`
	Service       string         `json:"service"`
	Environment   string         `json:"environment"`
	Conversation  string         `json:"conversation,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// NewAuditEmitter builds an emitter bound to a routing key.
func NewAuditEmitter(publisher Publisher, routingKey, environment string) *AuditEmitter {
	return &AuditEmitter{publisher: publisher, routingKey: routingKey, environment: environment}
}

// Emit publishes one audit event. Failures are logged, never surfaced.
func (e *AuditEmitter) Emit(ctx context.Context, eventType, conversation string, payload map[string]any) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       "chat-client",
		Environment:   e.environment,
		Conversation:  conversation,
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("audit publish failed")
	}
}
