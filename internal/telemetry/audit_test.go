package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-client/internal/mocks"
)

func TestAuditEmitterPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(publisher, "client_events.audit", "test")

	publisher.On("Publish", mock.Anything, "client_events.audit", mock.MatchedBy(func(event any) bool {
		envelope, ok := event.(AuditEnvelope)
		return ok &&
			envelope.EventType == "send_failed" &&
			envelope.Service == "chat-client" &&
			envelope.Environment == "test" &&
			envelope.Conversation == "chat:5"
	})).Return(nil).Once()

	emitter.Emit(context.Background(), "send_failed", "chat:5", map[string]any{"reason": "boom"})
	publisher.AssertExpectations(t)
}

func TestAuditEmitterNilSafe(t *testing.T) {
	var emitter *AuditEmitter
	require.NotPanics(t, func() {
		emitter.Emit(context.Background(), "send_failed", "", nil)
	})
}

func TestNoopPublisherWhenUnconfigured(t *testing.T) {
	publisher := NewPublisher("", "client_events")
	assert.Equal(t, "noop", PublisherMode(publisher))
	assert.NoError(t, publisher.Publish(context.Background(), "client_events.audit", "anything"))
	assert.NoError(t, publisher.Close())
}
