package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageIDArms(t *testing.T) {
	pending := CorrelationID("corr-1")
	assert.False(t, pending.Confirmed())
	assert.Equal(t, "corr-1", pending.Correlation())
	assert.Empty(t, pending.Server())
	assert.Equal(t, "corr-1", pending.String())

	confirmed := ServerID("srv-1")
	assert.True(t, confirmed.Confirmed())
	assert.Equal(t, "srv-1", confirmed.Server())
	assert.Empty(t, confirmed.Correlation())
	assert.Equal(t, "srv-1", confirmed.String())
}

func TestEventNamesByKind(t *testing.T) {
	assert.Equal(t, EventChatMessage, MessageEventName(KindDirect))
	assert.Equal(t, EventGroupMessage, MessageEventName(KindGroup))
	assert.Equal(t, EventRoomMessage, MessageEventName(KindRoom))
	assert.Equal(t, EventGroupDeleted, DeletionEventName(KindGroup))
}

func TestConfirmedFromEvent(t *testing.T) {
	evt := MessageEvent{
		ID:           "srv-1",
		Sender:       "bob",
		Content:      "hi",
		Conversation: ConversationRef{Kind: KindDirect, ID: "5"},
	}
	msg := evt.Confirmed()
	assert.True(t, msg.Confirmed())
	assert.Equal(t, "srv-1", msg.ID.Server())
	assert.Equal(t, "bob", msg.Author)
	assert.Equal(t, ConversationRef{Kind: KindDirect, ID: "5"}, msg.Conversation)
}
