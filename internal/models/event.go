package models

import "time"

// Event names pushed by the backend, one delivery class per conversation kind.
const (
	EventChatMessage  = "chat.message"
	EventGroupMessage = "group.message"
	EventRoomMessage  = "room.message"

	EventChatDeleted  = "chat.deleted"
	EventGroupDeleted = "group.deleted"
	EventRoomDeleted  = "room.deleted"
)

// MessageEventName maps a conversation kind to its delivery event.
func MessageEventName(kind Kind) string {
	switch kind {
	case KindGroup:
		return EventGroupMessage
	case KindRoom:
		return EventRoomMessage
	default:
		return EventChatMessage
	}
}

// DeletionEventName maps a conversation kind to its delete-for-all event.
func DeletionEventName(kind Kind) string {
	switch kind {
	case KindGroup:
		return EventGroupDeleted
	case KindRoom:
		return EventRoomDeleted
	default:
		return EventChatDeleted
	}
}

// MessageEvent is the payload of a delivery event. ClientMsgID is the echoed
// correlation id, present only on the sender's own copy.
type MessageEvent struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	Sender         string          `json:"sender"`
	Content        string          `json:"content"`
	CreatedAt      time.Time       `json:"created_at"`
	ClientMsgID    string          `json:"client_msg_id,omitempty"`
	Conversation   ConversationRef `json:"-"`
}

// DeletionEvent is the payload of a delete-for-all event.
type DeletionEvent struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// Confirmed builds the transcript entry a delivery event materializes as.
func (e MessageEvent) Confirmed() Message {
	return Message{
		ID:           ServerID(e.ID),
		Conversation: e.Conversation,
		Author:       e.Sender,
		Content:      e.Content,
		CreatedAt:    e.CreatedAt,
	}
}
