package models

import "time"

// MessageID is the identity of a transcript entry. It is a two-armed union:
// a pending entry carries only the locally generated correlation id, a
// confirmed entry carries the server-assigned id. The arms never mix, so no
// prefix convention on the id string is needed to tell them apart.
type MessageID struct {
	server      string
	correlation string
}

// ServerID builds a confirmed identity.
func ServerID(id string) MessageID {
	return MessageID{server: id}
}

// CorrelationID builds a pending identity.
func CorrelationID(id string) MessageID {
	return MessageID{correlation: id}
}

// Confirmed reports whether the entry carries a server id.
func (id MessageID) Confirmed() bool {
	return id.server != ""
}

// Server returns the server id, empty while pending.
func (id MessageID) Server() string {
	return id.server
}

// Correlation returns the client correlation id, empty once confirmed.
func (id MessageID) Correlation() string {
	return id.correlation
}

func (id MessageID) String() string {
	if id.server != "" {
		return id.server
	}
	return id.correlation
}

// Message is one transcript entry.
type Message struct {
	ID           MessageID       `json:"-"`
	Conversation ConversationRef `json:"conversation"`
	Author       string          `json:"author"`
	Content      string          `json:"content"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Confirmed reports whether the server has acknowledged this message.
func (m Message) Confirmed() bool {
	return m.ID.Confirmed()
}
