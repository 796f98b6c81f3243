package models

import "fmt"

// Kind distinguishes the three conversation flavours the backend serves.
type Kind string

const (
	KindDirect Kind = "chat"
	KindGroup  Kind = "group"
	KindRoom   Kind = "room"
)

// ConversationRef addresses one message stream: a direct chat, a group or an
// anonymous room. The zero value means "no active conversation".
type ConversationRef struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// IsZero reports whether the ref addresses nothing.
func (c ConversationRef) IsZero() bool {
	return c.Kind == "" && c.ID == ""
}

func (c ConversationRef) String() string {
	return fmt.Sprintf("%s:%s", c.Kind, c.ID)
}

// Identity is the cached local user record persisted between runs.
type Identity struct {
	UserID   string `db:"user_id" json:"user_id"`
	Username string `db:"username" json:"username"`
}
