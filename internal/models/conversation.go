package models

import "time"

// Role tags a single turn in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role is one of the three known variants.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is one turn in a conversation. ID is a caller-assigned sequence
// number unique within the conversation; Timestamp is an opaque display
// string supplied by the client and stored verbatim.
type Message struct {
	ID        int64  `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Conversation groups an owned, ordered sequence of messages plus an
// optional attached document reference.
type Conversation struct {
	ID            int64        `json:"id"`
	OwnerID       int64        `json:"ownerId"`
	Title         string       `json:"title"`
	Messages      []Message    `json:"messages"`
	LastMessageAt time.Time    `json:"lastMessageAt"`
	Document      *DocumentRef `json:"document,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// ConversationSummary is the projection returned by recent-history listings.
type ConversationSummary struct {
	ID            int64        `json:"id"`
	Title         string       `json:"title"`
	LastMessageAt time.Time    `json:"lastMessageAt"`
	Document      *DocumentRef `json:"document,omitempty"`
}
