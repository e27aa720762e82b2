package models

import (
	"sort"
	"time"
)

// Conversation is a direct-message thread between two or more users.
type Conversation struct {
	ID        string    `dynamodbav:"id" json:"id"`
	CreatedAt time.Time `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt time.Time `dynamodbav:"updated_at" json:"updated_at"` // Bumped on every new message

	// Derived for the viewer, never stored.
	Participants []Profile `dynamodbav:"-" json:"participants,omitempty"`
	LastMessage  *Message  `dynamodbav:"-" json:"last_message,omitempty"`
	UnreadCount  int       `dynamodbav:"-" json:"unread_count"`
}

// ConversationParticipant joins a conversation and a profile.
type ConversationParticipant struct {
	ConversationID string    `dynamodbav:"conversation_id" json:"conversation_id"`
	UserID         string    `dynamodbav:"user_id" json:"user_id"`
	CreatedAt      time.Time `dynamodbav:"created_at" json:"created_at"`
}

// ConversationPair claims the direct conversation of an unordered user pair.
// Its key is unique, so at most one conversation can win the claim.
type ConversationPair struct {
	PairKey        string    `dynamodbav:"pair_key" json:"pair_key"`
	ConversationID string    `dynamodbav:"conversation_id" json:"conversation_id"`
	CreatedAt      time.Time `dynamodbav:"created_at" json:"created_at"`
}

// PairKey returns the order-independent key of two user ids.
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + "#" + ids[1]
}
