package models

import "time"

// Notification tells UserID that ActorID did something to one of their records.
type Notification struct {
	ID        string    `dynamodbav:"id" json:"id"`
	UserID    string    `dynamodbav:"user_id" json:"user_id"`   // Recipient
	ActorID   string    `dynamodbav:"actor_id" json:"actor_id"` // Who triggered it
	Type      string    `dynamodbav:"type" json:"type"`
	ArticleID string    `dynamodbav:"article_id,omitempty" json:"article_id,omitempty"`
	GroupID   string    `dynamodbav:"group_id,omitempty" json:"group_id,omitempty"`
	IsRead    bool      `dynamodbav:"is_read" json:"is_read"`
	CreatedAt time.Time `dynamodbav:"created_at" json:"created_at"`
}
