package models

import "time"

// Message is a conversation-scoped chat message.
type Message struct {
	ID             string    `dynamodbav:"id" json:"id"`
	ConversationID string    `dynamodbav:"conversation_id" json:"conversation_id"`
	SenderID       string    `dynamodbav:"sender_id" json:"sender_id"`
	Content        string    `dynamodbav:"content" json:"content"`
	IsEdited       bool      `dynamodbav:"is_edited" json:"is_edited"`
	IsDeleted      bool      `dynamodbav:"is_deleted" json:"is_deleted"` // Soft delete; content replaced by DeletedPlaceholder
	CreatedAt      time.Time `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at" json:"updated_at"`

	// Derived for the viewer, never stored.
	Sender           *Profile `dynamodbav:"-" json:"sender,omitempty"`
	LikesCount       int      `dynamodbav:"-" json:"likes_count"`
	IsLikedByMe      bool     `dynamodbav:"-" json:"is_liked_by_me"`
	LikesProvisional bool     `dynamodbav:"-" json:"likes_provisional,omitempty"` // Optimistic like patch not yet reconciled
	Pending          bool     `dynamodbav:"-" json:"pending,omitempty"`           // Sent locally, not yet confirmed by the change feed
}

// MessageLike is unique per (message_id, user_id).
type MessageLike struct {
	MessageID string    `dynamodbav:"message_id" json:"message_id"`
	UserID    string    `dynamodbav:"user_id" json:"user_id"`
	CreatedAt time.Time `dynamodbav:"created_at" json:"created_at"`
}

// MessageRead is the read receipt of one viewer for one message.
type MessageRead struct {
	MessageID string    `dynamodbav:"message_id" json:"message_id"`
	UserID    string    `dynamodbav:"user_id" json:"user_id"`
	ReadAt    time.Time `dynamodbav:"read_at" json:"read_at"`
}

// DirectMessage is scoped to a sender/receiver pair instead of a conversation
// and may carry media or a shared article.
type DirectMessage struct {
	ID              string    `dynamodbav:"id" json:"id"`
	SenderID        string    `dynamodbav:"sender_id" json:"sender_id"`
	ReceiverID      string    `dynamodbav:"receiver_id" json:"receiver_id"`
	Content         string    `dynamodbav:"content,omitempty" json:"content,omitempty"`
	ImageURL        string    `dynamodbav:"image_url,omitempty" json:"image_url,omitempty"`
	VideoURL        string    `dynamodbav:"video_url,omitempty" json:"video_url,omitempty"`
	SharedArticleID string    `dynamodbav:"shared_article_id,omitempty" json:"shared_article_id,omitempty"`
	CreatedAt       time.Time `dynamodbav:"created_at" json:"created_at"`
}
