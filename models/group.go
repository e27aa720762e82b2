package models

import "time"

type Group struct {
	ID          string    `dynamodbav:"id" json:"id"`
	Name        string    `dynamodbav:"name" json:"name"`
	Description string    `dynamodbav:"description,omitempty" json:"description,omitempty"`
	AvatarURL   string    `dynamodbav:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	Privacy     string    `dynamodbav:"privacy" json:"privacy"` // "public" or "private"
	CreatedBy   string    `dynamodbav:"created_by" json:"created_by"`
	CreatedAt   time.Time `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt   time.Time `dynamodbav:"updated_at" json:"updated_at"`
}

type GroupMember struct {
	GroupID  string    `dynamodbav:"group_id" json:"group_id"`
	UserID   string    `dynamodbav:"user_id" json:"user_id"`
	Role     string    `dynamodbav:"role" json:"role"` // "admin" or "member"
	JoinedAt time.Time `dynamodbav:"joined_at" json:"joined_at"`

	Profile *Profile `dynamodbav:"-" json:"profile,omitempty"`
}

type JoinRequest struct {
	GroupID   string    `dynamodbav:"group_id" json:"group_id"`
	UserID    string    `dynamodbav:"user_id" json:"user_id"`
	Status    string    `dynamodbav:"status" json:"status"` // "pending", "approved", "declined"
	CreatedAt time.Time `dynamodbav:"created_at" json:"created_at"`
}

// GroupMessage is structurally a Message scoped to a group.
type GroupMessage struct {
	ID              string    `dynamodbav:"id" json:"id"`
	GroupID         string    `dynamodbav:"group_id" json:"group_id"`
	SenderID        string    `dynamodbav:"sender_id" json:"sender_id"`
	Content         string    `dynamodbav:"content,omitempty" json:"content,omitempty"`
	ImageURL        string    `dynamodbav:"image_url,omitempty" json:"image_url,omitempty"`
	VideoURL        string    `dynamodbav:"video_url,omitempty" json:"video_url,omitempty"`
	SharedArticleID string    `dynamodbav:"shared_article_id,omitempty" json:"shared_article_id,omitempty"`
	CreatedAt       time.Time `dynamodbav:"created_at" json:"created_at"`
}
