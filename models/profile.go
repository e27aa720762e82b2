package models

import "time"

// Profile is the public identity record of a user. ID equals the auth user id.
type Profile struct {
	ID          string            `dynamodbav:"id" json:"id"`
	Username    string            `dynamodbav:"username" json:"username"`
	FullName    string            `dynamodbav:"full_name,omitempty" json:"full_name,omitempty"`
	AvatarURL   string            `dynamodbav:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	BannerURL   string            `dynamodbav:"banner_url,omitempty" json:"banner_url,omitempty"`
	Bio         string            `dynamodbav:"bio,omitempty" json:"bio,omitempty"`
	Sector      string            `dynamodbav:"sector,omitempty" json:"sector,omitempty"`
	SocialLinks map[string]string `dynamodbav:"social_links,omitempty" json:"social_links,omitempty"` // e.g. "linkedin" -> url
	CreatedAt   time.Time         `dynamodbav:"created_at" json:"created_at"`
}

// Follower is a (follower -> following) edge.
type Follower struct {
	FollowerID  string    `dynamodbav:"follower_id" json:"follower_id"`
	FollowingID string    `dynamodbav:"following_id" json:"following_id"`
	CreatedAt   time.Time `dynamodbav:"created_at" json:"created_at"`
}
