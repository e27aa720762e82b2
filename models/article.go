package models

import (
	"strings"
	"time"
)

type Article struct {
	ID         string    `dynamodbav:"id" json:"id"`
	AuthorID   string    `dynamodbav:"author_id" json:"author_id"`
	Title      string    `dynamodbav:"title" json:"title"`
	Content    string    `dynamodbav:"content" json:"content"`
	CoverURL   string    `dynamodbav:"cover_url,omitempty" json:"cover_url,omitempty"`
	Sector     string    `dynamodbav:"sector,omitempty" json:"sector,omitempty"`
	SearchText string    `dynamodbav:"search_text" json:"-"` // Lower-cased title + content for keyword search
	CreatedAt  time.Time `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt  time.Time `dynamodbav:"updated_at" json:"updated_at"`

	// Derived for the viewer, never stored.
	Author      *Profile `dynamodbav:"-" json:"author,omitempty"`
	LikesCount  int      `dynamodbav:"-" json:"likes_count"`
	IsLikedByMe bool     `dynamodbav:"-" json:"is_liked_by_me"`
	IsSavedByMe bool     `dynamodbav:"-" json:"is_saved_by_me"`
}

// BuildSearchText derives the search column from title and content.
func BuildSearchText(title, content string) string {
	return strings.ToLower(title + "\n" + content)
}

type ArticleLike struct {
	ArticleID string    `dynamodbav:"article_id" json:"article_id"`
	UserID    string    `dynamodbav:"user_id" json:"user_id"`
	CreatedAt time.Time `dynamodbav:"created_at" json:"created_at"`
}

type SavedArticle struct {
	UserID    string    `dynamodbav:"user_id" json:"user_id"`
	ArticleID string    `dynamodbav:"article_id" json:"article_id"`
	CreatedAt time.Time `dynamodbav:"created_at" json:"created_at"`
}

type Comment struct {
	ID        string    `dynamodbav:"id" json:"id"`
	ArticleID string    `dynamodbav:"article_id" json:"article_id"`
	AuthorID  string    `dynamodbav:"author_id" json:"author_id"`
	Content   string    `dynamodbav:"content" json:"content"`
	CreatedAt time.Time `dynamodbav:"created_at" json:"created_at"`

	Author      *Profile `dynamodbav:"-" json:"author,omitempty"`
	LikesCount  int      `dynamodbav:"-" json:"likes_count"`
	IsLikedByMe bool     `dynamodbav:"-" json:"is_liked_by_me"`
}

type CommentLike struct {
	CommentID string    `dynamodbav:"comment_id" json:"comment_id"`
	UserID    string    `dynamodbav:"user_id" json:"user_id"`
	CreatedAt time.Time `dynamodbav:"created_at" json:"created_at"`
}
