package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"outliers_server/apperr"
	"outliers_server/backend"
	"outliers_server/models"
)

type CommentService struct {
	Data          backend.DataService
	Notifications *NotificationService
	Now           func() time.Time
}

func NewCommentService(data backend.DataService, notifications *NotificationService) *CommentService {
	return &CommentService{Data: data, Notifications: notifications, Now: func() time.Time { return time.Now().UTC() }}
}

// List returns the comments of an article, oldest first.
func (s *CommentService) List(ctx context.Context, articleID string) ([]models.Comment, error) {
	var comments []models.Comment
	q := backend.From(models.CommentsTable).Where(backend.Eq("article_id", articleID)).OrderBy("created_at", false)
	if err := s.Data.Select(ctx, q, &comments); err != nil {
		return nil, fmt.Errorf("failed to fetch comments: %w", err)
	}
	if len(comments) == 0 {
		return []models.Comment{}, nil
	}

	ids := make([]string, len(comments))
	authors := make([]string, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
		authors[i] = c.AuthorID
	}
	var profiles []models.Profile
	if err := s.Data.Select(ctx, backend.From(models.ProfilesTable).Where(backend.In("id", distinct(authors))), &profiles); err != nil {
		return nil, fmt.Errorf("failed to fetch comment authors: %w", err)
	}
	var likes []models.CommentLike
	if err := s.Data.Select(ctx, backend.From(models.CommentLikesTable).Where(backend.In("comment_id", ids)), &likes); err != nil {
		return nil, fmt.Errorf("failed to fetch comment likes: %w", err)
	}

	viewer := backend.ActorFrom(ctx)
	for i := range comments {
		c := &comments[i]
		for _, p := range profiles {
			if p.ID == c.AuthorID {
				p := p
				c.Author = &p
				break
			}
		}
		for _, l := range likes {
			if l.CommentID == c.ID {
				c.LikesCount++
				c.IsLikedByMe = c.IsLikedByMe || l.UserID == viewer
			}
		}
	}
	return comments, nil
}

// Create adds a comment and notifies the article's author.
func (s *CommentService) Create(ctx context.Context, articleID, content string) (models.Comment, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return models.Comment{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, apperr.InvalidArg("comment cannot be empty")
	}
	var articles []models.Article
	if err := s.Data.Select(ctx, backend.From(models.ArticlesTable).Where(backend.Eq("id", articleID)), &articles); err != nil {
		return models.Comment{}, fmt.Errorf("failed to fetch article: %w", err)
	}
	if len(articles) == 0 {
		return models.Comment{}, apperr.ErrNotFound
	}

	c := models.Comment{
		ID:        uuid.NewString(),
		ArticleID: articleID,
		AuthorID:  viewer,
		Content:   content,
		CreatedAt: s.Now(),
	}
	if err := s.Data.Insert(ctx, models.CommentsTable, c); err != nil {
		return models.Comment{}, fmt.Errorf("failed to create comment: %w", err)
	}
	if err := s.Notifications.Notify(ctx, articles[0].AuthorID, models.NotificationComment, NotificationRef{ArticleID: articleID}); err != nil {
		slog.WarnContext(ctx, "failed to notify article author", "article_id", articleID, "error", err)
	}
	return c, nil
}

func (s *CommentService) Delete(ctx context.Context, id string) error {
	n, err := s.Data.Delete(ctx, backend.From(models.CommentsTable).Where(backend.Eq("id", id)))
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ToggleLike flips the viewer's like on a comment and returns the new state.
func (s *CommentService) ToggleLike(ctx context.Context, commentID string) (bool, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return false, err
	}
	return toggle(ctx, s.Data, models.CommentLikesTable,
		[]backend.Filter{backend.Eq("comment_id", commentID), backend.Eq("user_id", viewer)},
		models.CommentLike{CommentID: commentID, UserID: viewer, CreatedAt: s.Now()},
	)
}
