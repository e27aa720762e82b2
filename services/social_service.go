package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"outliers_server/apperr"
	"outliers_server/backend"
	"outliers_server/models"
)

// SocialService implements the like/save/follow toggles.
type SocialService struct {
	Data          backend.DataService
	Notifications *NotificationService
	Now           func() time.Time
}

func NewSocialService(data backend.DataService, notifications *NotificationService) *SocialService {
	return &SocialService{Data: data, Notifications: notifications, Now: func() time.Time { return time.Now().UTC() }}
}

// toggle deletes the row matched by filters if present, otherwise inserts
// row. It returns whether the row exists afterwards. A duplicate insert
// caused by a concurrent toggle counts as present.
func toggle(ctx context.Context, data backend.DataService, table string, filters []backend.Filter, row any) (bool, error) {
	n, err := data.Count(ctx, backend.From(table).Where(filters...))
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", table, err)
	}
	if n > 0 {
		if _, err := data.Delete(ctx, backend.From(table).Where(filters...)); err != nil {
			return true, fmt.Errorf("failed to delete from %s: %w", table, err)
		}
		return false, nil
	}
	if err := data.Insert(ctx, table, row); err != nil && !errors.Is(err, apperr.ErrConflict) {
		return false, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return true, nil
}

// ToggleArticleLike flips the viewer's like and notifies the author on like.
func (s *SocialService) ToggleArticleLike(ctx context.Context, articleID string) (bool, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return false, err
	}
	author, err := s.articleAuthor(ctx, articleID)
	if err != nil {
		return false, err
	}
	liked, err := toggle(ctx, s.Data, models.ArticleLikesTable,
		[]backend.Filter{backend.Eq("article_id", articleID), backend.Eq("user_id", viewer)},
		models.ArticleLike{ArticleID: articleID, UserID: viewer, CreatedAt: s.Now()},
	)
	if err != nil {
		return false, err
	}
	if liked {
		s.notify(ctx, author, models.NotificationLike, NotificationRef{ArticleID: articleID})
	}
	return liked, nil
}

func (s *SocialService) ToggleSave(ctx context.Context, articleID string) (bool, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return false, err
	}
	return toggle(ctx, s.Data, models.SavedArticlesTable,
		[]backend.Filter{backend.Eq("user_id", viewer), backend.Eq("article_id", articleID)},
		models.SavedArticle{UserID: viewer, ArticleID: articleID, CreatedAt: s.Now()},
	)
}

// ToggleFollow flips whether the viewer follows target.
func (s *SocialService) ToggleFollow(ctx context.Context, target string) (bool, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return false, err
	}
	if target == viewer {
		return false, apperr.InvalidArg("cannot follow yourself")
	}
	following, err := toggle(ctx, s.Data, models.FollowersTable,
		[]backend.Filter{backend.Eq("follower_id", viewer), backend.Eq("following_id", target)},
		models.Follower{FollowerID: viewer, FollowingID: target, CreatedAt: s.Now()},
	)
	if err != nil {
		return false, err
	}
	if following {
		s.notify(ctx, target, models.NotificationFollow, NotificationRef{})
	}
	return following, nil
}

func (s *SocialService) IsFollowing(ctx context.Context, target string) (bool, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return false, err
	}
	n, err := s.Data.Count(ctx, backend.From(models.FollowersTable).Where(
		backend.Eq("follower_id", viewer), backend.Eq("following_id", target)))
	if err != nil {
		return false, fmt.Errorf("failed to read follow state: %w", err)
	}
	return n > 0, nil
}

// Followers returns the profiles following userID.
func (s *SocialService) Followers(ctx context.Context, userID string) ([]models.Profile, error) {
	var edges []models.Follower
	if err := s.Data.Select(ctx, backend.From(models.FollowersTable).Where(backend.Eq("following_id", userID)), &edges); err != nil {
		return nil, fmt.Errorf("failed to fetch followers: %w", err)
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.FollowerID
	}
	return s.profiles(ctx, ids)
}

// Following returns the profiles userID follows.
func (s *SocialService) Following(ctx context.Context, userID string) ([]models.Profile, error) {
	var edges []models.Follower
	if err := s.Data.Select(ctx, backend.From(models.FollowersTable).Where(backend.Eq("follower_id", userID)), &edges); err != nil {
		return nil, fmt.Errorf("failed to fetch following: %w", err)
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.FollowingID
	}
	return s.profiles(ctx, ids)
}

func (s *SocialService) profiles(ctx context.Context, ids []string) ([]models.Profile, error) {
	if len(ids) == 0 {
		return []models.Profile{}, nil
	}
	var out []models.Profile
	if err := s.Data.Select(ctx, backend.From(models.ProfilesTable).Where(backend.In("id", distinct(ids))), &out); err != nil {
		return nil, fmt.Errorf("failed to fetch profiles: %w", err)
	}
	return out, nil
}

func (s *SocialService) articleAuthor(ctx context.Context, articleID string) (string, error) {
	var articles []models.Article
	if err := s.Data.Select(ctx, backend.From(models.ArticlesTable).Where(backend.Eq("id", articleID)), &articles); err != nil {
		return "", fmt.Errorf("failed to fetch article: %w", err)
	}
	if len(articles) == 0 {
		return "", apperr.ErrNotFound
	}
	return articles[0].AuthorID, nil
}

// notify logs instead of failing: the toggle already happened.
func (s *SocialService) notify(ctx context.Context, recipient, kind string, ref NotificationRef) {
	if err := s.Notifications.Notify(ctx, recipient, kind, ref); err != nil {
		slog.WarnContext(ctx, "failed to notify", "recipient", recipient, "type", kind, "error", err)
	}
}
