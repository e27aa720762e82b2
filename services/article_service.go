package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"outliers_server/apperr"
	"outliers_server/backend"
	"outliers_server/models"
)

// ArticleService handles article CRUD and decorates articles for the viewer.
type ArticleService struct {
	Data        backend.DataService
	Storage     backend.ObjectStorage
	MediaBucket string
	Now         func() time.Time
}

func NewArticleService(data backend.DataService, storage backend.ObjectStorage, mediaBucket string) *ArticleService {
	return &ArticleService{Data: data, Storage: storage, MediaBucket: mediaBucket, Now: func() time.Time { return time.Now().UTC() }}
}

type ArticleInput struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	CoverURL string `json:"cover_url,omitempty"`
	Sector   string `json:"sector,omitempty"`
}

func (in ArticleInput) validate() error {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" {
		return apperr.InvalidArg("title and content are required")
	}
	return nil
}

type ListArticlesParams struct {
	AuthorID string
	Sector   string
	Limit    int
}

// List returns articles newest first.
func (s *ArticleService) List(ctx context.Context, p ListArticlesParams) ([]models.Article, error) {
	q := backend.From(models.ArticlesTable).OrderBy("created_at", true).Take(p.Limit)
	if p.AuthorID != "" {
		q.Where(backend.Eq("author_id", p.AuthorID))
	}
	if p.Sector != "" {
		q.Where(backend.Eq("sector", p.Sector))
	}
	var articles []models.Article
	if err := s.Data.Select(ctx, q, &articles); err != nil {
		return nil, fmt.Errorf("failed to fetch articles: %w", err)
	}
	if err := s.decorate(ctx, articles); err != nil {
		return nil, err
	}
	return articles, nil
}

func (s *ArticleService) Get(ctx context.Context, id string) (models.Article, error) {
	var articles []models.Article
	if err := s.Data.Select(ctx, backend.From(models.ArticlesTable).Where(backend.Eq("id", id)), &articles); err != nil {
		return models.Article{}, fmt.Errorf("failed to fetch article: %w", err)
	}
	if len(articles) == 0 {
		return models.Article{}, apperr.ErrNotFound
	}
	if err := s.decorate(ctx, articles); err != nil {
		return models.Article{}, err
	}
	return articles[0], nil
}

func (s *ArticleService) Create(ctx context.Context, in ArticleInput) (models.Article, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return models.Article{}, err
	}
	if err := in.validate(); err != nil {
		return models.Article{}, err
	}
	now := s.Now()
	a := models.Article{
		ID:         uuid.NewString(),
		AuthorID:   viewer,
		Title:      strings.TrimSpace(in.Title),
		Content:    in.Content,
		CoverURL:   in.CoverURL,
		Sector:     in.Sector,
		SearchText: models.BuildSearchText(in.Title, in.Content),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Data.Insert(ctx, models.ArticlesTable, a); err != nil {
		return models.Article{}, fmt.Errorf("failed to create article: %w", err)
	}
	return a, nil
}

// Update rewrites an article. Only its author may do so.
func (s *ArticleService) Update(ctx context.Context, id string, in ArticleInput) (models.Article, error) {
	if err := in.validate(); err != nil {
		return models.Article{}, err
	}
	set := backend.Values{
		"title":       strings.TrimSpace(in.Title),
		"content":     in.Content,
		"cover_url":   in.CoverURL,
		"sector":      in.Sector,
		"search_text": models.BuildSearchText(in.Title, in.Content),
		"updated_at":  s.Now(),
	}
	n, err := s.Data.Update(ctx, backend.From(models.ArticlesTable).Where(backend.Eq("id", id)), set)
	if err != nil {
		return models.Article{}, fmt.Errorf("failed to update article: %w", err)
	}
	if n == 0 {
		return models.Article{}, apperr.ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *ArticleService) Delete(ctx context.Context, id string) error {
	n, err := s.Data.Delete(ctx, backend.From(models.ArticlesTable).Where(backend.Eq("id", id)))
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// UploadCover stores a cover image and returns its public URL.
func (s *ArticleService) UploadCover(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return "", err
	}
	key := objectPath(viewer, "cover", filename)
	if err := s.Storage.Upload(ctx, s.MediaBucket, key, body, contentType); err != nil {
		return "", fmt.Errorf("failed to upload cover: %w", err)
	}
	return s.Storage.PublicURL(s.MediaBucket, key), nil
}

// decorate fills author, like count and the viewer's like/save flags.
func (s *ArticleService) decorate(ctx context.Context, articles []models.Article) error {
	if len(articles) == 0 {
		return nil
	}
	ids := make([]string, len(articles))
	authors := make([]string, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
		authors[i] = a.AuthorID
	}

	var profiles []models.Profile
	if err := s.Data.Select(ctx, backend.From(models.ProfilesTable).Where(backend.In("id", distinct(authors))), &profiles); err != nil {
		return fmt.Errorf("failed to fetch authors: %w", err)
	}
	byID := make(map[string]models.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	var likes []models.ArticleLike
	if err := s.Data.Select(ctx, backend.From(models.ArticleLikesTable).Where(backend.In("article_id", ids)), &likes); err != nil {
		return fmt.Errorf("failed to fetch article likes: %w", err)
	}
	viewer := backend.ActorFrom(ctx)
	saved := map[string]bool{}
	if viewer != "" {
		var rows []models.SavedArticle
		q := backend.From(models.SavedArticlesTable).Where(backend.Eq("user_id", viewer), backend.In("article_id", ids))
		if err := s.Data.Select(ctx, q, &rows); err != nil {
			return fmt.Errorf("failed to fetch saved articles: %w", err)
		}
		for _, r := range rows {
			saved[r.ArticleID] = true
		}
	}

	for i := range articles {
		a := &articles[i]
		if p, ok := byID[a.AuthorID]; ok {
			a.Author = &p
		}
		for _, l := range likes {
			if l.ArticleID != a.ID {
				continue
			}
			a.LikesCount++
			if l.UserID == viewer {
				a.IsLikedByMe = true
			}
		}
		a.IsSavedByMe = saved[a.ID]
	}
	return nil
}

// SavedArticles lists the viewer's saved articles, most recently saved first.
func (s *ArticleService) SavedArticles(ctx context.Context) ([]models.Article, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return nil, err
	}
	var rows []models.SavedArticle
	q := backend.From(models.SavedArticlesTable).Where(backend.Eq("user_id", viewer)).OrderBy("created_at", true)
	if err := s.Data.Select(ctx, q, &rows); err != nil {
		return nil, fmt.Errorf("failed to fetch saved articles: %w", err)
	}
	if len(rows) == 0 {
		return []models.Article{}, nil
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ArticleID
	}
	var articles []models.Article
	if err := s.Data.Select(ctx, backend.From(models.ArticlesTable).Where(backend.In("id", ids)), &articles); err != nil {
		return nil, fmt.Errorf("failed to fetch articles: %w", err)
	}
	order := make(map[string]int, len(ids))
	for i, id := range ids {
		order[id] = i
	}
	sort.SliceStable(articles, func(i, j int) bool {
		return order[articles[i].ID] < order[articles[j].ID]
	})
	if err := s.decorate(ctx, articles); err != nil {
		return nil, err
	}
	return articles, nil
}
