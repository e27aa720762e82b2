package services

import (
	"context"
	"fmt"
	"strings"

	"outliers_server/backend"
	"outliers_server/models"
)

type SearchService struct {
	Articles *ArticleService
}

// SearchArticles finds articles whose title or content contains every keyword,
// case-insensitively, newest first.
func (s *SearchService) SearchArticles(ctx context.Context, query string, limit int) ([]models.Article, error) {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return []models.Article{}, nil
	}
	q := backend.From(models.ArticlesTable).OrderBy("created_at", true).Take(limit)
	for _, w := range words {
		q.Where(backend.Contains("search_text", w))
	}
	var out []models.Article
	if err := s.Articles.Data.Select(ctx, q, &out); err != nil {
		return nil, fmt.Errorf("failed to search articles: %w", err)
	}
	if err := s.Articles.decorate(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}
