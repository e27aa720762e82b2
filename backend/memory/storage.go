package memory

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"outliers_server/apperr"
	"outliers_server/backend"
)

type object struct {
	body        []byte
	contentType string
}

// Storage is an in-process ObjectStorage. URLs point at BaseURL.
type Storage struct {
	BaseURL string

	mu      sync.RWMutex
	buckets map[string]*bucket
}

type bucket struct {
	created time.Time
	objects map[string]object
}

func NewStorage(baseURL string) *Storage {
	return &Storage{BaseURL: strings.TrimRight(baseURL, "/"), buckets: map[string]*bucket{}}
}

func (s *Storage) EnsureBucket(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[name]; !ok {
		s.buckets[name] = &bucket{created: time.Now().UTC(), objects: map[string]object{}}
	}
	return nil
}

func (s *Storage) Upload(ctx context.Context, bucketName, path string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return errors.Wrap(err, "memory.Upload.Read")
	}
	if len(data) == 0 {
		return apperr.ErrEmptyUpload
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucketName]
	if !ok {
		return errors.Wrapf(apperr.ErrNotFound, "bucket %s", bucketName)
	}
	b.objects[path] = object{body: data, contentType: contentType}
	return nil
}

// Object returns a stored upload.
func (s *Storage) Object(bucketName, path string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buckets[bucketName]
	if !ok {
		return nil, "", false
	}
	o, ok := b.objects[path]
	return o.body, o.contentType, ok
}

func (s *Storage) PublicURL(bucketName, path string) string {
	return fmt.Sprintf("%s/%s/%s", s.BaseURL, bucketName, path)
}

func (s *Storage) SignedURL(_ context.Context, bucketName, path string, ttl time.Duration) (string, error) {
	if _, _, ok := s.Object(bucketName, path); !ok {
		return "", errors.Wrapf(apperr.ErrNotFound, "%s/%s", bucketName, path)
	}
	q := url.Values{}
	q.Set("expires", time.Now().Add(ttl).UTC().Format(time.RFC3339))
	return s.PublicURL(bucketName, path) + "?" + q.Encode(), nil
}

func (s *Storage) SignedUploadURL(_ context.Context, bucketName, path, contentType string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	_, ok := s.buckets[bucketName]
	s.mu.RUnlock()
	if !ok {
		return "", errors.Wrapf(apperr.ErrNotFound, "bucket %s", bucketName)
	}
	q := url.Values{}
	q.Set("content_type", contentType)
	q.Set("expires", time.Now().Add(ttl).UTC().Format(time.RFC3339))
	return s.PublicURL(bucketName, path) + "?" + q.Encode(), nil
}

func (s *Storage) ListBuckets(context.Context) ([]backend.Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]backend.Bucket, 0, len(s.buckets))
	for name, b := range s.buckets {
		out = append(out, backend.Bucket{Name: name, CreatedAt: b.created})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
