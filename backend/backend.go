// Package backend defines the boundary to the hosted data platform: a
// table store with per-row ownership rules, a realtime change feed and an
// object store.
package backend

//go:generate mockgen -destination=mocks/mock_backend.go -package=mocks outliers_server/backend DataService,Feed,ObjectStorage

import (
	"context"
	"io"
	"time"
)

// DataService is a table store. Mutations act as the user carried by
// WithActor and fail with apperr.ErrForbidden when a touched row's owner
// column names someone else.
type DataService interface {
	// Select decodes matching rows into out, which must point to a slice.
	Select(ctx context.Context, q *Query, out any) error
	Count(ctx context.Context, q *Query) (int, error)
	// Insert fails with apperr.ErrConflict when a row with the same key exists.
	Insert(ctx context.Context, table string, rows ...any) error
	Update(ctx context.Context, q *Query, set Values) (int, error)
	Delete(ctx context.Context, q *Query) (int, error)
}

// Feed delivers row changes to subscribers.
type Feed interface {
	Subscribe(ctx context.Context, table string, filters ...Filter) (*Subscription, error)
	Publish(ctx context.Context, ev Event) error
}

type Bucket struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ObjectStorage stores user uploads in named buckets.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context, bucket string) error
	Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) error
	PublicURL(bucket, path string) string
	SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error)
	// SignedUploadURL lets a browser PUT an object directly.
	SignedUploadURL(ctx context.Context, bucket, path, contentType string, ttl time.Duration) (string, error)
	ListBuckets(ctx context.Context) ([]Bucket, error)
}
