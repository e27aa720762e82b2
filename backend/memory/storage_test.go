package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outliers_server/apperr"
)

func TestStorage(t *testing.T) {
	ctx := context.Background()
	s := NewStorage("http://localhost:8080/storage/")
	require.NoError(t, s.EnsureBucket(ctx, "avatars"))
	require.NoError(t, s.EnsureBucket(ctx, "avatars"))

	t.Run("happy path - upload and urls", func(t *testing.T) {
		require.NoError(t, s.Upload(ctx, "avatars", "u1/a.png", strings.NewReader("png"), "image/png"))
		body, ct, ok := s.Object("avatars", "u1/a.png")
		require.True(t, ok)
		assert.Equal(t, "png", string(body))
		assert.Equal(t, "image/png", ct)
		assert.Equal(t, "http://localhost:8080/storage/avatars/u1/a.png", s.PublicURL("avatars", "u1/a.png"))

		signed, err := s.SignedURL(ctx, "avatars", "u1/a.png", time.Minute)
		require.NoError(t, err)
		assert.Contains(t, signed, "expires=")
	})

	t.Run("sad path - empty upload", func(t *testing.T) {
		err := s.Upload(ctx, "avatars", "u1/b.png", strings.NewReader(""), "image/png")
		assert.ErrorIs(t, err, apperr.ErrEmptyUpload)
	})

	t.Run("sad path - missing bucket", func(t *testing.T) {
		err := s.Upload(ctx, "nope", "x", strings.NewReader("x"), "text/plain")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	buckets, err := s.ListBuckets(ctx)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, "avatars", buckets[0].Name)
}
