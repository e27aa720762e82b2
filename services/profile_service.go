package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"outliers_server/apperr"
	"outliers_server/backend"
	"outliers_server/models"
)

// ProfileService reads and edits profiles and their images.
type ProfileService struct {
	Data         backend.DataService
	Storage      backend.ObjectStorage
	AvatarBucket string
	SignedTTL    time.Duration
	Now          func() time.Time
}

func NewProfileService(data backend.DataService, storage backend.ObjectStorage, avatarBucket string, signedTTL time.Duration) *ProfileService {
	return &ProfileService{
		Data:         data,
		Storage:      storage,
		AvatarBucket: avatarBucket,
		SignedTTL:    signedTTL,
		Now:          func() time.Time { return time.Now().UTC() },
	}
}

type ProfileUpdate struct {
	Username    *string           `json:"username,omitempty"`
	FullName    *string           `json:"full_name,omitempty"`
	Bio         *string           `json:"bio,omitempty"`
	Sector      *string           `json:"sector,omitempty"`
	SocialLinks map[string]string `json:"social_links,omitempty"`
}

func (s *ProfileService) Get(ctx context.Context, id string) (models.Profile, error) {
	return s.one(ctx, backend.Eq("id", id))
}

func (s *ProfileService) GetByUsername(ctx context.Context, username string) (models.Profile, error) {
	return s.one(ctx, backend.Eq("username", strings.ToLower(strings.TrimSpace(username))))
}

func (s *ProfileService) one(ctx context.Context, f backend.Filter) (models.Profile, error) {
	var out []models.Profile
	if err := s.Data.Select(ctx, backend.From(models.ProfilesTable).Where(f), &out); err != nil {
		return models.Profile{}, fmt.Errorf("failed to fetch profile: %w", err)
	}
	if len(out) == 0 {
		return models.Profile{}, apperr.ErrNotFound
	}
	return out[0], nil
}

// Ensure returns the viewer's profile, creating it on first login. The
// username falls back to a handle derived from the user id when the wanted
// one is empty or taken.
func (s *ProfileService) Ensure(ctx context.Context, username string) (models.Profile, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return models.Profile{}, err
	}
	p, err := s.Get(ctx, viewer)
	if err == nil || !errors.Is(err, apperr.ErrNotFound) {
		return p, err
	}

	handle := strings.ToLower(strings.TrimSpace(username))
	if handle != "" {
		if _, err := s.GetByUsername(ctx, handle); err == nil {
			handle = ""
		}
	}
	if handle == "" {
		handle = "user-" + strings.ReplaceAll(viewer, "-", "")
		if len(handle) > 13 {
			handle = handle[:13]
		}
	}
	p = models.Profile{ID: viewer, Username: handle, CreatedAt: s.Now()}
	if err := s.Data.Insert(ctx, models.ProfilesTable, p); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return s.Get(ctx, viewer)
		}
		return models.Profile{}, fmt.Errorf("failed to create profile: %w", err)
	}
	return p, nil
}

// Update edits the viewer's own profile. Usernames stay unique.
func (s *ProfileService) Update(ctx context.Context, in ProfileUpdate) (models.Profile, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return models.Profile{}, err
	}
	set := backend.Values{}
	if in.Username != nil {
		handle := strings.ToLower(strings.TrimSpace(*in.Username))
		if handle == "" {
			return models.Profile{}, apperr.InvalidArg("username cannot be empty")
		}
		existing, err := s.GetByUsername(ctx, handle)
		switch {
		case err == nil && existing.ID != viewer:
			return models.Profile{}, apperr.ErrConflict
		case err != nil && !errors.Is(err, apperr.ErrNotFound):
			return models.Profile{}, err
		}
		set["username"] = handle
	}
	if in.FullName != nil {
		set["full_name"] = strings.TrimSpace(*in.FullName)
	}
	if in.Bio != nil {
		set["bio"] = *in.Bio
	}
	if in.Sector != nil {
		set["sector"] = *in.Sector
	}
	if in.SocialLinks != nil {
		set["social_links"] = in.SocialLinks
	}
	if len(set) == 0 {
		return s.Get(ctx, viewer)
	}
	if _, err := s.Data.Update(ctx, backend.From(models.ProfilesTable).Where(backend.Eq("id", viewer)), set); err != nil {
		return models.Profile{}, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.Get(ctx, viewer)
}

// UploadAvatar stores a new avatar and saves its public URL on the profile.
func (s *ProfileService) UploadAvatar(ctx context.Context, filename, contentType string, body io.Reader) (models.Profile, error) {
	return s.uploadImage(ctx, "avatar", "avatar_url", filename, contentType, body)
}

func (s *ProfileService) UploadBanner(ctx context.Context, filename, contentType string, body io.Reader) (models.Profile, error) {
	return s.uploadImage(ctx, "banner", "banner_url", filename, contentType, body)
}

func (s *ProfileService) uploadImage(ctx context.Context, kind, column, filename, contentType string, body io.Reader) (models.Profile, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return models.Profile{}, err
	}
	if !strings.HasPrefix(contentType, "image/") {
		return models.Profile{}, apperr.InvalidArg("only images can be uploaded")
	}
	key := objectPath(viewer, kind, filename)
	if err := s.Storage.Upload(ctx, s.AvatarBucket, key, body, contentType); err != nil {
		return models.Profile{}, fmt.Errorf("failed to upload %s: %w", kind, err)
	}
	url := s.Storage.PublicURL(s.AvatarBucket, key)
	if _, err := s.Data.Update(ctx, backend.From(models.ProfilesTable).Where(backend.Eq("id", viewer)), backend.Values{column: url}); err != nil {
		return models.Profile{}, fmt.Errorf("failed to save %s: %w", kind, err)
	}
	return s.Get(ctx, viewer)
}

// UploadURL returns a presigned URL the browser can PUT an image to, and
// the public URL it will have afterwards.
func (s *ProfileService) UploadURL(ctx context.Context, filename, contentType string) (string, string, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return "", "", err
	}
	key := objectPath(viewer, "upload", filename)
	signed, err := s.Storage.SignedUploadURL(ctx, s.AvatarBucket, key, contentType, s.SignedTTL)
	if err != nil {
		return "", "", fmt.Errorf("failed to presign upload: %w", err)
	}
	return signed, s.Storage.PublicURL(s.AvatarBucket, key), nil
}

// ReadURL returns a short-lived signed URL for an object in the avatar
// bucket, for buckets that are not publicly readable.
func (s *ProfileService) ReadURL(ctx context.Context, key string) (string, error) {
	if _, err := viewerFrom(ctx); err != nil {
		return "", err
	}
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return "", apperr.InvalidArg("key is required")
	}
	signed, err := s.Storage.SignedURL(ctx, s.AvatarBucket, key, s.SignedTTL)
	if err != nil {
		return "", fmt.Errorf("failed to presign read: %w", err)
	}
	return signed, nil
}
