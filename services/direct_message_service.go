package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"outliers_server/apperr"
	"outliers_server/backend"
	"outliers_server/models"
)

// DirectMessageService handles sender/receiver threads that may carry media
// or a shared article.
type DirectMessageService struct {
	Data          backend.DataService
	Storage       backend.ObjectStorage
	Notifications *NotificationService
	MediaBucket   string
	Now           func() time.Time
}

func NewDirectMessageService(data backend.DataService, storage backend.ObjectStorage, notifications *NotificationService, mediaBucket string) *DirectMessageService {
	return &DirectMessageService{
		Data:          data,
		Storage:       storage,
		Notifications: notifications,
		MediaBucket:   mediaBucket,
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *DirectMessageService) Send(ctx context.Context, receiverID string, in MediaInput) (models.DirectMessage, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return models.DirectMessage{}, err
	}
	if receiverID == "" || receiverID == viewer {
		return models.DirectMessage{}, apperr.InvalidArg("invalid receiver")
	}
	if err := in.normalize(); err != nil {
		return models.DirectMessage{}, err
	}
	m := models.DirectMessage{
		ID:              uuid.NewString(),
		SenderID:        viewer,
		ReceiverID:      receiverID,
		Content:         in.Content,
		ImageURL:        in.ImageURL,
		VideoURL:        in.VideoURL,
		SharedArticleID: in.SharedArticleID,
		CreatedAt:       s.Now(),
	}
	if err := s.Data.Insert(ctx, models.DirectMessagesTable, m); err != nil {
		return models.DirectMessage{}, fmt.Errorf("failed to send direct message: %w", err)
	}
	if err := s.Notifications.Notify(ctx, receiverID, models.NotificationDirectMessage, NotificationRef{ArticleID: in.SharedArticleID}); err != nil {
		slog.WarnContext(ctx, "failed to notify receiver", "receiver_id", receiverID, "error", err)
	}
	return m, nil
}

// Thread returns the messages between the viewer and other, oldest first.
func (s *DirectMessageService) Thread(ctx context.Context, other string) ([]models.DirectMessage, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return nil, err
	}
	var sent, received []models.DirectMessage
	if err := s.Data.Select(ctx, backend.From(models.DirectMessagesTable).Where(
		backend.Eq("sender_id", viewer), backend.Eq("receiver_id", other)), &sent); err != nil {
		return nil, fmt.Errorf("failed to fetch sent messages: %w", err)
	}
	if err := s.Data.Select(ctx, backend.From(models.DirectMessagesTable).Where(
		backend.Eq("receiver_id", viewer), backend.Eq("sender_id", other)), &received); err != nil {
		return nil, fmt.Errorf("failed to fetch received messages: %w", err)
	}
	thread := append(sent, received...)
	sort.SliceStable(thread, func(i, j int) bool {
		return thread[i].CreatedAt.Before(thread[j].CreatedAt)
	})
	return thread, nil
}

// Partners lists the users the viewer has exchanged direct messages with,
// most recent first.
func (s *DirectMessageService) Partners(ctx context.Context) ([]models.Profile, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return nil, err
	}
	var sent, received []models.DirectMessage
	if err := s.Data.Select(ctx, backend.From(models.DirectMessagesTable).Where(backend.Eq("sender_id", viewer)), &sent); err != nil {
		return nil, fmt.Errorf("failed to fetch sent messages: %w", err)
	}
	if err := s.Data.Select(ctx, backend.From(models.DirectMessagesTable).Where(backend.Eq("receiver_id", viewer)), &received); err != nil {
		return nil, fmt.Errorf("failed to fetch received messages: %w", err)
	}
	latest := map[string]time.Time{}
	for _, m := range sent {
		if m.CreatedAt.After(latest[m.ReceiverID]) {
			latest[m.ReceiverID] = m.CreatedAt
		}
	}
	for _, m := range received {
		if m.CreatedAt.After(latest[m.SenderID]) {
			latest[m.SenderID] = m.CreatedAt
		}
	}
	if len(latest) == 0 {
		return []models.Profile{}, nil
	}
	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	var profiles []models.Profile
	if err := s.Data.Select(ctx, backend.From(models.ProfilesTable).Where(backend.In("id", ids)), &profiles); err != nil {
		return nil, fmt.Errorf("failed to fetch partner profiles: %w", err)
	}
	sort.SliceStable(profiles, func(i, j int) bool {
		return latest[profiles[i].ID].After(latest[profiles[j].ID])
	})
	return profiles, nil
}

// UploadMedia stores an attachment and returns its public URL.
func (s *DirectMessageService) UploadMedia(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return "", err
	}
	key := objectPath("dm/"+viewer, "media", filename)
	if err := s.Storage.Upload(ctx, s.MediaBucket, key, body, contentType); err != nil {
		return "", fmt.Errorf("failed to upload attachment: %w", err)
	}
	return s.Storage.PublicURL(s.MediaBucket, key), nil
}
