package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"outliers_server/apperr"
	"outliers_server/backend"
	"outliers_server/models"
)

// GroupService manages groups, membership, join requests and group chat.
type GroupService struct {
	Data          backend.DataService
	Storage       backend.ObjectStorage
	Notifications *NotificationService
	MediaBucket   string
	Now           func() time.Time
}

func NewGroupService(data backend.DataService, storage backend.ObjectStorage, notifications *NotificationService, mediaBucket string) *GroupService {
	return &GroupService{
		Data:          data,
		Storage:       storage,
		Notifications: notifications,
		MediaBucket:   mediaBucket,
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

type GroupInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Privacy     string `json:"privacy,omitempty"`
}

func (in *GroupInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperr.InvalidArg("group name is required")
	}
	switch in.Privacy {
	case "":
		in.Privacy = models.PrivacyPublic
	case models.PrivacyPublic, models.PrivacyPrivate:
	default:
		return apperr.InvalidArg("privacy must be public or private")
	}
	return nil
}

// MediaInput is the payload of a group or direct message. At least one
// field must be set.
type MediaInput struct {
	Content         string `json:"content,omitempty"`
	ImageURL        string `json:"image_url,omitempty"`
	VideoURL        string `json:"video_url,omitempty"`
	SharedArticleID string `json:"shared_article_id,omitempty"`
}

func (in *MediaInput) normalize() error {
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" && in.ImageURL == "" && in.VideoURL == "" && in.SharedArticleID == "" {
		return apperr.ErrUnsupportedPayload
	}
	return nil
}

// Create stores the group and makes the viewer its first admin.
func (s *GroupService) Create(ctx context.Context, in GroupInput) (models.Group, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return models.Group{}, err
	}
	if err := in.normalize(); err != nil {
		return models.Group{}, err
	}
	now := s.Now()
	g := models.Group{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		AvatarURL:   in.AvatarURL,
		Privacy:     in.Privacy,
		CreatedBy:   viewer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Data.Insert(ctx, models.GroupsTable, g); err != nil {
		return models.Group{}, fmt.Errorf("failed to create group: %w", err)
	}
	admin := models.GroupMember{GroupID: g.ID, UserID: viewer, Role: models.RoleAdmin, JoinedAt: now}
	if err := s.Data.Insert(ctx, models.GroupMembersTable, admin); err != nil {
		if _, derr := s.Data.Delete(context.WithoutCancel(ctx), backend.From(models.GroupsTable).Where(backend.Eq("id", g.ID))); derr != nil {
			slog.ErrorContext(ctx, "failed to remove group after member insert failed", "group_id", g.ID, "error", derr)
		}
		return models.Group{}, fmt.Errorf("failed to add group admin: %w", err)
	}
	return g, nil
}

func (s *GroupService) Get(ctx context.Context, id string) (models.Group, error) {
	var groups []models.Group
	if err := s.Data.Select(ctx, backend.From(models.GroupsTable).Where(backend.Eq("id", id)), &groups); err != nil {
		return models.Group{}, fmt.Errorf("failed to fetch group: %w", err)
	}
	if len(groups) == 0 {
		return models.Group{}, apperr.ErrNotFound
	}
	return groups[0], nil
}

// List returns all groups, newest first.
func (s *GroupService) List(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	if err := s.Data.Select(ctx, backend.From(models.GroupsTable).OrderBy("created_at", true), &groups); err != nil {
		return nil, fmt.Errorf("failed to fetch groups: %w", err)
	}
	return groups, nil
}

// Mine returns the groups the viewer belongs to.
func (s *GroupService) Mine(ctx context.Context) ([]models.Group, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return nil, err
	}
	var memberships []models.GroupMember
	if err := s.Data.Select(ctx, backend.From(models.GroupMembersTable).Where(backend.Eq("user_id", viewer)), &memberships); err != nil {
		return nil, fmt.Errorf("failed to fetch memberships: %w", err)
	}
	if len(memberships) == 0 {
		return []models.Group{}, nil
	}
	ids := make([]string, len(memberships))
	for i, m := range memberships {
		ids[i] = m.GroupID
	}
	var groups []models.Group
	q := backend.From(models.GroupsTable).Where(backend.In("id", ids)).OrderBy("updated_at", true)
	if err := s.Data.Select(ctx, q, &groups); err != nil {
		return nil, fmt.Errorf("failed to fetch groups: %w", err)
	}
	return groups, nil
}

// Update changes group settings. Admins only.
func (s *GroupService) Update(ctx context.Context, id string, in GroupInput) (models.Group, error) {
	if err := in.normalize(); err != nil {
		return models.Group{}, err
	}
	if err := s.requireAdmin(ctx, id); err != nil {
		return models.Group{}, err
	}
	_, err := s.Data.Update(ctx, backend.From(models.GroupsTable).Where(backend.Eq("id", id)), backend.Values{
		"name":        in.Name,
		"description": in.Description,
		"avatar_url":  in.AvatarURL,
		"privacy":     in.Privacy,
		"updated_at":  s.Now(),
	})
	if err != nil {
		return models.Group{}, fmt.Errorf("failed to update group: %w", err)
	}
	return s.Get(ctx, id)
}

// Members lists members with their profiles, admins first.
func (s *GroupService) Members(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	var members []models.GroupMember
	if err := s.Data.Select(ctx, backend.From(models.GroupMembersTable).Where(backend.Eq("group_id", groupID)).OrderBy("joined_at", false), &members); err != nil {
		return nil, fmt.Errorf("failed to fetch members: %w", err)
	}
	if len(members) == 0 {
		return []models.GroupMember{}, nil
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	var profiles []models.Profile
	if err := s.Data.Select(ctx, backend.From(models.ProfilesTable).Where(backend.In("id", ids)), &profiles); err != nil {
		return nil, fmt.Errorf("failed to fetch member profiles: %w", err)
	}
	byID := make(map[string]models.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	admins := make([]models.GroupMember, 0, len(members))
	rest := make([]models.GroupMember, 0, len(members))
	for _, m := range members {
		if p, ok := byID[m.UserID]; ok {
			m.Profile = &p
		}
		if m.Role == models.RoleAdmin {
			admins = append(admins, m)
		} else {
			rest = append(rest, m)
		}
	}
	return append(admins, rest...), nil
}

// Join adds the viewer to a public group or files a join request for a
// private one. It returns "member" or "pending".
func (s *GroupService) Join(ctx context.Context, groupID string) (string, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return "", err
	}
	g, err := s.Get(ctx, groupID)
	if err != nil {
		return "", err
	}
	if _, err := s.membership(ctx, groupID, viewer); err == nil {
		return "", apperr.ErrAlreadyMember
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return "", err
	}

	now := s.Now()
	if g.Privacy == models.PrivacyPublic {
		err := s.Data.Insert(ctx, models.GroupMembersTable, models.GroupMember{
			GroupID: groupID, UserID: viewer, Role: models.RoleMember, JoinedAt: now,
		})
		if err != nil && !errors.Is(err, apperr.ErrConflict) {
			return "", fmt.Errorf("failed to join group: %w", err)
		}
		return models.RoleMember, nil
	}

	req := models.JoinRequest{GroupID: groupID, UserID: viewer, Status: models.StatusPending, CreatedAt: now}
	if err := s.Data.Insert(ctx, models.JoinRequestsTable, req); err != nil {
		if !errors.Is(err, apperr.ErrConflict) {
			return "", fmt.Errorf("failed to request to join: %w", err)
		}
		// A declined request may be filed again.
		if _, err := s.Data.Update(ctx,
			backend.From(models.JoinRequestsTable).Where(backend.Eq("group_id", groupID), backend.Eq("user_id", viewer)),
			backend.Values{"status": models.StatusPending, "created_at": now},
		); err != nil {
			return "", fmt.Errorf("failed to request to join: %w", err)
		}
	}
	if err := s.Notifications.Notify(ctx, g.CreatedBy, models.NotificationJoinRequest, NotificationRef{GroupID: groupID}); err != nil {
		slog.WarnContext(ctx, "failed to notify group owner", "group_id", groupID, "error", err)
	}
	return models.StatusPending, nil
}

// Requests lists pending join requests. Admins only.
func (s *GroupService) Requests(ctx context.Context, groupID string) ([]models.JoinRequest, error) {
	if err := s.requireAdmin(ctx, groupID); err != nil {
		return nil, err
	}
	var reqs []models.JoinRequest
	q := backend.From(models.JoinRequestsTable).
		Where(backend.Eq("group_id", groupID), backend.Eq("status", models.StatusPending)).
		OrderBy("created_at", false)
	if err := s.Data.Select(ctx, q, &reqs); err != nil {
		return nil, fmt.Errorf("failed to fetch join requests: %w", err)
	}
	return reqs, nil
}

// Approve accepts a pending request and adds the requester as member.
func (s *GroupService) Approve(ctx context.Context, groupID, userID string) error {
	if err := s.resolveRequest(ctx, groupID, userID, models.StatusApproved); err != nil {
		return err
	}
	err := s.Data.Insert(ctx, models.GroupMembersTable, models.GroupMember{
		GroupID: groupID, UserID: userID, Role: models.RoleMember, JoinedAt: s.Now(),
	})
	if err != nil && !errors.Is(err, apperr.ErrConflict) {
		return fmt.Errorf("failed to add member: %w", err)
	}
	if err := s.Notifications.Notify(ctx, userID, models.NotificationJoinApproved, NotificationRef{GroupID: groupID}); err != nil {
		slog.WarnContext(ctx, "failed to notify approved member", "group_id", groupID, "error", err)
	}
	return nil
}

func (s *GroupService) Decline(ctx context.Context, groupID, userID string) error {
	return s.resolveRequest(ctx, groupID, userID, models.StatusDeclined)
}

func (s *GroupService) resolveRequest(ctx context.Context, groupID, userID, status string) error {
	if err := s.requireAdmin(ctx, groupID); err != nil {
		return err
	}
	n, err := s.Data.Update(ctx,
		backend.From(models.JoinRequestsTable).Where(
			backend.Eq("group_id", groupID),
			backend.Eq("user_id", userID),
			backend.Eq("status", models.StatusPending),
		),
		backend.Values{"status": status},
	)
	if err != nil {
		return fmt.Errorf("failed to update join request: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *GroupService) Leave(ctx context.Context, groupID string) error {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return err
	}
	return s.removeMember(ctx, groupID, viewer)
}

// RemoveMember removes another user. Admins only.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, userID string) error {
	if err := s.requireAdmin(ctx, groupID); err != nil {
		return err
	}
	return s.removeMember(ctx, groupID, userID)
}

func (s *GroupService) removeMember(ctx context.Context, groupID, userID string) error {
	n, err := s.Data.Delete(ctx, backend.From(models.GroupMembersTable).Where(
		backend.Eq("group_id", groupID), backend.Eq("user_id", userID)))
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SendMessage posts to a group the viewer belongs to.
func (s *GroupService) SendMessage(ctx context.Context, groupID string, in MediaInput) (models.GroupMessage, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return models.GroupMessage{}, err
	}
	if err := in.normalize(); err != nil {
		return models.GroupMessage{}, err
	}
	if err := s.requireMember(ctx, groupID, viewer); err != nil {
		return models.GroupMessage{}, err
	}
	m := models.GroupMessage{
		ID:              uuid.NewString(),
		GroupID:         groupID,
		SenderID:        viewer,
		Content:         in.Content,
		ImageURL:        in.ImageURL,
		VideoURL:        in.VideoURL,
		SharedArticleID: in.SharedArticleID,
		CreatedAt:       s.Now(),
	}
	if err := s.Data.Insert(ctx, models.GroupMessagesTable, m); err != nil {
		return models.GroupMessage{}, fmt.Errorf("failed to send group message: %w", err)
	}
	if _, err := s.Data.Update(ctx, backend.From(models.GroupsTable).Where(backend.Eq("id", groupID)),
		backend.Values{"updated_at": m.CreatedAt}); err != nil && !errors.Is(err, apperr.ErrForbidden) {
		slog.WarnContext(ctx, "failed to bump group", "group_id", groupID, "error", err)
	}
	return m, nil
}

// Messages returns the group's messages in ascending time order.
// Members only.
func (s *GroupService) Messages(ctx context.Context, groupID string, limit int) ([]models.GroupMessage, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, groupID, viewer); err != nil {
		return nil, err
	}
	var msgs []models.GroupMessage
	q := backend.From(models.GroupMessagesTable).Where(backend.Eq("group_id", groupID)).OrderBy("created_at", true).Take(limit)
	if err := s.Data.Select(ctx, q, &msgs); err != nil {
		return nil, fmt.Errorf("failed to fetch group messages: %w", err)
	}
	// Newest-first page, shown oldest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// UploadMedia stores an image or video for a group message and returns its
// public URL. Members only.
func (s *GroupService) UploadMedia(ctx context.Context, groupID, filename, contentType string, body io.Reader) (string, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return "", err
	}
	if err := s.requireMember(ctx, groupID, viewer); err != nil {
		return "", err
	}
	key := objectPath("groups/"+groupID, "media", filename)
	if err := s.Storage.Upload(ctx, s.MediaBucket, key, body, contentType); err != nil {
		return "", fmt.Errorf("failed to upload group media: %w", err)
	}
	return s.Storage.PublicURL(s.MediaBucket, key), nil
}

func (s *GroupService) membership(ctx context.Context, groupID, userID string) (models.GroupMember, error) {
	var rows []models.GroupMember
	q := backend.From(models.GroupMembersTable).Where(backend.Eq("group_id", groupID), backend.Eq("user_id", userID))
	if err := s.Data.Select(ctx, q, &rows); err != nil {
		return models.GroupMember{}, fmt.Errorf("failed to fetch membership: %w", err)
	}
	if len(rows) == 0 {
		return models.GroupMember{}, apperr.ErrNotFound
	}
	return rows[0], nil
}

func (s *GroupService) requireMember(ctx context.Context, groupID, userID string) error {
	_, err := s.membership(ctx, groupID, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.ErrForbidden
	}
	return err
}

func (s *GroupService) requireAdmin(ctx context.Context, groupID string) error {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return err
	}
	m, err := s.membership(ctx, groupID, viewer)
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && m.Role != models.RoleAdmin) {
		return apperr.ErrNotGroupAdmin
	}
	return err
}
