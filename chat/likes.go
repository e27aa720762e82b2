package chat

import (
	"context"

	"github.com/pkg/errors"

	"outliers_server/apperr"
	"outliers_server/backend"
	"outliers_server/models"
)

// LikeMessage likes a loaded message. The local count is patched at once and
// marked provisional until the change feed or ReconcileLikes confirms it.
// Liking twice is a no-op.
func (s *Store) LikeMessage(ctx context.Context, id string) error {
	return s.toggleLike(ctx, id, true)
}

// UnlikeMessage removes the viewer's like. Unliking a message that is not
// liked is a no-op.
func (s *Store) UnlikeMessage(ctx context.Context, id string) error {
	return s.toggleLike(ctx, id, false)
}

func (s *Store) toggleLike(ctx context.Context, id string, like bool) error {
	s.mu.Lock()
	i := s.messageIndex(id)
	if i < 0 || s.messages[i].Pending {
		s.mu.Unlock()
		return apperr.ErrUnknownMessage
	}
	prev := s.messages[i]
	if prev.IsLikedByMe == like {
		s.mu.Unlock()
		return nil
	}
	m := &s.messages[i]
	m.IsLikedByMe = like
	if like {
		m.LikesCount++
	} else if m.LikesCount > 0 {
		m.LikesCount--
	}
	m.LikesProvisional = true
	s.mu.Unlock()
	s.changed()

	rctx := s.ctx(ctx)
	var err error
	if like {
		err = s.data.Insert(rctx, models.MessageLikesTable, models.MessageLike{
			MessageID: id,
			UserID:    s.viewer,
			CreatedAt: s.now(),
		})
		if errors.Is(err, apperr.ErrConflict) {
			// Already liked remotely, e.g. from another device.
			s.log.Debug("duplicate like ignored", "message_id", id)
			return s.ReconcileLikes(ctx)
		}
	} else {
		_, err = s.data.Delete(rctx, backend.From(models.MessageLikesTable).Where(
			backend.Eq("message_id", id),
			backend.Eq("user_id", s.viewer),
		))
	}
	if err != nil {
		s.mu.Lock()
		if i := s.messageIndex(id); i >= 0 {
			s.messages[i].IsLikedByMe = prev.IsLikedByMe
			s.messages[i].LikesCount = prev.LikesCount
			s.messages[i].LikesProvisional = prev.LikesProvisional
		}
		s.mu.Unlock()
		s.changed()
		return s.fail("like_message", errors.Wrap(err, "chat.toggleLike"))
	}
	return nil
}

// ReconcileLikes recomputes likes_count and is_liked_by_me of the active
// messages from the like table and clears provisional marks.
func (s *Store) ReconcileLikes(ctx context.Context) error {
	s.mu.Lock()
	token, active := s.gen, s.activeID
	ids := make([]string, 0, len(s.messages))
	for _, m := range s.messages {
		if !m.Pending {
			ids = append(ids, m.ID)
		}
	}
	s.mu.Unlock()
	if active == "" || len(ids) == 0 {
		return nil
	}

	likes, err := s.loadLikes(s.ctx(ctx), ids)
	if err != nil {
		return s.fail("like_message", err)
	}

	s.mu.Lock()
	if token != s.gen {
		s.mu.Unlock()
		return nil
	}
	for i := range s.messages {
		if !s.messages[i].Pending {
			applyLikes(&s.messages[i], likes[s.messages[i].ID], s.viewer)
		}
	}
	s.mu.Unlock()
	s.changed()
	return nil
}

// loadLikes returns the liking user ids per message id.
func (s *Store) loadLikes(ctx context.Context, messageIDs []string) (map[string][]string, error) {
	var likes []models.MessageLike
	q := backend.From(models.MessageLikesTable).Where(backend.In("message_id", messageIDs))
	if err := s.data.Select(ctx, q, &likes); err != nil {
		return nil, errors.Wrap(err, "chat.loadLikes")
	}
	out := make(map[string][]string, len(messageIDs))
	for _, l := range likes {
		out[l.MessageID] = append(out[l.MessageID], l.UserID)
	}
	return out, nil
}

func applyLikes(m *models.Message, users []string, viewer string) {
	m.LikesCount = len(users)
	m.IsLikedByMe = false
	for _, u := range users {
		if u == viewer {
			m.IsLikedByMe = true
			break
		}
	}
	m.LikesProvisional = false
}
