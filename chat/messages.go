package chat

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"outliers_server/apperr"
	"outliers_server/backend"
	"outliers_server/models"
)

// FetchMessages loads the messages of a conversation in ascending time
// order, joined with sender profiles and likes, and marks every message from
// other participants read. The loaded list replaces the active messages only
// if id is still the active conversation when the load completes; otherwise
// nothing is marked read.
func (s *Store) FetchMessages(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return apperr.ErrSessionClosed
	}
	token := s.gen
	s.mu.Unlock()

	rctx := s.ctx(ctx)
	msgs, profiles, err := s.loadMessages(rctx, id)
	if err != nil {
		return s.fail("fetch_messages", err)
	}

	s.mu.Lock()
	fresh := token == s.gen && s.activeID == id && !s.closed
	if fresh {
		for pid, p := range profiles {
			s.profiles[pid] = p
		}
		// Keep local sends that the load raced past.
		loaded := make(map[string]bool, len(msgs))
		for _, m := range msgs {
			loaded[m.ID] = true
		}
		for _, m := range s.messages {
			if m.Pending && !loaded[m.ID] {
				msgs = append(msgs, m)
			}
		}
		s.messages = msgs
	}
	s.mu.Unlock()
	if !fresh {
		// Only the watched conversation gets marked read.
		s.log.Debug("discarding stale message fetch", "conversation_id", id)
		return nil
	}

	incoming := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.SenderID != s.viewer && !m.Pending {
			incoming = append(incoming, m.ID)
		}
	}
	if err := s.markReadBatch(rctx, incoming); err != nil {
		s.changed()
		return s.fail("mark_read", err)
	}

	s.mu.Lock()
	if i := s.conversationIndex(id); i >= 0 {
		s.conversations[i].UnreadCount = 0
	}
	s.mu.Unlock()
	s.changed()
	return nil
}

func (s *Store) loadMessages(ctx context.Context, id string) ([]models.Message, map[string]models.Profile, error) {
	var msgs []models.Message
	q := backend.From(models.MessagesTable).
		Where(backend.Eq("conversation_id", id)).
		OrderBy("created_at", false)
	if err := s.data.Select(ctx, q, &msgs); err != nil {
		return nil, nil, errors.Wrap(err, "chat.FetchMessages.Messages")
	}
	if len(msgs) == 0 {
		return []models.Message{}, map[string]models.Profile{}, nil
	}

	senders := make([]string, len(msgs))
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		senders[i] = m.SenderID
		ids[i] = m.ID
	}
	profiles, err := s.loadProfiles(ctx, senders)
	if err != nil {
		return nil, nil, err
	}
	likes, err := s.loadLikes(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	for i := range msgs {
		m := &msgs[i]
		if p, ok := profiles[m.SenderID]; ok {
			m.Sender = &p
		}
		applyLikes(m, likes[m.ID], s.viewer)
	}
	return msgs, profiles, nil
}

// SendMessage appends the message locally as pending, then writes it. The
// pending entry is confirmed by the change feed and removed again if the
// write fails.
func (s *Store) SendMessage(ctx context.Context, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, apperr.ErrEmptyMessage
	}

	now := s.now()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.Message{}, apperr.ErrSessionClosed
	}
	if s.activeID == "" {
		s.mu.Unlock()
		return models.Message{}, apperr.ErrNoActiveChat
	}
	msg := models.Message{
		ID:             s.newID(),
		ConversationID: s.activeID,
		SenderID:       s.viewer,
		Content:        text,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	local := msg
	local.Pending = true
	if p, ok := s.profiles[s.viewer]; ok {
		local.Sender = &p
	}
	s.messages = append(s.messages, local)
	s.mu.Unlock()
	s.changed()

	rctx := s.ctx(ctx)
	if err := s.data.Insert(rctx, models.MessagesTable, msg); err != nil {
		s.mu.Lock()
		if i := s.messageIndex(msg.ID); i >= 0 {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
		}
		s.mu.Unlock()
		s.changed()
		return models.Message{}, s.fail("send_message", errors.Wrap(err, "chat.SendMessage.Insert"))
	}

	_, err := s.data.Update(rctx,
		backend.From(models.ConversationsTable).Where(backend.Eq("id", msg.ConversationID)),
		backend.Values{"updated_at": now},
	)
	if err != nil {
		// The message itself is stored; only the list ordering is affected.
		s.log.Warn("failed to bump conversation", "conversation_id", msg.ConversationID, "error", err)
	}
	return local, nil
}

// EditMessage replaces the text of one of the viewer's messages.
func (s *Store) EditMessage(ctx context.Context, id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return apperr.ErrEmptyMessage
	}
	if err := s.editable(id); err != nil {
		return err
	}

	now := s.now()
	n, err := s.data.Update(s.ctx(ctx),
		backend.From(models.MessagesTable).Where(backend.Eq("id", id)),
		backend.Values{"content": text, "is_edited": true, "updated_at": now},
	)
	if err == nil && n == 0 {
		err = apperr.ErrNotFound
	}
	if err != nil {
		return s.fail("edit_message", errors.Wrap(err, "chat.EditMessage"))
	}

	s.patchMessage(id, func(m *models.Message) {
		m.Content = text
		m.IsEdited = true
		m.UpdatedAt = now
	})
	return nil
}

// DeleteMessage soft-deletes one of the viewer's messages. The message keeps
// its position and shows DeletedPlaceholder.
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.messageIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return apperr.ErrUnknownMessage
	}
	if s.messages[i].IsDeleted {
		s.mu.Unlock()
		return nil
	}
	pending := s.messages[i].Pending
	s.mu.Unlock()
	if pending {
		return apperr.ErrUnknownMessage
	}

	now := s.now()
	n, err := s.data.Update(s.ctx(ctx),
		backend.From(models.MessagesTable).Where(backend.Eq("id", id)),
		backend.Values{"is_deleted": true, "content": models.DeletedPlaceholder, "updated_at": now},
	)
	if err == nil && n == 0 {
		err = apperr.ErrNotFound
	}
	if err != nil {
		return s.fail("delete_message", errors.Wrap(err, "chat.DeleteMessage"))
	}

	s.patchMessage(id, func(m *models.Message) {
		m.IsDeleted = true
		m.Content = models.DeletedPlaceholder
		m.UpdatedAt = now
	})
	return nil
}

// editable refuses edits of deleted, unconfirmed or unloaded messages.
func (s *Store) editable(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.messageIndex(id)
	if i < 0 || s.messages[i].Pending {
		return apperr.ErrUnknownMessage
	}
	if s.messages[i].IsDeleted {
		return apperr.ErrMessageDeleted
	}
	return nil
}

// patchMessage updates a loaded message and the matching last message.
func (s *Store) patchMessage(id string, fn func(*models.Message)) {
	s.mu.Lock()
	if i := s.messageIndex(id); i >= 0 {
		fn(&s.messages[i])
	}
	for i := range s.conversations {
		if lm := s.conversations[i].LastMessage; lm != nil && lm.ID == id {
			m := *lm
			fn(&m)
			s.conversations[i].LastMessage = &m
		}
	}
	s.mu.Unlock()
	s.changed()
}

// MarkRead stores a read receipt for the viewer unless one exists.
func (s *Store) MarkRead(ctx context.Context, messageID string) error {
	if err := s.markReadBatch(s.ctx(ctx), []string{messageID}); err != nil {
		return s.fail("mark_read", err)
	}
	return nil
}

func (s *Store) markReadBatch(ctx context.Context, ids []string) error {
	ids = distinct(ids)
	if len(ids) == 0 {
		return nil
	}
	var existing []models.MessageRead
	q := backend.From(models.MessageReadsTable).Where(
		backend.Eq("user_id", s.viewer),
		backend.In("message_id", ids),
	)
	if err := s.data.Select(ctx, q, &existing); err != nil {
		return errors.Wrap(err, "chat.markRead.Select")
	}
	done := make(map[string]bool, len(existing))
	for _, r := range existing {
		done[r.MessageID] = true
	}
	now := s.now()
	for _, id := range ids {
		if done[id] {
			continue
		}
		err := s.data.Insert(ctx, models.MessageReadsTable, models.MessageRead{
			MessageID: id,
			UserID:    s.viewer,
			ReadAt:    now,
		})
		if err != nil && !errors.Is(err, apperr.ErrConflict) {
			return errors.Wrap(err, "chat.markRead.Insert")
		}
	}
	return nil
}
