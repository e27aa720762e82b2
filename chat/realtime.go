package chat

import (
	"outliers_server/backend"
	"outliers_server/metrics"
	"outliers_server/models"
)

// Apply patches local state with one change event. Own messages never raise
// unread counters, and messages of conversations not in the local list are
// ignored until the next refresh.
func (s *Store) Apply(ev backend.Event) {
	switch ev.Table {
	case models.MessagesTable:
		var m models.Message
		if err := ev.Decode(&m); err != nil {
			s.drop("undecodable", err)
			return
		}
		switch ev.Type {
		case backend.EventInsert:
			s.applyNewMessage(m)
		case backend.EventUpdate:
			s.applyMessageUpdate(m)
		case backend.EventDelete:
			s.applyMessageRemoval(m)
		default:
			s.drop("unknown_type", nil)
			return
		}
	case models.MessageLikesTable:
		var l models.MessageLike
		if err := ev.Decode(&l); err != nil {
			s.drop("undecodable", err)
			return
		}
		switch ev.Type {
		case backend.EventInsert:
			s.applyLike(l, true)
		case backend.EventDelete:
			s.applyLike(l, false)
		default:
			return
		}
	default:
		s.drop("unknown_table", nil)
		return
	}
	metrics.RealtimeEvents.WithLabelValues(ev.Table, string(ev.Type)).Inc()
}

func (s *Store) drop(reason string, err error) {
	metrics.DroppedEvents.WithLabelValues(reason).Inc()
	if err != nil {
		s.log.Warn("dropping realtime event", "reason", reason, "error", err)
	}
}

func (s *Store) applyNewMessage(m models.Message) {
	own := m.SenderID == s.viewer

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	ci := s.conversationIndex(m.ConversationID)
	active := m.ConversationID == s.activeID && s.activeID != ""
	if ci < 0 && !active {
		s.mu.Unlock()
		s.drop("unknown_conversation", nil)
		return
	}
	if p, ok := s.profiles[m.SenderID]; ok {
		m.Sender = &p
	}

	inList := false
	if active {
		if i := s.messageIndex(m.ID); i >= 0 {
			inList = true
			// Confirmation of a local send: keep like state, drop the marker.
			m.LikesCount = s.messages[i].LikesCount
			m.IsLikedByMe = s.messages[i].IsLikedByMe
			m.LikesProvisional = s.messages[i].LikesProvisional
			s.messages[i] = m
		} else {
			s.messages = append(s.messages, m)
		}
	}
	if ci >= 0 {
		c := &s.conversations[ci]
		// Seen ids are already reflected in the unread count, whatever
		// their timestamps.
		seen := s.known[c.ID]
		if seen == nil {
			seen = map[string]bool{}
			s.known[c.ID] = seen
		}
		counted := seen[m.ID]
		seen[m.ID] = true
		if c.LastMessage == nil || c.LastMessage.ID == m.ID || !m.CreatedAt.Before(c.LastMessage.CreatedAt) {
			lm := m
			c.LastMessage = &lm
		}
		if m.CreatedAt.After(c.UpdatedAt) {
			c.UpdatedAt = m.CreatedAt
		}
		if !own && !active && !counted {
			c.UnreadCount++
		}
		s.sortConversationsLocked()
	}
	s.mu.Unlock()
	s.changed()

	if active && !own && !inList {
		if err := s.markReadBatch(s.runCtx, []string{m.ID}); err != nil {
			s.log.Warn("failed to mark pushed message read", "message_id", m.ID, "error", err)
		}
	}
}

func (s *Store) applyMessageUpdate(m models.Message) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	touched := false
	if i := s.messageIndex(m.ID); i >= 0 {
		cur := &s.messages[i]
		cur.Content = m.Content
		cur.IsEdited = m.IsEdited
		cur.IsDeleted = m.IsDeleted
		cur.UpdatedAt = m.UpdatedAt
		touched = true
	}
	if ci := s.conversationIndex(m.ConversationID); ci >= 0 {
		if lm := s.conversations[ci].LastMessage; lm != nil && lm.ID == m.ID {
			next := *lm
			next.Content = m.Content
			next.IsEdited = m.IsEdited
			next.IsDeleted = m.IsDeleted
			next.UpdatedAt = m.UpdatedAt
			s.conversations[ci].LastMessage = &next
			touched = true
		}
	}
	s.mu.Unlock()
	if touched {
		s.changed()
	}
}

func (s *Store) applyMessageRemoval(m models.Message) {
	s.mu.Lock()
	i := s.messageIndex(m.ID)
	if i >= 0 {
		s.messages = append(s.messages[:i], s.messages[i+1:]...)
	}
	s.mu.Unlock()
	if i >= 0 {
		s.changed()
	}
}

// applyLike adjusts counts for a like row change. The viewer's own changes
// are already applied locally and only confirm the provisional state.
func (s *Store) applyLike(l models.MessageLike, added bool) {
	s.mu.Lock()
	i := s.messageIndex(l.MessageID)
	if i < 0 || s.closed {
		s.mu.Unlock()
		return
	}
	m := &s.messages[i]
	if l.UserID == s.viewer {
		if m.IsLikedByMe != added {
			m.IsLikedByMe = added
			m.LikesCount = adjust(m.LikesCount, added)
		}
		m.LikesProvisional = false
	} else {
		m.LikesCount = adjust(m.LikesCount, added)
	}
	s.mu.Unlock()
	s.changed()
}

func adjust(n int, up bool) int {
	if up {
		return n + 1
	}
	if n > 0 {
		return n - 1
	}
	return 0
}
