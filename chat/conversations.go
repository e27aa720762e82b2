package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"outliers_server/apperr"
	"outliers_server/backend"
	"outliers_server/models"
)

// ListConversations reloads the viewer's conversations with their last
// message and unread count, newest activity first. On failure the previous
// list is kept.
func (s *Store) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, apperr.ErrSessionClosed
	}
	s.listGen++
	token := s.listGen
	s.mu.Unlock()

	list, profiles, known, err := s.loadConversations(s.ctx(ctx))
	if err != nil {
		return nil, s.fail("list_conversations", err)
	}

	s.mu.Lock()
	if token != s.listGen {
		s.mu.Unlock()
		s.log.Debug("discarding stale conversation list")
		return cloneConversations(list), nil
	}
	for id, p := range profiles {
		s.profiles[id] = p
	}
	// The active conversation is being watched, so nothing in it is unread.
	for i := range list {
		if list[i].ID == s.activeID {
			list[i].UnreadCount = 0
		}
	}
	s.conversations = list
	s.known = known
	out := cloneConversations(s.conversations)
	s.mu.Unlock()

	s.changed()
	return out, nil
}

// Refresh is ListConversations without the result.
func (s *Store) Refresh(ctx context.Context) error {
	_, err := s.ListConversations(ctx)
	return err
}

// loadConversations also returns, per conversation, the ids of the
// messages already reflected in the loaded unread counts.
func (s *Store) loadConversations(ctx context.Context) ([]models.Conversation, map[string]models.Profile, map[string]map[string]bool, error) {
	ids, err := s.conversationIDsOf(ctx, s.viewer)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(ids) == 0 {
		return []models.Conversation{}, map[string]models.Profile{}, map[string]map[string]bool{}, nil
	}

	var list []models.Conversation
	if err := s.data.Select(ctx, backend.From(models.ConversationsTable).Where(backend.In("id", ids)), &list); err != nil {
		return nil, nil, nil, errors.Wrap(err, "chat.ListConversations.Conversations")
	}

	var parts []models.ConversationParticipant
	if err := s.data.Select(ctx, backend.From(models.ConversationParticipantsTable).Where(backend.In("conversation_id", ids)), &parts); err != nil {
		return nil, nil, nil, errors.Wrap(err, "chat.ListConversations.Participants")
	}
	userIDs := make([]string, 0, len(parts))
	for _, p := range parts {
		userIDs = append(userIDs, p.UserID)
	}
	profiles, err := s.loadProfiles(ctx, userIDs)
	if err != nil {
		return nil, nil, nil, err
	}
	members := map[string][]models.Profile{}
	for _, p := range parts {
		prof, ok := profiles[p.UserID]
		if !ok {
			prof = models.Profile{ID: p.UserID}
		}
		members[p.ConversationID] = append(members[p.ConversationID], prof)
	}

	known := make(map[string]map[string]bool, len(list))
	for i := range list {
		c := &list[i]
		c.Participants = members[c.ID]

		var last []models.Message
		q := backend.From(models.MessagesTable).
			Where(backend.Eq("conversation_id", c.ID)).
			OrderBy("created_at", true).
			Take(1)
		if err := s.data.Select(ctx, q, &last); err != nil {
			return nil, nil, nil, errors.Wrap(err, "chat.ListConversations.LastMessage")
		}
		if len(last) > 0 {
			m := last[0]
			if p, ok := profiles[m.SenderID]; ok {
				m.Sender = &p
			}
			c.LastMessage = &m
		}

		unread, incoming, err := s.countUnread(ctx, c.ID)
		if err != nil {
			return nil, nil, nil, err
		}
		c.UnreadCount = unread
		seen := make(map[string]bool, len(incoming)+1)
		for _, id := range incoming {
			seen[id] = true
		}
		if c.LastMessage != nil {
			seen[c.LastMessage.ID] = true
		}
		known[c.ID] = seen
	}
	sortConversations(list)
	return list, profiles, known, nil
}

// countUnread counts messages in a conversation not sent by the viewer that
// have no read receipt from the viewer. It also returns the ids of all
// incoming messages it looked at.
func (s *Store) countUnread(ctx context.Context, conversationID string) (int, []string, error) {
	var incoming []models.Message
	q := backend.From(models.MessagesTable).Where(
		backend.Eq("conversation_id", conversationID),
		backend.Neq("sender_id", s.viewer),
	)
	if err := s.data.Select(ctx, q, &incoming); err != nil {
		return 0, nil, errors.Wrap(err, "chat.countUnread.Messages")
	}
	if len(incoming) == 0 {
		return 0, nil, nil
	}
	ids := make([]string, len(incoming))
	for i, m := range incoming {
		ids[i] = m.ID
	}
	read, err := s.data.Count(ctx, backend.From(models.MessageReadsTable).Where(
		backend.Eq("user_id", s.viewer),
		backend.In("message_id", ids),
	))
	if err != nil {
		return 0, nil, errors.Wrap(err, "chat.countUnread.Reads")
	}
	if n := len(incoming) - read; n > 0 {
		return n, ids, nil
	}
	return 0, ids, nil
}

func (s *Store) conversationIDsOf(ctx context.Context, userID string) ([]string, error) {
	var rows []models.ConversationParticipant
	q := backend.From(models.ConversationParticipantsTable).Where(backend.Eq("user_id", userID))
	if err := s.data.Select(ctx, q, &rows); err != nil {
		return nil, errors.Wrap(err, "chat.conversationIDsOf")
	}
	seen := map[string]bool{}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if !seen[r.ConversationID] {
			seen[r.ConversationID] = true
			ids = append(ids, r.ConversationID)
		}
	}
	return ids, nil
}

func (s *Store) loadProfiles(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	out := map[string]models.Profile{}
	ids = distinct(ids)
	if len(ids) == 0 {
		return out, nil
	}
	var profiles []models.Profile
	if err := s.data.Select(ctx, backend.From(models.ProfilesTable).Where(backend.In("id", ids)), &profiles); err != nil {
		return nil, errors.Wrap(err, "chat.loadProfiles")
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

// Select makes id the active conversation and loads its messages. An empty
// id clears the active conversation.
func (s *Store) Select(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return apperr.ErrSessionClosed
	}
	s.activeID = id
	s.gen++
	s.messages = nil
	s.mu.Unlock()
	s.changed()

	if id == "" {
		return nil
	}
	return s.FetchMessages(ctx, id)
}

// StartConversation returns the direct conversation between the viewer and
// target, creating it if needed, and makes it active.
func (s *Store) StartConversation(ctx context.Context, target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", apperr.ErrInvalid
	}
	if target == s.viewer {
		return "", apperr.ErrSelfConversation
	}
	if s.isClosed() {
		return "", apperr.ErrSessionClosed
	}
	rctx := s.ctx(ctx)

	id, err := s.findConversation(rctx, target)
	if err != nil {
		return "", s.fail("start_conversation", err)
	}
	if id == "" {
		id, err = s.createConversation(rctx, target)
		if err != nil {
			return "", s.fail("start_conversation", err)
		}
	}

	s.mu.Lock()
	known := s.conversationIndex(id) >= 0
	s.mu.Unlock()
	if !known {
		if err := s.Refresh(ctx); err != nil {
			return id, err
		}
	}
	if err := s.Select(ctx, id); err != nil {
		return id, err
	}
	return id, nil
}

// findConversation intersects the participations of viewer and target, then
// falls back to the pair claim.
func (s *Store) findConversation(ctx context.Context, target string) (string, error) {
	mine, err := s.conversationIDsOf(ctx, s.viewer)
	if err != nil {
		return "", err
	}
	theirs, err := s.conversationIDsOf(ctx, target)
	if err != nil {
		return "", err
	}
	set := make(map[string]bool, len(theirs))
	for _, id := range theirs {
		set[id] = true
	}
	for _, id := range mine {
		if set[id] {
			return id, nil
		}
	}
	return s.claimedConversation(ctx, models.PairKey(s.viewer, target))
}

func (s *Store) claimedConversation(ctx context.Context, key string) (string, error) {
	var claims []models.ConversationPair
	if err := s.data.Select(ctx, backend.From(models.ConversationPairsTable).Where(backend.Eq("pair_key", key)), &claims); err != nil {
		return "", errors.Wrap(err, "chat.claimedConversation")
	}
	if len(claims) == 0 {
		return "", nil
	}
	return claims[0].ConversationID, nil
}

// createConversation claims the pair key first so that concurrent starts
// from both sides converge on one conversation. Rows written before a
// failure are removed again.
func (s *Store) createConversation(ctx context.Context, target string) (string, error) {
	key := models.PairKey(s.viewer, target)
	now := s.now()
	id := s.newID()

	err := s.data.Insert(ctx, models.ConversationPairsTable, models.ConversationPair{
		PairKey:        key,
		ConversationID: id,
		CreatedAt:      now,
	})
	if errors.Is(err, apperr.ErrConflict) {
		winner, lookupErr := s.claimedConversation(ctx, key)
		if lookupErr != nil {
			return "", lookupErr
		}
		if winner == "" {
			return "", errors.Wrap(err, "chat.createConversation.Claim")
		}
		s.log.Info("conversation already claimed", "conversation_id", winner)
		return winner, nil
	}
	if err != nil {
		return "", errors.Wrap(err, "chat.createConversation.Claim")
	}

	undo := []*backend.Query{
		backend.From(models.ConversationPairsTable).Where(backend.Eq("pair_key", key)),
	}
	rollback := func(cause error) error {
		for i := len(undo) - 1; i >= 0; i-- {
			if _, err := s.data.Delete(context.WithoutCancel(ctx), undo[i]); err != nil {
				s.log.Error("rollback of conversation creation failed", "table", undo[i].Table, "error", err)
			}
		}
		return cause
	}

	if err := s.data.Insert(ctx, models.ConversationsTable, models.Conversation{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return "", rollback(errors.Wrap(err, "chat.createConversation.Conversation"))
	}
	undo = append(undo, backend.From(models.ConversationsTable).Where(backend.Eq("id", id)))

	if err := s.data.Insert(ctx, models.ConversationParticipantsTable,
		models.ConversationParticipant{ConversationID: id, UserID: s.viewer, CreatedAt: now},
		models.ConversationParticipant{ConversationID: id, UserID: target, CreatedAt: now},
	); err != nil {
		return "", rollback(errors.Wrap(err, "chat.createConversation.Participants"))
	}
	s.log.Info(fmt.Sprintf("✅ conversation created with %s", target), "conversation_id", id)
	return id, nil
}

func distinct(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
