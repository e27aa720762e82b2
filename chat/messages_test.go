package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outliers_server/apperr"
	"outliers_server/backend"
	"outliers_server/models"
)

// chatting sets up alice and bob with a fresh direct conversation that
// alice has open and bob has listed.
func chatting(t *testing.T) (*env, *Store, *Store, string) {
	t.Helper()
	ctx := context.Background()
	e := newEnv(t)
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	id, err := alice.StartConversation(ctx, "bob")
	require.NoError(t, err)
	_, err = bob.ListConversations(ctx)
	require.NoError(t, err)
	return e, alice, bob, id
}

// confirmed waits until no local message of s is pending.
func confirmed(t *testing.T, s *Store) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, m := range s.Messages() {
			if m.Pending {
				return false
			}
		}
		return true
	}, waitFor, tick)
}

func TestFetchMessages(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedConversation(t, "c1", epoch, "alice", "bob")
	e.seedMessage(t, "m1", "c1", "bob", "hi", epoch.Add(1*time.Minute))
	e.seedMessage(t, "m3", "c1", "alice", "hey", epoch.Add(3*time.Minute))
	e.seedMessage(t, "m2", "c1", "bob", "there?", epoch.Add(2*time.Minute))
	alice := e.user(t, "alice")

	_, err := alice.ListConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, alice.TotalUnread())

	require.NoError(t, alice.Select(ctx, "c1"))

	msgs := alice.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
	require.NotNil(t, msgs[0].Sender)
	assert.Equal(t, "bob", msgs[0].Sender.Username)

	assert.Equal(t, 2, e.count(t, models.MessageReadsTable, backend.Eq("user_id", "alice")))
	assert.Equal(t, 0, e.count(t, models.MessageReadsTable, backend.Eq("message_id", "m3")))
	assert.Equal(t, 0, conversation(alice.Conversations(), "c1").UnreadCount)
	assert.Equal(t, 0, alice.TotalUnread())

	// Fetching again does not duplicate receipts.
	require.NoError(t, alice.FetchMessages(ctx, "c1"))
	assert.Equal(t, 2, e.count(t, models.MessageReadsTable, backend.Eq("user_id", "alice")))

	_, err = alice.ListConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, alice.TotalUnread())
}

func TestFetchMessagesInactive(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedConversation(t, "c1", epoch, "alice", "bob")
	e.seedMessage(t, "m1", "c1", "bob", "hi", epoch.Add(time.Minute))
	alice := e.user(t, "alice")
	_, err := alice.ListConversations(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, alice.TotalUnread())

	require.NoError(t, alice.FetchMessages(ctx, "c1"))
	assert.Empty(t, alice.Messages())
	assert.Equal(t, 0, e.count(t, models.MessageReadsTable, backend.Eq("user_id", "alice")))
	assert.Equal(t, 1, conversation(alice.Conversations(), "c1").UnreadCount)
	assert.Equal(t, 1, alice.TotalUnread())

	require.NoError(t, alice.Select(ctx, "c1"))
	assert.Len(t, alice.Messages(), 1)
	assert.Equal(t, 1, e.count(t, models.MessageReadsTable, backend.Eq("user_id", "alice")))
	assert.Equal(t, 0, alice.TotalUnread())
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path - oi reaches both lists", func(t *testing.T) {
		e := newEnv(t)
		e.seedConversation(t, "older", epoch.Add(time.Hour), "bob", "carol")
		alice := e.user(t, "alice")
		bob := e.user(t, "bob")
		id, err := alice.StartConversation(ctx, "bob")
		require.NoError(t, err)
		_, err = bob.ListConversations(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"older", id}, ids(bob.Conversations()))

		e.clock.jump(2 * time.Hour)
		sent, err := alice.SendMessage(ctx, "  oi ")
		require.NoError(t, err)
		assert.Equal(t, "oi", sent.Content)
		assert.True(t, sent.Pending)

		local := alice.Messages()
		require.Len(t, local, 1)
		assert.Equal(t, sent.ID, local[0].ID)

		confirmed(t, alice)
		row := e.remoteMessage(t, sent.ID)
		assert.Equal(t, "alice", row.SenderID)
		assert.False(t, row.IsEdited)
		assert.False(t, row.IsDeleted)

		require.Eventually(t, func() bool {
			c := conversation(alice.Conversations(), id)
			return c.LastMessage != nil && c.LastMessage.ID == sent.ID
		}, waitFor, tick)
		assert.Equal(t, 0, alice.TotalUnread())

		require.Eventually(t, func() bool {
			list := bob.Conversations()
			return len(list) == 2 && list[0].ID == id && list[0].LastMessage != nil
		}, waitFor, tick)
		top := bob.Conversations()[0]
		assert.Equal(t, "oi", top.LastMessage.Content)
		assert.Equal(t, 1, top.UnreadCount)
		assert.Equal(t, 1, bob.TotalUnread())

		// The bump is stored remotely too.
		list, err := bob.ListConversations(ctx)
		require.NoError(t, err)
		assert.Equal(t, id, list[0].ID)
	})

	t.Run("sad path - blank text", func(t *testing.T) {
		_, alice, _, _ := chatting(t)
		_, err := alice.SendMessage(ctx, "   ")
		assert.ErrorIs(t, err, apperr.ErrEmptyMessage)
	})

	t.Run("sad path - no active conversation", func(t *testing.T) {
		e := newEnv(t)
		alice := e.user(t, "alice")
		_, err := alice.SendMessage(ctx, "oi")
		assert.ErrorIs(t, err, apperr.ErrNoActiveChat)
	})

	t.Run("sad path - failed write is rolled back", func(t *testing.T) {
		e, alice, _, _ := chatting(t)
		e.data.FailNext(models.MessagesTable, errors.New("offline"))
		_, err := alice.SendMessage(ctx, "oi")
		require.Error(t, err)
		assert.Empty(t, alice.Messages())
		assert.Equal(t, 0, e.count(t, models.MessagesTable))
		assert.Contains(t, e.notes["alice"].ops(), "send_message")
	})
}

func TestEditMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path - sender edits oi to olá", func(t *testing.T) {
		e, alice, bob, id := chatting(t)
		require.NoError(t, bob.Select(ctx, id))
		sent, err := alice.SendMessage(ctx, "oi")
		require.NoError(t, err)
		confirmed(t, alice)

		require.NoError(t, alice.EditMessage(ctx, sent.ID, "olá"))
		got, _ := find(alice.Messages(), sent.ID)
		assert.Equal(t, "olá", got.Content)
		assert.True(t, got.IsEdited)
		assert.Len(t, alice.Messages(), 1)
		assert.Equal(t, 1, e.count(t, models.MessagesTable))
		assert.Equal(t, "olá", e.remoteMessage(t, sent.ID).Content)

		require.Eventually(t, func() bool {
			m, i := find(bob.Messages(), sent.ID)
			return i >= 0 && m.Content == "olá" && m.IsEdited
		}, waitFor, tick)
	})

	t.Run("sad path - non-sender edit is rejected", func(t *testing.T) {
		e, alice, bob, id := chatting(t)
		sent, err := alice.SendMessage(ctx, "oi")
		require.NoError(t, err)
		confirmed(t, alice)
		require.NoError(t, bob.Select(ctx, id))

		err = bob.EditMessage(ctx, sent.ID, "hacked")
		assert.ErrorIs(t, err, apperr.ErrForbidden)
		got, _ := find(bob.Messages(), sent.ID)
		assert.Equal(t, "oi", got.Content)
		assert.False(t, got.IsEdited)
		assert.Equal(t, "oi", e.remoteMessage(t, sent.ID).Content)
		assert.Contains(t, e.notes["bob"].ops(), "edit_message")
	})

	t.Run("sad path - blank text and unknown message", func(t *testing.T) {
		_, alice, _, _ := chatting(t)
		assert.ErrorIs(t, alice.EditMessage(ctx, "x", " "), apperr.ErrEmptyMessage)
		assert.ErrorIs(t, alice.EditMessage(ctx, "x", "olá"), apperr.ErrUnknownMessage)
	})
}

func TestDeleteMessage(t *testing.T) {
	ctx := context.Background()
	e, alice, _, _ := chatting(t)

	var sent []models.Message
	for _, text := range []string{"one", "two", "three"} {
		m, err := alice.SendMessage(ctx, text)
		require.NoError(t, err)
		sent = append(sent, m)
	}
	confirmed(t, alice)

	target := sent[1].ID
	require.NoError(t, alice.DeleteMessage(ctx, target))

	msgs := alice.Messages()
	require.Len(t, msgs, 3)
	got, pos := find(msgs, target)
	assert.Equal(t, 1, pos)
	assert.True(t, got.IsDeleted)
	assert.Equal(t, models.DeletedPlaceholder, got.Content)

	row := e.remoteMessage(t, target)
	assert.True(t, row.IsDeleted)
	assert.Equal(t, models.DeletedPlaceholder, row.Content)

	assert.ErrorIs(t, alice.EditMessage(ctx, target, "back"), apperr.ErrMessageDeleted)
	assert.NoError(t, alice.DeleteMessage(ctx, target))
	assert.Equal(t, models.DeletedPlaceholder, e.remoteMessage(t, target).Content)
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedConversation(t, "c1", epoch, "alice", "bob")
	e.seedMessage(t, "m1", "c1", "bob", "hi", epoch)
	alice := e.user(t, "alice")

	require.NoError(t, alice.MarkRead(ctx, "m1"))
	require.NoError(t, alice.MarkRead(ctx, "m1"))
	assert.Equal(t, 1, e.count(t, models.MessageReadsTable))
}
