package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outliers_server/apperr"
	"outliers_server/backend"
	"outliers_server/models"
)

func messageEvent(t *testing.T, typ backend.EventType, m models.Message) backend.Event {
	t.Helper()
	item, err := backend.MarshalItem(m)
	require.NoError(t, err)
	return backend.NewEvent(models.MessagesTable, typ, item, nil)
}

func TestApply(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*env, *Store) {
		e := newEnv(t)
		e.seedConversation(t, "c1", epoch.Add(time.Hour), "alice", "bob")
		e.seedConversation(t, "c2", epoch.Add(2*time.Hour), "alice", "carol")
		alice := e.unstarted(t, "alice")
		_, err := alice.ListConversations(ctx)
		require.NoError(t, err)
		return e, alice
	}

	t.Run("happy path - incoming message raises unread and reorders", func(t *testing.T) {
		_, alice := setup(t)
		assert.Equal(t, []string{"c2", "c1"}, ids(alice.Conversations()))

		alice.Apply(messageEvent(t, backend.EventInsert, models.Message{
			ID: "m1", ConversationID: "c1", SenderID: "bob", Content: "hi", CreatedAt: epoch.Add(3 * time.Hour),
		}))
		list := alice.Conversations()
		assert.Equal(t, []string{"c1", "c2"}, ids(list))
		assert.Equal(t, 1, list[0].UnreadCount)
		assert.Equal(t, "hi", list[0].LastMessage.Content)
		assert.Equal(t, 1, alice.TotalUnread())

		// Redelivery is not counted twice.
		alice.Apply(messageEvent(t, backend.EventInsert, models.Message{
			ID: "m1", ConversationID: "c1", SenderID: "bob", Content: "hi", CreatedAt: epoch.Add(3 * time.Hour),
		}))
		assert.Equal(t, 1, alice.TotalUnread())
	})

	t.Run("happy path - older incoming message after own message still counts", func(t *testing.T) {
		_, alice := setup(t)
		at := epoch.Add(3 * time.Hour)
		alice.Apply(messageEvent(t, backend.EventInsert, models.Message{
			ID: "a1", ConversationID: "c1", SenderID: "alice", Content: "mine", CreatedAt: at,
		}))
		alice.Apply(messageEvent(t, backend.EventInsert, models.Message{
			ID: "b1", ConversationID: "c1", SenderID: "bob", Content: "crossed", CreatedAt: at.Add(-time.Millisecond),
		}))

		c1 := conversation(alice.Conversations(), "c1")
		assert.Equal(t, 1, c1.UnreadCount)
		assert.Equal(t, "a1", c1.LastMessage.ID)
		assert.Equal(t, 1, alice.TotalUnread())

		alice.Apply(messageEvent(t, backend.EventInsert, models.Message{
			ID: "b1", ConversationID: "c1", SenderID: "bob", Content: "crossed", CreatedAt: at.Add(-time.Millisecond),
		}))
		assert.Equal(t, 1, alice.TotalUnread())
	})

	t.Run("happy path - messages counted by the load are not counted again", func(t *testing.T) {
		e := newEnv(t)
		e.seedConversation(t, "c1", epoch.Add(time.Hour), "alice", "bob")
		e.seedMessage(t, "m1", "c1", "bob", "first", epoch.Add(time.Minute))
		e.seedMessage(t, "m2", "c1", "bob", "second", epoch.Add(2*time.Minute))
		alice := e.unstarted(t, "alice")
		_, err := alice.ListConversations(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, alice.TotalUnread())

		alice.Apply(messageEvent(t, backend.EventInsert, e.remoteMessage(t, "m1")))
		alice.Apply(messageEvent(t, backend.EventInsert, e.remoteMessage(t, "m2")))
		assert.Equal(t, 2, alice.TotalUnread())
		assert.Equal(t, "m2", conversation(alice.Conversations(), "c1").LastMessage.ID)
	})

	t.Run("happy path - own messages never raise unread", func(t *testing.T) {
		_, alice := setup(t)
		alice.Apply(messageEvent(t, backend.EventInsert, models.Message{
			ID: "m1", ConversationID: "c1", SenderID: "alice", Content: "hi", CreatedAt: epoch.Add(3 * time.Hour),
		}))
		assert.Equal(t, 0, alice.TotalUnread())
		assert.Equal(t, "c1", alice.Conversations()[0].ID)
	})

	t.Run("happy path - unknown conversation is ignored", func(t *testing.T) {
		_, alice := setup(t)
		before := alice.Snapshot()
		alice.Apply(messageEvent(t, backend.EventInsert, models.Message{
			ID: "m1", ConversationID: "elsewhere", SenderID: "bob", Content: "hi", CreatedAt: epoch.Add(3 * time.Hour),
		}))
		assert.Equal(t, before, alice.Snapshot())
	})

	t.Run("happy path - active conversation appends and marks read", func(t *testing.T) {
		e, alice := setup(t)
		require.NoError(t, alice.Select(ctx, "c1"))

		alice.Apply(messageEvent(t, backend.EventInsert, models.Message{
			ID: "m1", ConversationID: "c1", SenderID: "bob", Content: "hi", CreatedAt: epoch.Add(3 * time.Hour),
		}))
		msgs := alice.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "m1", msgs[0].ID)
		assert.Equal(t, 0, conversation(alice.Conversations(), "c1").UnreadCount)
		assert.Equal(t, 0, alice.TotalUnread())
		assert.Equal(t, 1, e.count(t, models.MessageReadsTable,
			backend.Eq("message_id", "m1"), backend.Eq("user_id", "alice")))
	})

	t.Run("happy path - update patches message and last message", func(t *testing.T) {
		_, alice := setup(t)
		require.NoError(t, alice.Select(ctx, "c1"))
		m := models.Message{ID: "m1", ConversationID: "c1", SenderID: "bob", Content: "hi", CreatedAt: epoch.Add(3 * time.Hour)}
		alice.Apply(messageEvent(t, backend.EventInsert, m))

		m.Content, m.IsEdited = "hello", true
		alice.Apply(messageEvent(t, backend.EventUpdate, m))
		assert.Equal(t, "hello", alice.Messages()[0].Content)
		assert.True(t, alice.Messages()[0].IsEdited)
		assert.Equal(t, "hello", conversation(alice.Conversations(), "c1").LastMessage.Content)
	})

	t.Run("happy path - like events from others adjust counts", func(t *testing.T) {
		_, alice := setup(t)
		require.NoError(t, alice.Select(ctx, "c1"))
		alice.Apply(messageEvent(t, backend.EventInsert, models.Message{
			ID: "m1", ConversationID: "c1", SenderID: "alice", Content: "hi", CreatedAt: epoch.Add(3 * time.Hour),
		}))

		like, err := backend.MarshalItem(models.MessageLike{MessageID: "m1", UserID: "bob"})
		require.NoError(t, err)
		alice.Apply(backend.NewEvent(models.MessageLikesTable, backend.EventInsert, like, nil))
		assert.Equal(t, 1, alice.Messages()[0].LikesCount)

		alice.Apply(backend.NewEvent(models.MessageLikesTable, backend.EventDelete, like, nil))
		alice.Apply(backend.NewEvent(models.MessageLikesTable, backend.EventDelete, like, nil))
		assert.Equal(t, 0, alice.Messages()[0].LikesCount)
	})
}

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.user(t, "alice")
	assert.Equal(t, 2, e.feed.Subscribers())

	changes := make(chan Snapshot, 4)
	stop := alice.OnChange(func(s Snapshot) { changes <- s })
	require.NoError(t, alice.Select(ctx, ""))
	select {
	case snap := <-changes:
		assert.Empty(t, snap.ActiveID)
	case <-time.After(waitFor):
		t.Fatal("listener not called")
	}
	stop()

	alice.Close()
	alice.Close()
	assert.Equal(t, 0, e.feed.Subscribers())
	assert.ErrorIs(t, alice.Select(ctx, "c1"), apperr.ErrSessionClosed)
	_, err := alice.ListConversations(ctx)
	assert.ErrorIs(t, err, apperr.ErrSessionClosed)
	_, err = alice.SendMessage(ctx, "oi")
	assert.ErrorIs(t, err, apperr.ErrSessionClosed)
	assert.ErrorIs(t, alice.Start(ctx), apperr.ErrSessionClosed)
}
