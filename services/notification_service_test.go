package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outliers_server/models"
)

func TestNotificationService(t *testing.T) {
	t.Run("self notifications are skipped", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.notifications.Notify(as("alice"), "alice", models.NotificationLike, NotificationRef{}))
		assert.Empty(t, f.notificationsOf(t, "alice"))
	})

	t.Run("happy path - list, count and mark read", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.notifications.Notify(as("bob"), "alice", models.NotificationFollow, NotificationRef{}))
		require.NoError(t, f.notifications.Notify(as("carol"), "alice", models.NotificationComment, NotificationRef{ArticleID: "a1"}))
		require.NoError(t, f.notifications.Notify(as("carol"), "bob", models.NotificationFollow, NotificationRef{}))

		list := f.notificationsOf(t, "alice")
		require.Len(t, list, 2)
		assert.Equal(t, models.NotificationComment, list[0].Type, "newest first")
		assert.Equal(t, "a1", list[0].ArticleID)

		n, err := f.notifications.UnreadCount(as("alice"))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		require.NoError(t, f.notifications.MarkRead(as("alice"), list[0].ID))
		n, err = f.notifications.UnreadCount(as("alice"))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		marked, err := f.notifications.MarkAllRead(as("alice"))
		require.NoError(t, err)
		assert.Equal(t, 1, marked)
		n, err = f.notifications.UnreadCount(as("alice"))
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = f.notifications.UnreadCount(as("bob"))
		require.NoError(t, err)
		assert.Equal(t, 1, n, "other users are untouched")
	})

	t.Run("marking someone else's notification changes nothing", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.notifications.Notify(as("bob"), "alice", models.NotificationFollow, NotificationRef{}))
		id := f.notificationsOf(t, "alice")[0].ID

		require.NoError(t, f.notifications.MarkRead(as("mallory"), id))
		n, err := f.notifications.UnreadCount(as("alice"))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestPoller(t *testing.T) {
	t.Run("reports only changes", func(t *testing.T) {
		f := newFixture(t)
		var badges []int
		p := NewPoller(f.notifications, time.Hour, func(n int) { badges = append(badges, n) })
		assert.Equal(t, -1, p.Badge())

		p.Poll(as("alice"))
		p.Poll(as("alice"))
		require.NoError(t, f.notifications.Notify(as("bob"), "alice", models.NotificationFollow, NotificationRef{}))
		p.Poll(as("alice"))

		assert.Equal(t, []int{0, 1}, badges)
		assert.Equal(t, 1, p.Badge())
	})

	t.Run("a failed poll keeps the last badge", func(t *testing.T) {
		f := newFixture(t)
		p := NewPoller(f.notifications, time.Hour, nil)
		p.Poll(as("alice"))

		ctx, cancel := context.WithCancel(as("alice"))
		cancel()
		p.Poll(ctx)
		assert.Equal(t, 0, p.Badge())
	})

	t.Run("start polls until stopped", func(t *testing.T) {
		f := newFixture(t)
		badges := make(chan int, 8)
		p := NewPoller(f.notifications, 10*time.Millisecond, func(n int) { badges <- n })
		p.Start(as("alice"))
		p.Start(as("alice"))

		select {
		case n := <-badges:
			assert.Equal(t, 0, n)
		case <-time.After(time.Second):
			t.Fatal("no initial badge")
		}

		require.NoError(t, f.notifications.Notify(as("bob"), "alice", models.NotificationFollow, NotificationRef{}))
		select {
		case n := <-badges:
			assert.Equal(t, 1, n)
		case <-time.After(time.Second):
			t.Fatal("badge not refreshed")
		}

		p.Stop()
		p.Stop()
	})
}
