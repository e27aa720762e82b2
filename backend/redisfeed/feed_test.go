package redisfeed

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outliers_server/backend"
	"outliers_server/models"
)

func TestChannel(t *testing.T) {
	assert.Equal(t, "realtime:messages", Channel(models.MessagesTable))
}

// Requires a Redis server; set OUTLIERS_TEST_REDIS_ADDR to run.
func TestFeed_Roundtrip(t *testing.T) {
	addr := os.Getenv("OUTLIERS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("OUTLIERS_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())

	feed := NewFeed(rdb)
	sub, err := feed.Subscribe(ctx, models.MessagesTable, backend.Eq("conversation_id", "c1"))
	require.NoError(t, err)

	publish := func(id, conversation string) {
		m := models.Message{ID: id, ConversationID: conversation, SenderID: "alice", Content: id}
		item, err := backend.MarshalItem(m)
		require.NoError(t, err)
		require.NoError(t, feed.Publish(ctx, backend.NewEvent(models.MessagesTable, backend.EventInsert, item, nil)))
	}
	publish("other", "c2")
	publish("m1", "c1")

	select {
	case ev := <-sub.Events:
		var m models.Message
		require.NoError(t, ev.Decode(&m))
		assert.Equal(t, "m1", m.ID, "filtered events are skipped")
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}

	sub.Close()
	sub.Close()
	select {
	case _, ok := <-sub.Events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed")
	}
}
