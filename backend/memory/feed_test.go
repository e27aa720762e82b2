package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outliers_server/backend"
)

func TestFeed_CloseReleasesSubscriber(t *testing.T) {
	feed := NewFeed()
	sub, err := feed.Subscribe(context.Background(), "messages")
	require.NoError(t, err)
	assert.Equal(t, 1, feed.Subscribers())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, feed.Subscribers())

	select {
	case _, ok := <-sub.Events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events channel not closed")
	}
}

func TestFeed_ContextCancelReleasesSubscriber(t *testing.T) {
	feed := NewFeed()
	ctx, cancel := context.WithCancel(context.Background())
	_, err := feed.Subscribe(ctx, "messages")
	require.NoError(t, err)
	cancel()
	assert.Eventually(t, func() bool { return feed.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestFeed_PublishDoesNotBlock(t *testing.T) {
	feed := NewFeed()
	sub, err := feed.Subscribe(context.Background(), "messages")
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < 500; i++ {
		require.NoError(t, feed.Publish(context.Background(), backend.Event{Table: "messages", Record: []byte(`{}`)}))
	}
	for i := 0; i < 500; i++ {
		<-sub.Events
	}
}

func TestFeed_TableIsolation(t *testing.T) {
	feed := NewFeed()
	sub, err := feed.Subscribe(context.Background(), "message_likes")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, feed.Publish(context.Background(), backend.Event{Table: "messages", Record: []byte(`{}`)}))
	select {
	case <-sub.Events:
		t.Fatal("event from another table delivered")
	case <-time.After(50 * time.Millisecond):
	}
}
