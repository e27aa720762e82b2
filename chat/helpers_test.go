package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"outliers_server/backend"
	"outliers_server/backend/memory"
	"outliers_server/logger"
	"outliers_server/models"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// testClock advances one second per reading so every write gets a
// distinct time.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *testClock) jump(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (l *noticeLog) add(n Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notices = append(l.notices, n)
}

func (l *noticeLog) ops() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.notices))
	for i, n := range l.notices {
		out[i] = n.Op
	}
	return out
}

type env struct {
	data  *memory.Store
	feed  *memory.Feed
	clock *testClock
	users map[string]*Store
	notes map[string]*noticeLog
}

func newEnv(t *testing.T) *env {
	t.Helper()
	feed := memory.NewFeed()
	e := &env{
		data:  memory.NewStore(feed),
		feed:  feed,
		clock: &testClock{t: epoch},
		users: map[string]*Store{},
		notes: map[string]*noticeLog{},
	}
	return e
}

// user creates the profile and a started chat store for id.
func (e *env) user(t *testing.T, id string, data ...backend.DataService) *Store {
	t.Helper()
	s := e.unstarted(t, id, data...)
	require.NoError(t, s.Start(context.Background()))
	return s
}

// unstarted is user without the realtime subscriptions.
func (e *env) unstarted(t *testing.T, id string, data ...backend.DataService) *Store {
	t.Helper()
	ctx := backend.WithActor(context.Background(), id)
	require.NoError(t, e.data.Insert(ctx, models.ProfilesTable, models.Profile{ID: id, Username: id, CreatedAt: epoch}))
	var ds backend.DataService = e.data
	if len(data) > 0 {
		ds = data[0]
	}
	notes := &noticeLog{}
	s := New(id, ds, e.feed,
		WithLogger(logger.Discard()),
		WithClock(e.clock.now),
		WithNotifier(notes.add),
	)
	t.Cleanup(s.Close)
	e.users[id] = s
	e.notes[id] = notes
	return s
}

// seedConversation writes a conversation between members without going
// through a store.
func (e *env) seedConversation(t *testing.T, id string, updated time.Time, members ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.data.Insert(ctx, models.ConversationsTable,
		models.Conversation{ID: id, CreatedAt: epoch, UpdatedAt: updated}))
	for _, m := range members {
		require.NoError(t, e.data.Insert(ctx, models.ConversationParticipantsTable,
			models.ConversationParticipant{ConversationID: id, UserID: m, CreatedAt: epoch}))
	}
}

func (e *env) seedMessage(t *testing.T, id, conversationID, sender, content string, at time.Time) {
	t.Helper()
	ctx := backend.WithActor(context.Background(), sender)
	require.NoError(t, e.data.Insert(ctx, models.MessagesTable, models.Message{
		ID: id, ConversationID: conversationID, SenderID: sender, Content: content, CreatedAt: at, UpdatedAt: at,
	}))
}

func (e *env) remoteMessage(t *testing.T, id string) models.Message {
	t.Helper()
	var got []models.Message
	require.NoError(t, e.data.Select(context.Background(),
		backend.From(models.MessagesTable).Where(backend.Eq("id", id)), &got))
	require.Len(t, got, 1)
	return got[0]
}

func (e *env) count(t *testing.T, table string, filters ...backend.Filter) int {
	t.Helper()
	n, err := e.data.Count(context.Background(), backend.From(table).Where(filters...))
	require.NoError(t, err)
	return n
}

func ids(cs []models.Conversation) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func find(msgs []models.Message, id string) (models.Message, int) {
	for i, m := range msgs {
		if m.ID == id {
			return m, i
		}
	}
	return models.Message{}, -1
}

func conversation(cs []models.Conversation, id string) models.Conversation {
	for _, c := range cs {
		if c.ID == id {
			return c
		}
	}
	return models.Conversation{}
}

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)
