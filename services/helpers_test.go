package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"outliers_server/backend"
	"outliers_server/backend/memory"
	"outliers_server/models"
)

func as(userID string) context.Context {
	return backend.WithActor(context.Background(), userID)
}

// clock advances one second per reading so rows get distinct timestamps.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	data    *memory.Store
	storage *memory.Storage
	clock   *clock

	notifications *NotificationService
	articles      *ArticleService
	comments      *CommentService
	social        *SocialService
	groups        *GroupService
	dms           *DirectMessageService
	profiles      *ProfileService
	search        *SearchService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		data:    memory.NewStore(nil),
		storage: memory.NewStorage("http://cdn.test"),
		clock:   newClock(),
	}
	require.NoError(t, f.storage.EnsureBucket(context.Background(), "media"))
	require.NoError(t, f.storage.EnsureBucket(context.Background(), "avatars"))

	f.notifications = NewNotificationService(f.data)
	f.notifications.Now = f.clock.now
	f.articles = NewArticleService(f.data, f.storage, "media")
	f.articles.Now = f.clock.now
	f.comments = NewCommentService(f.data, f.notifications)
	f.comments.Now = f.clock.now
	f.social = NewSocialService(f.data, f.notifications)
	f.social.Now = f.clock.now
	f.groups = NewGroupService(f.data, f.storage, f.notifications, "media")
	f.groups.Now = f.clock.now
	f.dms = NewDirectMessageService(f.data, f.storage, f.notifications, "media")
	f.dms.Now = f.clock.now
	f.profiles = NewProfileService(f.data, f.storage, "avatars", time.Minute)
	f.profiles.Now = f.clock.now
	f.search = &SearchService{Articles: f.articles}
	return f
}

func (f *fixture) profile(t *testing.T, id, username string) models.Profile {
	t.Helper()
	p := models.Profile{ID: id, Username: username, CreatedAt: f.clock.now()}
	require.NoError(t, f.data.Insert(as(id), models.ProfilesTable, p))
	return p
}

func (f *fixture) article(t *testing.T, author, title, content string) models.Article {
	t.Helper()
	a, err := f.articles.Create(as(author), ArticleInput{Title: title, Content: content})
	require.NoError(t, err)
	return a
}

func (f *fixture) notificationsOf(t *testing.T, userID string) []models.Notification {
	t.Helper()
	list, err := f.notifications.List(as(userID), 0)
	require.NoError(t, err)
	return list
}
