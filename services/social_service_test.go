package services

import (
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outliers_server/apperr"
	"outliers_server/backend/mocks"
	"outliers_server/models"
)

func TestSocialService_ToggleArticleLike(t *testing.T) {
	t.Run("happy path - like notifies the author and unlike removes the like", func(t *testing.T) {
		f := newFixture(t)
		a := f.article(t, "bob", "Scaling teams", "Notes on hiring")

		liked, err := f.social.ToggleArticleLike(as("alice"), a.ID)
		require.NoError(t, err)
		assert.True(t, liked)

		got, err := f.articles.Get(as("alice"), a.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.LikesCount)
		assert.True(t, got.IsLikedByMe)

		notes := f.notificationsOf(t, "bob")
		require.Len(t, notes, 1)
		assert.Equal(t, models.NotificationLike, notes[0].Type)
		assert.Equal(t, "alice", notes[0].ActorID)
		assert.Equal(t, a.ID, notes[0].ArticleID)

		liked, err = f.social.ToggleArticleLike(as("alice"), a.ID)
		require.NoError(t, err)
		assert.False(t, liked)

		got, err = f.articles.Get(as("alice"), a.ID)
		require.NoError(t, err)
		assert.Zero(t, got.LikesCount)
		assert.Len(t, f.notificationsOf(t, "bob"), 1, "unlike does not notify")
	})

	t.Run("liking your own article does not notify", func(t *testing.T) {
		f := newFixture(t)
		a := f.article(t, "bob", "Solo", "Just me")

		liked, err := f.social.ToggleArticleLike(as("bob"), a.ID)
		require.NoError(t, err)
		assert.True(t, liked)
		assert.Empty(t, f.notificationsOf(t, "bob"))
	})

	t.Run("unknown article", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.social.ToggleArticleLike(as("alice"), "missing")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("anonymous caller", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.social.ToggleArticleLike(as(""), "a1")
		assert.ErrorIs(t, err, apperr.ErrMissingViewer)
	})
}

func TestSocialService_ToggleSave(t *testing.T) {
	f := newFixture(t)
	first := f.article(t, "bob", "First", "one")
	second := f.article(t, "bob", "Second", "two")

	for _, id := range []string{first.ID, second.ID} {
		saved, err := f.social.ToggleSave(as("alice"), id)
		require.NoError(t, err)
		assert.True(t, saved)
	}

	list, err := f.articles.SavedArticles(as("alice"))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "most recently saved first")
	assert.True(t, list[0].IsSavedByMe)

	saved, err := f.social.ToggleSave(as("alice"), second.ID)
	require.NoError(t, err)
	assert.False(t, saved)

	list, err = f.articles.SavedArticles(as("alice"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)
}

func TestSocialService_ToggleFollow(t *testing.T) {
	t.Run("happy path - follow, list, unfollow", func(t *testing.T) {
		f := newFixture(t)
		f.profile(t, "alice", "alice")
		f.profile(t, "bob", "bob")

		following, err := f.social.ToggleFollow(as("alice"), "bob")
		require.NoError(t, err)
		assert.True(t, following)

		ok, err := f.social.IsFollowing(as("alice"), "bob")
		require.NoError(t, err)
		assert.True(t, ok)

		followers, err := f.social.Followers(as("carol"), "bob")
		require.NoError(t, err)
		require.Len(t, followers, 1)
		assert.Equal(t, "alice", followers[0].Username)

		followed, err := f.social.Following(as("carol"), "alice")
		require.NoError(t, err)
		require.Len(t, followed, 1)
		assert.Equal(t, "bob", followed[0].ID)

		notes := f.notificationsOf(t, "bob")
		require.Len(t, notes, 1)
		assert.Equal(t, models.NotificationFollow, notes[0].Type)

		following, err = f.social.ToggleFollow(as("alice"), "bob")
		require.NoError(t, err)
		assert.False(t, following)

		followers, err = f.social.Followers(as("carol"), "bob")
		require.NoError(t, err)
		assert.Empty(t, followers)
	})

	t.Run("cannot follow yourself", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.social.ToggleFollow(as("alice"), "alice")
		assert.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
	})
}

func TestToggle_RemoteFailures(t *testing.T) {
	t.Run("read failure is returned", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockData := mocks.NewMockDataService(ctrl)
		svc := &CommentService{Data: mockData, Now: newClock().now}

		g := mockData.EXPECT()
		g.Count(gomock.Any(), gomock.Any()).Return(0, errors.New("offline"))

		_, err := svc.ToggleLike(as("alice"), "c1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "offline")
	})

	t.Run("duplicate insert from a concurrent toggle counts as liked", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockData := mocks.NewMockDataService(ctrl)
		svc := &CommentService{Data: mockData, Now: newClock().now}

		g := mockData.EXPECT()
		g.Count(gomock.Any(), gomock.Any()).Return(0, nil)
		g.Insert(gomock.Any(), models.CommentLikesTable, gomock.Any()).Return(apperr.ErrConflict)

		liked, err := svc.ToggleLike(as("alice"), "c1")
		require.NoError(t, err)
		assert.True(t, liked)
	})

	t.Run("delete failure keeps the row reported as present", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockData := mocks.NewMockDataService(ctrl)
		svc := &CommentService{Data: mockData, Now: newClock().now}

		g := mockData.EXPECT()
		g.Count(gomock.Any(), gomock.Any()).Return(1, nil)
		g.Delete(gomock.Any(), gomock.Any()).Return(0, apperr.ErrForbidden)

		liked, err := svc.ToggleLike(as("alice"), "c1")
		assert.ErrorIs(t, err, apperr.ErrForbidden)
		assert.True(t, liked)
	})
}
