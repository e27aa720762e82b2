package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outliers_server/backend/memory"
	"outliers_server/controllers"
	"outliers_server/routes"
	"outliers_server/services"
	"outliers_server/session"
)

type server struct {
	router   *mux.Router
	verifier *session.Verifier
	sessions *session.Manager
}

func newServer(t *testing.T, rps float64, burst int) *server {
	t.Helper()
	feed := memory.NewFeed()
	data := memory.NewStore(feed)
	storage := memory.NewStorage("http://cdn.test")
	require.NoError(t, storage.EnsureBucket(context.Background(), "avatars"))
	require.NoError(t, storage.EnsureBucket(context.Background(), "media"))

	notifications := services.NewNotificationService(data)
	articles := services.NewArticleService(data, storage, "media")
	profiles := services.NewProfileService(data, storage, "avatars", time.Minute)

	verifier := session.NewVerifier("s3cret", "")
	sessions := session.NewManager(verifier, data, feed, profiles, notifications, time.Hour)
	t.Cleanup(sessions.Close)
	auth := controllers.NewAuth(sessions, rps, burst)

	r := mux.NewRouter()
	r.Use(controllers.Instrument)
	routes.RegisterRoutes(r)
	api := routes.APIRouter(r, auth)
	routes.RegisterSessionRoutes(api, auth)
	routes.RegisterChatRoutes(api)
	routes.RegisterArticleRoutes(api, articles, services.NewCommentService(data, notifications), &services.SearchService{Articles: articles})
	routes.RegisterActionRoutes(api, services.NewSocialService(data, notifications))
	routes.RegisterGroupRoutes(api, services.NewGroupService(data, storage, notifications, "media"))
	routes.RegisterDirectMessageRoutes(api, services.NewDirectMessageService(data, storage, notifications, "media"))
	routes.RegisterUserProfileRoutes(api, profiles)
	routes.RegisterNotificationRoutes(api, notifications)

	return &server{router: r, verifier: verifier, sessions: sessions}
}

func (s *server) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := s.verifier.Issue(userID, userID, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *server) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func TestPublicRoutes(t *testing.T) {
	s := newServer(t, 100, 100)

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "healthy"}, decode[map[string]string](t, rec))

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "outliers_http_requests_total")
}

func TestAuth(t *testing.T) {
	t.Run("sad path - missing token", func(t *testing.T) {
		s := newServer(t, 100, 100)
		rec := s.do(t, http.MethodGet, "/api/chat/state", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHENTICATED", decode[errorBody](t, rec).Code)
	})

	t.Run("sad path - bad token", func(t *testing.T) {
		s := newServer(t, 100, 100)
		rec := s.do(t, http.MethodGet, "/api/chat/state", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, 0, s.sessions.Len())
	})

	t.Run("happy path - login then logout", func(t *testing.T) {
		s := newServer(t, 100, 100)
		token := s.token(t, "alice")

		rec := s.do(t, http.MethodPost, "/api/session", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		login := decode[struct {
			Viewer struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"viewer"`
			Unread int `json:"unread_notifications"`
		}](t, rec)
		assert.Equal(t, "alice", login.Viewer.ID)
		assert.Equal(t, "alice", login.Viewer.Username)
		assert.Equal(t, 1, s.sessions.Len())

		rec = s.do(t, http.MethodDelete, "/api/session", token, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, 0, s.sessions.Len())
	})

	t.Run("sad path - rate limited per viewer", func(t *testing.T) {
		s := newServer(t, 1, 1)
		alice, bob := s.token(t, "alice"), s.token(t, "bob")

		assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/chat/state", alice, nil).Code)
		assert.Equal(t, http.StatusTooManyRequests, s.do(t, http.MethodGet, "/api/chat/state", alice, nil).Code)
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/chat/state", bob, nil).Code)
	})
}

type snapshot struct {
	Conversations []struct {
		ID string `json:"id"`
	} `json:"conversations"`
	ActiveID string `json:"active_id"`
	Messages []struct {
		ID      string `json:"id"`
		Content string `json:"content"`
		Pending bool   `json:"pending"`
	} `json:"messages"`
	TotalUnread int `json:"total_unread"`
}

func TestChatRoutes(t *testing.T) {
	s := newServer(t, 100, 100)
	alice, bob := s.token(t, "alice"), s.token(t, "bob")
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/session", bob, nil).Code)

	rec := s.do(t, http.MethodPost, "/api/chat/conversations", alice, map[string]string{"target_id": "bob"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	started := decode[snapshot](t, rec)
	require.NotEmpty(t, started.ActiveID)
	require.Len(t, started.Conversations, 1)

	rec = s.do(t, http.MethodPost, "/api/chat/messages", alice, map[string]string{"content": "  hello bob "})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sent := decode[struct {
		ID      string `json:"id"`
		Content string `json:"content"`
	}](t, rec)
	assert.Equal(t, "hello bob", sent.Content)

	// Edits wait for the change feed to confirm the send.
	require.Eventually(t, func() bool {
		var st snapshot
		rec := s.do(t, http.MethodGet, "/api/chat/state", alice, nil)
		if json.Unmarshal(rec.Body.Bytes(), &st) != nil {
			return false
		}
		return len(st.Messages) == 1 && !st.Messages[0].Pending
	}, time.Second, 5*time.Millisecond)

	rec = s.do(t, http.MethodPatch, "/api/chat/messages/"+sent.ID, alice, map[string]string{"content": "hello again"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/chat/messages", alice, map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/chat/messages", bob, map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code, "bob has no active conversation")

	rec = s.do(t, http.MethodGet, "/api/chat/conversations", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[snapshot](t, rec)
	require.Len(t, listed.Conversations, 1)
	assert.Equal(t, started.ActiveID, listed.Conversations[0].ID)

	rec = s.do(t, http.MethodPut, "/api/chat/active/"+started.ActiveID, bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	selected := decode[snapshot](t, rec)
	require.Len(t, selected.Messages, 1)
	assert.Equal(t, "hello again", selected.Messages[0].Content)
	assert.Equal(t, 0, selected.TotalUnread)

	rec = s.do(t, http.MethodDelete, "/api/chat/active", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[snapshot](t, rec).ActiveID)

	// Fetching the messages of a conversation that is not active opens it.
	rec = s.do(t, http.MethodGet, "/api/chat/conversations/"+started.ActiveID+"/messages", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	fetched := decode[snapshot](t, rec)
	assert.Equal(t, started.ActiveID, fetched.ActiveID)
	require.Len(t, fetched.Messages, 1)
	assert.Equal(t, "hello again", fetched.Messages[0].Content)
}

func TestArticleRoutes(t *testing.T) {
	s := newServer(t, 100, 100)
	alice, bob := s.token(t, "alice"), s.token(t, "bob")

	rec := s.do(t, http.MethodPost, "/api/articles", alice, map[string]string{"title": "Go patterns", "content": "Channels and contexts"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		ID string `json:"id"`
	}](t, rec)

	rec = s.do(t, http.MethodGet, "/api/articles/"+created.ID, bob, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/articles/"+created.ID, bob, map[string]string{"title": "mine", "content": "now"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/action/articles/"+created.ID+"/like", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"liked": true}, decode[map[string]bool](t, rec))

	rec = s.do(t, http.MethodGet, "/api/notifications/unread-count", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"unread": 1}, decode[map[string]int](t, rec))

	rec = s.do(t, http.MethodGet, "/api/search?q=CHANNELS", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/articles/missing", bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/articles/"+created.ID, alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUserProfileRoutes(t *testing.T) {
	s := newServer(t, 100, 100)
	alice := s.token(t, "alice")

	t.Run("happy path - avatar upload saves the public url", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="file"; filename="me.png"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG fake"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/profiles/me/avatar", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+alice)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		p := decode[struct {
			AvatarURL string `json:"avatar_url"`
		}](t, rec)
		assert.Contains(t, p.AvatarURL, "http://cdn.test/avatars/alice/avatar-")
	})

	t.Run("happy path - lookup by username", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/profiles?username=alice", alice, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice", decode[map[string]any](t, rec)["id"])
	})

	t.Run("sad path - upload url needs a file name", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/profiles/upload-url", alice, map[string]string{"fileType": "image/png"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
