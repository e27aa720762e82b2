// Package session ties an authenticated viewer to their live state: the
// chat store, the notification poller and the push channel to the browser.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"outliers_server/apperr"
	"outliers_server/backend"
	"outliers_server/chat"
	"outliers_server/metrics"
	"outliers_server/models"
	"outliers_server/services"
)

// Pusher delivers state changes to a viewer's connected browsers.
type Pusher interface {
	PushChat(userID string, snap chat.Snapshot)
	PushNotice(userID string, n chat.Notice)
	PushBadge(userID string, unread int)
}

// Session is one logged-in viewer.
type Session struct {
	Viewer models.Profile
	Chat   *chat.Store
	Poller *services.Poller

	stopPush func()
}

// Context returns ctx acting as the session's viewer.
func (s *Session) Context(ctx context.Context) context.Context {
	return backend.WithActor(ctx, s.Viewer.ID)
}

func (s *Session) close() {
	s.stopPush()
	s.Poller.Stop()
	s.Chat.Close()
}

type Manager struct {
	verifier      *Verifier
	data          backend.DataService
	feed          backend.Feed
	profiles      *services.ProfileService
	notifications *services.NotificationService
	pollInterval  time.Duration
	log           *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	pusher   Pusher
	closed   bool
}

func NewManager(
	verifier *Verifier,
	data backend.DataService,
	feed backend.Feed,
	profiles *services.ProfileService,
	notifications *services.NotificationService,
	pollInterval time.Duration,
) *Manager {
	return &Manager{
		verifier:      verifier,
		data:          data,
		feed:          feed,
		profiles:      profiles,
		notifications: notifications,
		pollInterval:  pollInterval,
		log:           slog.Default().With("component", "session"),
		sessions:      map[string]*Session{},
	}
}

// SetPusher installs the push channel. Sessions created before the call
// keep pushing to the previous one.
func (m *Manager) SetPusher(p Pusher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pusher = p
}

// Authenticate verifies token without creating a session.
func (m *Manager) Authenticate(token string) (*Claims, error) {
	return m.verifier.Verify(token)
}

// Login verifies token and returns the viewer's session, creating it on
// first use.
func (m *Manager) Login(ctx context.Context, token string) (*Session, error) {
	claims, err := m.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	if s, ok := m.Get(claims.Subject); ok {
		return s, nil
	}

	s, err := m.open(ctx, claims)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		s.close()
		return nil, apperr.ErrSessionClosed
	}
	if existing, ok := m.sessions[claims.Subject]; ok {
		// Lost a race with a concurrent login.
		m.mu.Unlock()
		s.close()
		return existing, nil
	}
	m.sessions[claims.Subject] = s
	m.mu.Unlock()

	metrics.ActiveSessions.Inc()
	m.log.InfoContext(ctx, "✅ session started", "user_id", claims.Subject, "username", s.Viewer.Username)
	return s, nil
}

func (m *Manager) open(ctx context.Context, claims *Claims) (*Session, error) {
	viewer := claims.Subject
	actx := backend.WithActor(ctx, viewer)
	profile, err := m.profiles.Ensure(actx, claims.Username)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	pusher := m.pusher
	m.mu.Unlock()

	store := chat.New(viewer, m.data, m.feed,
		chat.WithLogger(m.log),
		chat.WithNotifier(func(n chat.Notice) {
			if pusher != nil {
				pusher.PushNotice(viewer, n)
			}
		}),
	)
	stopPush := store.OnChange(func(snap chat.Snapshot) {
		if pusher != nil {
			pusher.PushChat(viewer, snap)
		}
	})
	if err := store.Start(actx); err != nil {
		// The store already raised a notice; the session works without live updates.
		m.log.WarnContext(ctx, "realtime unavailable for session", "user_id", viewer, "error", err)
	}
	if _, err := store.ListConversations(actx); err != nil {
		m.log.WarnContext(ctx, "initial conversation load failed", "user_id", viewer, "error", err)
	}

	poller := services.NewPoller(m.notifications, m.pollInterval, func(n int) {
		if pusher != nil {
			pusher.PushBadge(viewer, n)
		}
	})
	poller.Start(backend.WithActor(context.Background(), viewer))

	return &Session{Viewer: profile, Chat: store, Poller: poller, stopPush: stopPush}, nil
}

func (m *Manager) Get(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Logout tears down the viewer's session. It reports whether one existed.
func (m *Manager) Logout(userID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.close()
	metrics.ActiveSessions.Dec()
	m.log.Info("👋 session ended", "user_id", userID)
	return true
}

// Close ends every session. Later logins fail.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
		metrics.ActiveSessions.Dec()
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
