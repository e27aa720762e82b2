package socket

import (
	"context"
	"log/slog"
	"net/http"

	socketio "github.com/googollee/go-socket.io"

	"outliers_server/chat"
	"outliers_server/session"
)

const namespace = "/"

// Events emitted to browsers.
const (
	EventChatState = "chat:state"
	EventNotice    = "notice"
	EventBadge     = "notifications:badge"
	EventAuthError = "auth:error"
)

type broadcaster interface {
	BroadcastToRoom(namespace, room, event string, args ...interface{}) bool
}

// Pusher fans session state out to every socket of a viewer. Each viewer
// has a room named after their user id.
type Pusher struct {
	rooms broadcaster
}

func (p *Pusher) PushChat(userID string, snap chat.Snapshot) {
	p.rooms.BroadcastToRoom(namespace, userID, EventChatState, snap)
}

func (p *Pusher) PushNotice(userID string, n chat.Notice) {
	p.rooms.BroadcastToRoom(namespace, userID, EventNotice, n)
}

func (p *Pusher) PushBadge(userID string, unread int) {
	p.rooms.BroadcastToRoom(namespace, userID, EventBadge, map[string]int{"unread": unread})
}

var _ session.Pusher = (*Pusher)(nil)

// Server is the Socket.IO endpoint. Clients emit "auth" with their access
// token and then receive their session's pushes.
type Server struct {
	io       *socketio.Server
	sessions *session.Manager
	pusher   *Pusher
	log      *slog.Logger
}

// NewSocketServer initializes the Socket.IO server and installs it as the
// sessions' push channel.
func NewSocketServer(sessions *session.Manager) *Server {
	io := socketio.NewServer(nil)
	s := &Server{
		io:       io,
		sessions: sessions,
		pusher:   &Pusher{rooms: io},
		log:      slog.Default().With("component", "socket"),
	}
	sessions.SetPusher(s.pusher)

	io.OnConnect(namespace, func(c socketio.Conn) error {
		s.log.Debug("✅ socket connected", "socket_id", c.ID())
		return nil
	})
	io.OnEvent(namespace, "auth", s.handleAuth)
	io.OnError(namespace, func(c socketio.Conn, err error) {
		s.log.Warn("socket error", "error", err)
	})
	io.OnDisconnect(namespace, func(c socketio.Conn, reason string) {
		s.log.Debug("❌ socket disconnected", "socket_id", c.ID(), "reason", reason)
		c.LeaveAll()
	})
	return s
}

// handleAuth logs the socket in and sends the current state to it.
func (s *Server) handleAuth(c socketio.Conn, token string) {
	sess, err := s.sessions.Login(context.Background(), token)
	if err != nil {
		s.log.Warn("socket authentication failed", "socket_id", c.ID(), "error", err)
		c.Emit(EventAuthError, map[string]string{"error": "authentication failed"})
		return
	}
	viewer := sess.Viewer.ID
	c.SetContext(viewer)
	c.Join(viewer)
	s.log.Info("👥 socket joined", "socket_id", c.ID(), "user_id", viewer)

	c.Emit(EventChatState, sess.Chat.Snapshot())
	if n := sess.Poller.Badge(); n >= 0 {
		c.Emit(EventBadge, map[string]int{"unread": n})
	}
}

// Pusher returns the push channel installed on the session manager.
func (s *Server) Pusher() *Pusher { return s.pusher }

// Serve runs the engine loop until Close.
func (s *Server) Serve() {
	if err := s.io.Serve(); err != nil {
		s.log.Error("socket server stopped", "error", err)
	}
}

func (s *Server) Close() error {
	return s.io.Close()
}

// Handler serves /socket.io/.
func (s *Server) Handler() http.Handler {
	return s.io
}
