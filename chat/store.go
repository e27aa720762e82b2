// Package chat keeps one viewer's conversation list, the messages of the
// active conversation and the unread counters in sync with the data service
// and its realtime change feed.
package chat

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"outliers_server/apperr"
	"outliers_server/backend"
	"outliers_server/models"
)

// Snapshot is an immutable copy of the chat state.
type Snapshot struct {
	Conversations []models.Conversation `json:"conversations"`
	ActiveID      string                `json:"active_id,omitempty"`
	Messages      []models.Message      `json:"messages"`
	TotalUnread   int                   `json:"total_unread"`
}

// Store is the chat state of a single session. It is safe for concurrent
// use; remote calls are made without holding the state lock and their
// results are committed only if the state they were started for is still
// current.
type Store struct {
	viewer string
	data   backend.DataService
	feed   backend.Feed
	log    *slog.Logger
	notify func(Notice)
	now    func() time.Time
	newID  func() string

	mu            sync.Mutex
	conversations []models.Conversation
	profiles      map[string]models.Profile
	known         map[string]map[string]bool // message ids counted per conversation
	activeID      string
	messages      []models.Message
	gen           uint64 // bumped whenever the active conversation changes
	listGen       uint64
	closed        bool

	lmu       sync.Mutex
	listeners map[int]func(Snapshot)
	nextLID   int

	runCtx context.Context
	cancel context.CancelFunc
	subs   []*backend.Subscription
	wg     sync.WaitGroup
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithNotifier receives the user-facing notices raised by failed operations.
func WithNotifier(fn func(Notice)) Option {
	return func(s *Store) { s.notify = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// New creates the store for viewer. Call Start to begin consuming realtime
// events and Close when the session ends.
func New(viewer string, data backend.DataService, feed backend.Feed, opts ...Option) *Store {
	s := &Store{
		viewer:    viewer,
		data:      data,
		feed:      feed,
		log:       slog.Default(),
		notify:    func(Notice) {},
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		profiles:  map[string]models.Profile{},
		known:     map[string]map[string]bool{},
		listeners: map[int]func(Snapshot){},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "chat", "viewer", viewer)
	s.runCtx, s.cancel = context.WithCancel(backend.WithActor(context.Background(), viewer))
	return s
}

// Viewer returns the user id the store acts as.
func (s *Store) Viewer() string { return s.viewer }

// Start subscribes to message and like changes. Events are applied on a
// background goroutine until Close.
func (s *Store) Start(ctx context.Context) error {
	if s.isClosed() {
		return apperr.ErrSessionClosed
	}
	msgs, err := s.feed.Subscribe(s.runCtx, models.MessagesTable)
	if err != nil {
		return s.fail("subscribe", err)
	}
	likes, err := s.feed.Subscribe(s.runCtx, models.MessageLikesTable)
	if err != nil {
		msgs.Close()
		return s.fail("subscribe", err)
	}
	s.mu.Lock()
	s.subs = append(s.subs, msgs, likes)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.consume(msgs, likes)
	s.log.InfoContext(ctx, "🔌 realtime subscriptions started")
	return nil
}

func (s *Store) consume(msgs, likes *backend.Subscription) {
	defer s.wg.Done()
	mch, lch := msgs.Events, likes.Events
	for mch != nil || lch != nil {
		select {
		case ev, ok := <-mch:
			if !ok {
				mch = nil
				continue
			}
			s.Apply(ev)
		case ev, ok := <-lch:
			if !ok {
				lch = nil
				continue
			}
			s.Apply(ev)
		case <-s.runCtx.Done():
			return
		}
	}
}

// Close releases the subscriptions and discards any in-flight results.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	s.listGen++
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	s.cancel()
	for _, sub := range subs {
		sub.Close()
	}
	s.wg.Wait()

	s.lmu.Lock()
	s.listeners = map[int]func(Snapshot){}
	s.lmu.Unlock()
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// OnChange registers fn to receive a snapshot after every state change.
// The returned function removes it.
func (s *Store) OnChange(fn func(Snapshot)) func() {
	s.lmu.Lock()
	id := s.nextLID
	s.nextLID++
	s.listeners[id] = fn
	s.lmu.Unlock()
	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Store) changed() {
	snap := s.Snapshot()
	s.lmu.Lock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// Accessors

func (s *Store) Conversations() []models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneConversations(s.conversations)
}

func (s *Store) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMessages(s.messages)
}

func (s *Store) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// TotalUnread is the sum of the last known per-conversation unread counts.
func (s *Store) TotalUnread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalUnreadLocked()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Conversations: cloneConversations(s.conversations),
		ActiveID:      s.activeID,
		Messages:      cloneMessages(s.messages),
		TotalUnread:   s.totalUnreadLocked(),
	}
}

func (s *Store) totalUnreadLocked() int {
	total := 0
	for _, c := range s.conversations {
		total += c.UnreadCount
	}
	return total
}

// ctx attaches the viewer as acting user to a caller context.
func (s *Store) ctx(ctx context.Context) context.Context {
	return backend.WithActor(ctx, s.viewer)
}

func (s *Store) conversationIndex(id string) int {
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) messageIndex(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) sortConversationsLocked() {
	sortConversations(s.conversations)
}

func sortConversations(cs []models.Conversation) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].UpdatedAt.After(cs[j].UpdatedAt)
	})
}

func cloneConversations(in []models.Conversation) []models.Conversation {
	out := make([]models.Conversation, len(in))
	for i, c := range in {
		out[i] = c
		if c.LastMessage != nil {
			m := *c.LastMessage
			out[i].LastMessage = &m
		}
		out[i].Participants = append([]models.Profile(nil), c.Participants...)
	}
	return out
}

func cloneMessages(in []models.Message) []models.Message {
	out := make([]models.Message, len(in))
	copy(out, in)
	return out
}
