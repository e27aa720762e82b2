package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"outliers_server/backend"
	"outliers_server/models"
)

// NotificationService stores and reads per-user notifications.
type NotificationService struct {
	Data backend.DataService
	Now  func() time.Time
}

func NewNotificationService(data backend.DataService) *NotificationService {
	return &NotificationService{Data: data, Now: func() time.Time { return time.Now().UTC() }}
}

// NotificationRef points a notification at the record it is about.
type NotificationRef struct {
	ArticleID string
	GroupID   string
}

// Notify tells recipient that the viewer did something. Self-notifications
// are skipped.
func (s *NotificationService) Notify(ctx context.Context, recipient, kind string, ref NotificationRef) error {
	actor, err := viewerFrom(ctx)
	if err != nil {
		return err
	}
	if recipient == "" || recipient == actor {
		return nil
	}
	n := models.Notification{
		ID:        uuid.NewString(),
		UserID:    recipient,
		ActorID:   actor,
		Type:      kind,
		ArticleID: ref.ArticleID,
		GroupID:   ref.GroupID,
		CreatedAt: s.Now(),
	}
	if err := s.Data.Insert(ctx, models.NotificationsTable, n); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}

// List returns the viewer's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, limit int) ([]models.Notification, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Notification
	q := backend.From(models.NotificationsTable).
		Where(backend.Eq("user_id", viewer)).
		OrderBy("created_at", true).
		Take(limit)
	if err := s.Data.Select(ctx, q, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	return out, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context) (int, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.Data.Count(ctx, backend.From(models.NotificationsTable).Where(
		backend.Eq("user_id", viewer),
		backend.Eq("is_read", false),
	))
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return n, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return err
	}
	_, err = s.Data.Update(ctx,
		backend.From(models.NotificationsTable).Where(backend.Eq("id", id), backend.Eq("user_id", viewer)),
		backend.Values{"is_read": true},
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context) (int, error) {
	viewer, err := viewerFrom(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.Data.Update(ctx,
		backend.From(models.NotificationsTable).Where(backend.Eq("user_id", viewer), backend.Eq("is_read", false)),
		backend.Values{"is_read": true},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return n, nil
}

// Poller re-counts the viewer's unread notifications at a fixed interval
// and reports changes of the badge value.
type Poller struct {
	svc      *NotificationService
	interval time.Duration
	onBadge  func(int)
	log      *slog.Logger

	mu     sync.Mutex
	last   int
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller(svc *NotificationService, interval time.Duration, onBadge func(int)) *Poller {
	return &Poller{svc: svc, interval: interval, onBadge: onBadge, log: slog.Default(), last: -1}
}

// Start polls until Stop or until ctx ends. ctx must carry the viewer.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll counts once and reports the value if it changed.
func (p *Poller) Poll(ctx context.Context) {
	n, err := p.svc.UnreadCount(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn("notification poll failed", "error", err)
		}
		return
	}
	p.mu.Lock()
	changed := n != p.last
	p.last = n
	p.mu.Unlock()
	if changed && p.onBadge != nil {
		p.onBadge(n)
	}
}

// Badge returns the last polled count, or -1 before the first poll.
func (p *Poller) Badge() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}
