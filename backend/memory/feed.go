package memory

import (
	"context"
	"sync"

	"outliers_server/backend"
)

// Feed is an in-process change feed. Each subscriber has an unbounded
// queue so publishers never block on slow consumers.
type Feed struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: map[*subscriber]struct{}{}}
}

type subscriber struct {
	table   string
	filters []backend.Filter

	mu     sync.Mutex
	queue  []backend.Event
	notify chan struct{}
	out    chan backend.Event
	done   chan struct{}
	once   sync.Once
}

func (f *Feed) Subscribe(ctx context.Context, table string, filters ...backend.Filter) (*backend.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &subscriber{
		table:   table,
		filters: filters,
		notify:  make(chan struct{}, 1),
		out:     make(chan backend.Event),
		done:    make(chan struct{}),
	}
	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()

	stop := func() {
		sub.once.Do(func() {
			f.mu.Lock()
			delete(f.subs, sub)
			f.mu.Unlock()
			close(sub.done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-sub.done:
		}
	}()
	go sub.run()
	return backend.NewSubscription(sub.out, stop), nil
}

func (f *Feed) Publish(_ context.Context, ev backend.Event) error {
	f.mu.Lock()
	targets := make([]*subscriber, 0, len(f.subs))
	for sub := range f.subs {
		if sub.table == ev.Table && ev.Matches(sub.filters) {
			targets = append(targets, sub)
		}
	}
	f.mu.Unlock()
	for _, sub := range targets {
		sub.push(ev)
	}
	return nil
}

// Subscribers returns the number of open subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (s *subscriber) push(ev backend.Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
