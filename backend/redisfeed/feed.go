// Package redisfeed carries row-change events between server instances over
// Redis pub/sub, one channel per table.
package redisfeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"outliers_server/backend"
	"outliers_server/metrics"
)

const channelPrefix = "realtime:"

// Channel returns the pub/sub channel of table.
func Channel(table string) string {
	return channelPrefix + table
}

// Feed is a backend.Feed on Redis pub/sub. Delivery is at-most-once:
// subscribers that are not connected when an event is published miss it.
type Feed struct {
	rdb    redis.UniversalClient
	buffer int
	log    *slog.Logger
}

func NewFeed(rdb redis.UniversalClient) *Feed {
	return &Feed{rdb: rdb, buffer: 64, log: slog.Default().With("component", "redisfeed")}
}

func (f *Feed) Publish(ctx context.Context, ev backend.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "redisfeed.Publish.Marshal")
	}
	if err := f.rdb.Publish(ctx, Channel(ev.Table), data).Err(); err != nil {
		return errors.Wrap(err, "redisfeed.Publish")
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so events
// published after it returns are delivered.
func (f *Feed) Subscribe(ctx context.Context, table string, filters ...backend.Filter) (*backend.Subscription, error) {
	ps := f.rdb.Subscribe(ctx, Channel(table))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrap(err, "redisfeed.Subscribe")
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan backend.Event, f.buffer)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			_ = ps.Close()
		})
	}

	go func() {
		defer close(out)
		defer stop()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev backend.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					metrics.DroppedEvents.WithLabelValues("decode").Inc()
					f.log.Warn("undecodable change event", "channel", msg.Channel, "error", err)
					continue
				}
				if !ev.Matches(filters) {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return backend.NewSubscription(out, stop), nil
}
