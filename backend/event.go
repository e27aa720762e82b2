package backend

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Event is one row change delivered by the realtime feed. Record holds the
// new row (the removed row for deletes), Old the previous row for updates.
type Event struct {
	Table  string          `json:"table"`
	Type   EventType       `json:"type"`
	Record json.RawMessage `json:"record"`
	Old    json.RawMessage `json:"old,omitempty"`
	At     time.Time       `json:"at"`
}

// Decode unmarshals the changed row into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Record, v)
}

// Matches reports whether the record satisfies every equality filter.
func (e Event) Matches(filters []Filter) bool {
	if len(filters) == 0 {
		return true
	}
	var row map[string]any
	if err := json.Unmarshal(e.Record, &row); err != nil {
		return false
	}
	for _, f := range filters {
		if f.Op != OpEq {
			continue
		}
		v, ok := row[f.Column]
		if !ok || !equalLoose(v, f.Value) {
			return false
		}
	}
	return true
}

// Subscription streams events until Close is called or the subscribing
// context ends. The Events channel is closed afterwards.
type Subscription struct {
	Events <-chan Event
	close  func()
}

func NewSubscription(events <-chan Event, closeFn func()) *Subscription {
	return &Subscription{Events: events, close: closeFn}
}

func (s *Subscription) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}
