// Package memory is an in-process implementation of the backend
// collaborators with the same ownership, uniqueness and change-feed
// semantics as the hosted services.
package memory

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/pkg/errors"

	"outliers_server/apperr"
	"outliers_server/backend"
	"outliers_server/models"
)

type table struct {
	spec models.TableSpec
	rows map[string]backend.Item
	keys []string // insertion order
}

// Store is a DataService that keeps every table in memory.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
	feed   backend.Feed

	// FailNext, when set, makes the next mutation on the named table fail
	// with the given error. Used to simulate remote failures.
	failMu   sync.Mutex
	failNext map[string]error
}

// NewStore creates every table in models.Specs. feed may be nil.
func NewStore(feed backend.Feed) *Store {
	s := &Store{tables: map[string]*table{}, feed: feed, failNext: map[string]error{}}
	for _, spec := range models.Specs() {
		s.tables[spec.Name] = &table{spec: spec, rows: map[string]backend.Item{}}
	}
	return s
}

// FailNext arranges for the next Insert/Update/Delete on table to return err.
func (s *Store) FailNext(table string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failNext[table] = err
}

func (s *Store) takeFailure(table string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	err := s.failNext[table]
	delete(s.failNext, table)
	return err
}

func (s *Store) table(name string) (*table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, errors.Wrapf(apperr.ErrInvalid, "unknown table %q", name)
	}
	return t, nil
}

// match returns the keys of matching rows, ordered and limited.
func (t *table) match(q *backend.Query) []string {
	type hit struct {
		key string
		row map[string]any
	}
	var hits []hit
	for _, k := range t.keys {
		row := backend.ItemRow(t.rows[k])
		if backend.MatchAll(row, q.Filters) {
			row["\x00key"] = k
			hits = append(hits, hit{key: k, row: row})
		}
	}
	rows := make([]map[string]any, len(hits))
	for i, h := range hits {
		rows[i] = h.row
	}
	backend.SortRows(rows, q.Order)
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = r["\x00key"].(string)
	}
	return keys
}

func (s *Store) Select(ctx context.Context, q *backend.Query, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(q.Table)
	if err != nil {
		return err
	}
	keys := t.match(q)
	items := make([]backend.Item, len(keys))
	for i, k := range keys {
		items[i] = t.rows[k]
	}
	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return errors.Wrap(err, "memory.Select.Unmarshal")
	}
	return nil
}

func (s *Store) Count(ctx context.Context, q *backend.Query) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(q.Table)
	if err != nil {
		return 0, err
	}
	cq := *q
	cq.Limit = 0
	return len(t.match(&cq)), nil
}

func (s *Store) Insert(ctx context.Context, tableName string, rows ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.takeFailure(tableName); err != nil {
		return err
	}
	actor := backend.ActorFrom(ctx)

	s.mu.Lock()
	t, err := s.table(tableName)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	items := make([]backend.Item, 0, len(rows))
	keys := make([]string, 0, len(rows))
	seen := map[string]bool{}
	for _, row := range rows {
		item, err := backend.MarshalItem(row)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		key, err := backend.KeyString(t.spec, item)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		if err := backend.CheckCreator(t.spec, item, actor); err != nil {
			s.mu.Unlock()
			return err
		}
		if _, exists := t.rows[key]; exists || seen[key] {
			s.mu.Unlock()
			return errors.Wrapf(apperr.ErrConflict, "%s: duplicate key", tableName)
		}
		seen[key] = true
		items = append(items, item)
		keys = append(keys, key)
	}
	for i, key := range keys {
		t.rows[key] = items[i]
		t.keys = append(t.keys, key)
	}
	s.mu.Unlock()

	for _, item := range items {
		s.publish(ctx, backend.NewEvent(tableName, backend.EventInsert, item, nil))
	}
	return nil
}

func (s *Store) Update(ctx context.Context, q *backend.Query, set backend.Values) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.takeFailure(q.Table); err != nil {
		return 0, err
	}
	actor := backend.ActorFrom(ctx)

	s.mu.Lock()
	t, err := s.table(q.Table)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	if err := backend.CheckSet(t.spec, set); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	patch := backend.Item{}
	for col, v := range set {
		av, err := backend.MarshalValue(v)
		if err != nil {
			s.mu.Unlock()
			return 0, err
		}
		patch[col] = av
	}
	keys := t.match(q)
	for _, k := range keys {
		if err := backend.CheckOwner(t.spec, t.rows[k], actor); err != nil {
			s.mu.Unlock()
			return 0, err
		}
	}
	events := make([]backend.Event, 0, len(keys))
	for _, k := range keys {
		old := t.rows[k]
		next := make(backend.Item, len(old)+len(patch))
		for col, av := range old {
			next[col] = av
		}
		for col, av := range patch {
			next[col] = av
		}
		t.rows[k] = next
		events = append(events, backend.NewEvent(q.Table, backend.EventUpdate, next, old))
	}
	s.mu.Unlock()

	for _, ev := range events {
		s.publish(ctx, ev)
	}
	return len(keys), nil
}

func (s *Store) Delete(ctx context.Context, q *backend.Query) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.takeFailure(q.Table); err != nil {
		return 0, err
	}
	actor := backend.ActorFrom(ctx)

	s.mu.Lock()
	t, err := s.table(q.Table)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	keys := t.match(q)
	for _, k := range keys {
		if err := backend.CheckOwner(t.spec, t.rows[k], actor); err != nil {
			s.mu.Unlock()
			return 0, err
		}
	}
	removed := map[string]bool{}
	events := make([]backend.Event, 0, len(keys))
	for _, k := range keys {
		events = append(events, backend.NewEvent(q.Table, backend.EventDelete, t.rows[k], nil))
		delete(t.rows, k)
		removed[k] = true
	}
	kept := t.keys[:0]
	for _, k := range t.keys {
		if !removed[k] {
			kept = append(kept, k)
		}
	}
	t.keys = kept
	s.mu.Unlock()

	for _, ev := range events {
		s.publish(ctx, ev)
	}
	return len(keys), nil
}

func (s *Store) publish(ctx context.Context, ev backend.Event) {
	if s.feed == nil {
		return
	}
	_ = s.feed.Publish(context.WithoutCancel(ctx), ev)
}
