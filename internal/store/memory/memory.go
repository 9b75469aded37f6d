// Package memory is an in-process store.Store, used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/seenimoa/coinsync/internal/store"
)

// Store keeps records per table in insertion order.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]store.Record
	seq    int
	now    func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		tables: make(map[string][]store.Record),
		now:    time.Now,
	}
}

func (s *Store) Create(_ context.Context, table string, fields []map[string]any) ([]store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make([]store.Record, 0, len(fields))
	for _, f := range fields {
		s.seq++
		rec := store.Record{
			ID:          fmt.Sprintf("rec%014d", s.seq),
			CreatedTime: s.now().UTC(),
			Fields:      copyFields(f),
		}
		s.tables[table] = append(s.tables[table], rec)
		created = append(created, rec)
	}
	return created, nil
}

func (s *Store) FirstPage(_ context.Context, table string, q store.Query) ([]store.Record, error) {
	return s.selectRecords(table, q, q.Limit()), nil
}

func (s *Store) All(_ context.Context, table string, q store.Query) ([]store.Record, error) {
	return s.selectRecords(table, q, q.MaxRecords), nil
}

// Len returns the number of records in table.
func (s *Store) Len(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}

func (s *Store) selectRecords(table string, q store.Query, limit int) []store.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []store.Record{}
	for _, rec := range s.tables[table] {
		if q.Filter != nil && !q.Filter.Match(rec) {
			continue
		}
		out = append(out, store.Record{
			ID:          rec.ID,
			CreatedTime: rec.CreatedTime,
			Fields:      copyFields(rec.Fields),
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func copyFields(f map[string]any) map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
