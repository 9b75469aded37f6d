// Package seen remembers which coin identifiers have been catalogued. The
// same set is the list of identifiers the price refresher tracks.
package seen

import (
	"context"
	"sort"
	"sync"
)

// Set is a set of coin identifiers.
type Set interface {
	Has(ctx context.Context, id string) (bool, error)
	Add(ctx context.Context, ids ...string) error
	List(ctx context.Context) ([]string, error)
}

// Memory is a process-lifetime Set.
type Memory struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewMemory creates an empty in-memory set.
func NewMemory() *Memory {
	return &Memory{ids: make(map[string]struct{})}
}

func (m *Memory) Has(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ids[id]
	return ok, nil
}

func (m *Memory) Add(_ context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.ids[id] = struct{}{}
	}
	return nil
}

// List returns the identifiers in sorted order.
func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	out := make([]string, 0, len(m.ids))
	for id := range m.ids {
		out = append(out, id)
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}
