package reminders

import (
	"context"
	"sort"
	"sync"
)

// MemorySink keeps registrations in process memory.
type MemorySink struct {
	mu      sync.RWMutex
	items   map[string]Notification
	granted bool
}

func NewMemorySink(granted bool) *MemorySink {
	return &MemorySink{items: make(map[string]Notification), granted: granted}
}

func (m *MemorySink) Schedule(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[n.ID] = n
	return nil
}

func (m *MemorySink) Cancel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *MemorySink) Complete(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.items[n.ID]; ok && cur.FireAt.Equal(n.FireAt) {
		delete(m.items, n.ID)
	}
	return nil
}

func (m *MemorySink) ListAll(_ context.Context) ([]Notification, error) {
	m.mu.RLock()
	out := make([]Notification, 0, len(m.items))
	for _, n := range m.items {
		out = append(out, n)
	}
	m.mu.RUnlock()

	sortNotifications(out)
	return out, nil
}

func (m *MemorySink) RequestPermission(_ context.Context) (bool, error) {
	return m.granted, nil
}

func sortNotifications(ns []Notification) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].FireAt.Equal(ns[j].FireAt) {
			return ns[i].ID < ns[j].ID
		}
		return ns[i].FireAt.Before(ns[j].FireAt)
	})
}
