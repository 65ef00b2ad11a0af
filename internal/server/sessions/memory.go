package sessions

import (
	"context"
	"sync"
	"time"
)

// sweepEvery is how many saves pass between sweeps of expired items.
const sweepEvery = 256

type memoryItem struct {
	data    Data
	expires time.Time
}

// MemoryStore keeps sessions in a process-local map. Sessions are lost on
// restart and are not shared between replicas.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
	saves int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem), now: time.Now}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Data, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	if !m.now().Before(item.expires) {
		delete(m.items, id)
		return nil, nil
	}

	data := item.data
	return &data, nil
}

func (m *MemoryStore) Save(_ context.Context, id string, data *Data, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[id] = memoryItem{data: *data, expires: m.now().Add(ttl)}
	m.saves++
	if m.saves%sweepEvery == 0 {
		m.sweepLocked()
	}
	return nil
}

// Sweep drops expired sessions and returns how many were removed. Save
// calls it periodically, so sessions that are never loaded again still go.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked()
}

func (m *MemoryStore) sweepLocked() int {
	now := m.now()
	n := 0
	for id, item := range m.items {
		if !now.Before(item.expires) {
			delete(m.items, id)
			n++
		}
	}
	return n
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
