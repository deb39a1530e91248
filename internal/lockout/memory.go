package lockout

import (
	"context"
	"sync"
	"time"
)

// sweepThreshold is the map size above which Incr drops expired entries.
const sweepThreshold = 1024

type entry struct {
	count   int
	expires time.Time
}

// MemoryStore is a process-local Store. Counters are lost on restart and not
// shared between replicas; use RedisStore when running more than one instance.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*entry), now: time.Now}
}

func (m *MemoryStore) live(key string, now time.Time) *entry {
	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	if !now.Before(e.expires) {
		delete(m.entries, key)
		return nil
	}
	return e
}

func (m *MemoryStore) Get(_ context.Context, key string) (int, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e := m.live(key, now)
	if e == nil {
		return 0, 0, nil
	}
	return e.count, e.expires.Sub(now), nil
}

func (m *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e := m.live(key, now)
	if e == nil {
		if len(m.entries) >= sweepThreshold {
			m.sweep(now)
		}
		e = &entry{expires: now.Add(window)}
		m.entries[key] = e
	}
	e.count++
	return e.count, e.expires.Sub(now), nil
}

func (m *MemoryStore) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) sweep(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}
