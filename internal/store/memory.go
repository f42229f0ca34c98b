package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// entry holds a value and its expiry deadline.
type entry struct {
	value     string
	count     int64
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryStore is an in-process Store for development and tests. It honors the
// same TTL semantics as the Redis store: expiry is the only deletion
// mechanism, checked lazily on access and swept by a background janitor.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	done    chan struct{}
	closed  bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a memory store and starts the janitor goroutine.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		entries: make(map[string]*entry),
		done:    make(chan struct{}),
	}
	go m.janitor()
	return m
}

func (m *MemoryStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.expired(now) {
		e = &entry{expiresAt: now.Add(ttl)}
		m.entries[key] = e
	}
	e.count++
	e.value = strconv.FormatInt(e.count, 10)
	return e.count, nil
}

func (m *MemoryStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = &entry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok && !e.expired(now) {
		return false, nil
	}
	m.entries[key] = &entry{value: value, expiresAt: now.Add(ttl)}
	return true, nil
}

func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if e.expired(now) {
		delete(m.entries, key)
		return false, nil
	}
	return true, nil
}

func (m *MemoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.expired(now) {
		return 0, nil
	}
	return e.expiresAt.Sub(now), nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// janitor sweeps expired entries so idle keys do not accumulate.
func (m *MemoryStore) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *MemoryStore) sweep() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, key)
		}
	}
}
