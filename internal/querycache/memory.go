package querycache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	raw       []byte
	expiresAt time.Time
}

// memoryCache keeps entries in process.
type memoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemory returns an in-process cache. A zero ttl never expires entries.
func NewMemory(ttl time.Duration) Cache {
	return &memoryCache{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (m *memoryCache) Get(_ context.Context, key Key, dest interface{}) (bool, error) {
	if len(key) == 0 {
		return false, ErrEmptyKey
	}
	m.mu.RLock()
	e, ok := m.entries[key.String()]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key.String())
		m.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(e.raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (m *memoryCache) Set(_ context.Context, key Key, value interface{}) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[key.String()] = memoryEntry{raw: raw, expiresAt: expiry(m.ttl, m.now())}
	m.mu.Unlock()
	return nil
}

func (m *memoryCache) Invalidate(_ context.Context, prefix Key) error {
	if len(prefix) == 0 {
		return ErrEmptyKey
	}
	p := prefix.String()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if covers(p, k) {
			delete(m.entries, k)
		}
	}
	return nil
}
