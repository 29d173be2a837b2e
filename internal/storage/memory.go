package storage

import (
	"context"
	"sync"
)

// MemoryAdapter keeps values in process memory. It is the substitute used by
// tests and by sessions that opt out of durability.
type MemoryAdapter struct {
	mu     sync.RWMutex
	values map[string][]byte
	quota  *quota
	// failSaves forces every Save to report ErrQuotaExceeded.
	failSaves bool
}

// NewMemoryAdapter returns an empty adapter with the given byte quota (0 = unlimited).
func NewMemoryAdapter(quotaBytes int64) *MemoryAdapter {
	return &MemoryAdapter{
		values: make(map[string][]byte),
		quota:  newQuota(quotaBytes),
	}
}

// Load returns a copy of the value stored under key.
func (m *MemoryAdapter) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Save stores a copy of value under key.
func (m *MemoryAdapter) Save(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaves || !m.quota.fits(key, int64(len(value))) {
		return ErrQuotaExceeded
	}
	m.values[key] = append([]byte(nil), value...)
	m.quota.set(key, int64(len(value)))
	return nil
}

// Clear removes the given keys.
func (m *MemoryAdapter) Clear(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
		m.quota.drop(key)
	}
	return nil
}

// Close is a no-op.
func (m *MemoryAdapter) Close() error {
	return nil
}

// SetFailSaves makes subsequent saves fail with ErrQuotaExceeded.
func (m *MemoryAdapter) SetFailSaves(fail bool) {
	m.mu.Lock()
	m.failSaves = fail
	m.mu.Unlock()
}

// Put stores value bypassing the quota. Useful for seeding fixtures.
func (m *MemoryAdapter) Put(key string, value []byte) {
	m.mu.Lock()
	m.values[key] = append([]byte(nil), value...)
	m.quota.set(key, int64(len(value)))
	m.mu.Unlock()
}
