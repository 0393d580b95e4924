package storage

import (
	"context"
	"sync"
)

// MemoryStore is a Store that lives only as long as the process.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[Scope]map[string]string
	writes int
	closed bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[Scope]map[string]string)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string, scope Scope) (string, bool, error) {
	if err := validScope(scope); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.data[scope][key]
	return v, ok, nil
}

// Set implements Store.
func (m *MemoryStore) Set(ctx context.Context, key, value string, scope Scope, target Target) error {
	return m.SetMany(ctx, []Item{{Key: key, Value: value, Scope: scope, Target: target}})
}

// SetMany implements Store.
func (m *MemoryStore) SetMany(_ context.Context, items []Item) error {
	if err := validateItems(items); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, it := range items {
		bucket, ok := m.data[it.Scope]
		if !ok {
			bucket = make(map[string]string)
			m.data[it.Scope] = bucket
		}
		bucket[it.Key] = it.Value
	}
	m.writes++
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, key string, scope Scope) error {
	if err := validScope(scope); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.data[scope], key)
	return nil
}

// Writes returns how many successful write batches the store has applied.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
