package cache

import (
	"context"
	"sync"
)

// Memory is a process-local Cache. Entries live until deleted.
type Memory struct {
	scopes
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, group, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[m.key(ctx, group, key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Set(ctx context.Context, group, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.key(ctx, group, key)] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Delete(ctx context.Context, group, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, m.key(ctx, group, key))
	return nil
}

func (m *Memory) AddGlobalGroups(groups ...string) {
	m.addGlobal(groups...)
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

var _ Cache = (*Memory)(nil)
