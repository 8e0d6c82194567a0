package kvstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// KV is the storage contract the engine runs against: JSON values under
// string keys with prefix scans. Backed by Redis in production and by
// MemoryKV in tests and dependency-free local runs.
type KV interface {
	// Get unmarshals the value at key into out; found is false when the
	// key is absent.
	Get(ctx context.Context, key string, out any) (found bool, err error)
	Set(ctx context.Context, key string, v any) error
	// GetByPrefix returns the raw JSON values of every key with the
	// prefix, ordered by key.
	GetByPrefix(ctx context.Context, prefix string) ([][]byte, error)
	// Incr atomically increments the integer at key and returns the new
	// value, treating an absent key as 0.
	Incr(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
}

// MemoryKV is the in-process fallback store.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(ctx context.Context, key string, out any) (bool, error) {
	m.mu.RLock()
	b, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, out)
}

func (m *MemoryKV) Set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = b
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) GetByPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	m.mu.RLock()
	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.data[k])
	}
	m.mu.RUnlock()
	return out, nil
}

func (m *MemoryKV) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	if b, ok := m.data[key]; ok {
		if err := json.Unmarshal(b, &n); err != nil {
			return 0, err
		}
	}
	n++
	b, _ := json.Marshal(n)
	m.data[key] = b
	return n, nil
}

func (m *MemoryKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}
