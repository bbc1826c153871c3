package storage

import (
	"bytes"
	"context"
	"strconv"
	"sync"
)

// MemoryStorage keeps items in process memory. Used by tests and the console.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]Item
	seq   uint64
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]Item)}
}

func (m *MemoryStorage) Read(_ context.Context, keys []string) (map[string]Item, error) {
	if err := validateKeys(keys); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Item, len(keys))
	for _, k := range keys {
		if it, ok := m.items[k]; ok {
			out[k] = Item{Value: bytes.Clone(it.Value), ETag: it.ETag}
		}
	}
	return out, nil
}

func (m *MemoryStorage) Write(_ context.Context, changes map[string]Item) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, it := range changes {
		if k == "" {
			return nil, ErrInvalidKey
		}
		cur, exists := m.items[k]
		if conflicts(it.ETag, cur.ETag, exists) {
			return nil, preconditionError(k)
		}
	}

	etags := make(map[string]string, len(changes))
	for k, it := range changes {
		m.seq++
		etag := strconv.FormatUint(m.seq, 10)
		m.items[k] = Item{Value: bytes.Clone(it.Value), ETag: etag}
		etags[k] = etag
	}
	return etags, nil
}

func (m *MemoryStorage) Delete(_ context.Context, keys []string) error {
	if err := validateKeys(keys); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

// Len returns the number of stored items.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
