package storage

import (
	"context"
	"strings"
	"sync"
)

// MemoryStorage keeps documents in process memory.
type MemoryStorage struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStorage returns a Store that lives only as long as the process.
func NewMemoryStorage() *Store {
	return newStore(&MemoryStorage{docs: make(map[string][]byte)}, nil)
}

func (m *MemoryStorage) load(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, ok := m.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return raw, nil
}

func (m *MemoryStorage) loadPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]byte)
	for key, raw := range m.docs {
		if strings.HasPrefix(key, prefix) {
			out[key] = raw
		}
	}
	return out, nil
}

func (m *MemoryStorage) mutate(ctx context.Context, key string, fn func(cur []byte) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := fn(m.docs[key])
	if err != nil {
		return err
	}
	if next == nil {
		delete(m.docs, key)
		return nil
	}
	m.docs[key] = next
	return nil
}

func (m *MemoryStorage) close() error {
	// Nothing to close for in-memory storage
	return nil
}
