package objectstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func memKey(bucket, key string) string { return bucket + "/" + key }

func (m *MemoryStore) Upload(_ context.Context, bucket, key string, data []byte, opts UploadOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey(bucket, key)
	if _, exists := m.objects[k]; exists && !opts.Overwrite {
		return fmt.Errorf("upload %s: object already exists", k)
	}
	m.objects[k] = append([]byte(nil), data...)
	m.types[k] = opts.ContentType
	return nil
}

func (m *MemoryStore) Download(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[memKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("download %s/%s: %w", bucket, key, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Remove(_ context.Context, bucket string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		k := memKey(bucket, key)
		delete(m.objects, k)
		delete(m.types, k)
	}
	return nil
}

// Keys lists "bucket/key" entries in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *MemoryStore) ContentType(bucket, key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.types[memKey(bucket, key)]
}
