package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

type memObject struct {
	data        []byte
	contentType string
}

// MemStore is an in-memory Store for tests and single-binary development
// runs. Presigned URLs are opaque tokens; Put simulates the client-side
// transfer against them.
type MemStore struct {
	mu      sync.Mutex
	objects map[string]memObject
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{objects: map[string]memObject{}}
}

// PresignUpload implements Store. The returned URL is not routable; it
// identifies the slot a later Put fills.
func (m *MemStore) PresignUpload(_ context.Context, key, _ string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("memory://%s?expires=%d", key, time.Now().Add(ttl).Unix()), nil
}

// Put simulates a client completing the presigned transfer.
func (m *MemStore) Put(key, contentType string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: append([]byte(nil), data...), contentType: contentType}
}

// Exists implements Store.
func (m *MemStore) Exists(_ context.Context, key string) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	if !ok {
		return false, 0, nil
	}
	return true, int64(len(o.data)), nil
}

// Read implements Store.
func (m *MemStore) Read(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(o.data)), nil
}

// Write implements Store.
func (m *MemStore) Write(_ context.Context, key, contentType string, data []byte) error {
	m.Put(key, contentType, data)
	return nil
}

// Delete implements Store.
func (m *MemStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}
