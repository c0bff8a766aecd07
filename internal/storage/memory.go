package storage

import (
	"context"
	"sync"
)

// Object is a stored image held by MemoryImageStore.
type Object struct {
	ContentType string
	Body        []byte
}

// MemoryImageStore keeps images in process memory. Used in development and tests.
type MemoryImageStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	baseURL string
}

var _ ImageStore = (*MemoryImageStore)(nil)

// NewMemoryImageStore creates an empty store whose URLs start with baseURL.
func NewMemoryImageStore(baseURL string) *MemoryImageStore {
	if baseURL == "" {
		baseURL = "memory://images"
	}
	return &MemoryImageStore{objects: make(map[string]Object), baseURL: baseURL}
}

func (s *MemoryImageStore) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cp := make([]byte, len(body))
	copy(cp, body)

	s.mu.Lock()
	s.objects[key] = Object{ContentType: contentType, Body: cp}
	s.mu.Unlock()

	return joinURL(s.baseURL, key), nil
}

func (s *MemoryImageStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Get returns a stored object.
func (s *MemoryImageStore) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[key]
	return o, ok
}

// Len returns the number of stored objects.
func (s *MemoryImageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
