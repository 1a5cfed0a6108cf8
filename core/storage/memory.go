package storage

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
)

// MemoryStore is an in-memory ObjectStore for tests and local runs without
// an S3 endpoint. FailUploads/FailRemovals let tests simulate the partial
// failure paths.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	FailUploads  map[string]error
	FailRemovals map[string]error
	Removed      []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}}
}

func (m *MemoryStore) Upload(ctx context.Context, path string, reader io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailUploads[path]; ok {
		return err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.objects[path] = data
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, paths ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for _, p := range paths {
		if err, ok := m.FailRemovals[p]; ok {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		delete(m.objects, p)
		m.Removed = append(m.Removed, p)
	}
	return firstErr
}

func (m *MemoryStore) PublicURL(path string) string {
	return "memory://" + path
}

func (m *MemoryStore) Has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok
}

func (m *MemoryStore) Get(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (m *MemoryStore) ListPaths(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]string, 0, len(m.objects))
	for p := range m.objects {
		res = append(res, p)
	}
	sort.Strings(res)
	return res, nil
}
