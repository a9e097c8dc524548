package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Archive is a key/value blob store for flow snapshots.
type Archive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	RemovePrefix(ctx context.Context, prefix string) error
}

type blob struct {
	data        []byte
	contentType string
}

// MemoryArchive is an in-process Archive.
type MemoryArchive struct {
	mu    sync.Mutex
	blobs map[string]blob
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{blobs: make(map[string]blob)}
}

func (a *MemoryArchive) Put(_ context.Context, key string, data []byte, contentType string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blobs[key] = blob{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (a *MemoryArchive) Get(_ context.Context, key string) ([]byte, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.blobs[key]
	if !ok {
		return nil, "", ErrNotFound
	}
	return append([]byte(nil), b.data...), b.contentType, nil
}

func (a *MemoryArchive) RemovePrefix(_ context.Context, prefix string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k := range a.blobs {
		if strings.HasPrefix(k, prefix) {
			delete(a.blobs, k)
		}
	}
	return nil
}

// Keys lists stored keys in order.
func (a *MemoryArchive) Keys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	keys := make([]string, 0, len(a.blobs))
	for k := range a.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
