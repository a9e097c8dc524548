package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps every collection in process memory. Records keep
// insertion order.
type MemoryBackend struct {
	mu   sync.Mutex
	cols map[Kind]*memoryCollection
}

func NewMemoryBackend() *MemoryBackend {
	b := &MemoryBackend{cols: make(map[Kind]*memoryCollection, len(Kinds))}
	for _, k := range Kinds {
		b.cols[k] = &memoryCollection{mu: &b.mu}
	}
	return b
}

func (b *MemoryBackend) Collection(kind Kind) Collection {
	return b.cols[kind]
}

func (b *MemoryBackend) Close(context.Context) error { return nil }

type memoryCollection struct {
	mu   *sync.Mutex
	docs []Document
}

func (c *memoryCollection) FindMany(_ context.Context, where Criteria) ([]Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return findMany(c.docs, where), nil
}

func (c *memoryCollection) FindUnique(_ context.Context, where Criteria) (Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := findIndex(c.docs, where)
	if i < 0 {
		return nil, ErrNotFound
	}
	return clone(c.docs[i]), nil
}

func (c *memoryCollection) Create(_ context.Context, doc Document) (Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec := clone(prepareCreate(doc))
	if findIndex(c.docs, ByID(rec.ID())) >= 0 {
		return nil, ErrDuplicate
	}
	c.docs = append(c.docs, rec)
	return clone(rec), nil
}

func (c *memoryCollection) Update(_ context.Context, where Criteria, patch Document) (Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := findIndex(c.docs, where)
	if i < 0 {
		return nil, ErrNotFound
	}
	c.docs[i] = clone(merge(c.docs[i], preparePatch(patch)))
	return clone(c.docs[i]), nil
}

func (c *memoryCollection) Delete(_ context.Context, where Criteria) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept, removed := deleteMatching(c.docs, where)
	c.docs = kept
	return removed, nil
}

// The helpers below are shared by the memory and file backends, which both
// hold a whole collection as a slice.

func findMany(docs []Document, where Criteria) []Document {
	out := make([]Document, 0)
	for _, d := range docs {
		if where.Matches(d) {
			out = append(out, clone(d))
		}
	}
	return out
}

func findIndex(docs []Document, where Criteria) int {
	for i, d := range docs {
		if where.Matches(d) {
			return i
		}
	}
	return -1
}

func deleteMatching(docs []Document, where Criteria) ([]Document, bool) {
	kept := make([]Document, 0, len(docs))
	for _, d := range docs {
		if !where.Matches(d) {
			kept = append(kept, d)
		}
	}
	return kept, len(kept) < len(docs)
}
