package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend stores each collection as a JSON array in <dir>/<kind>.json.
// Every mutating call rewrites the whole file through a temp file and an
// atomic rename, so a failed write leaves the previous contents in place.
type FileBackend struct {
	dir  string
	mu   sync.Mutex
	cols map[Kind]*fileCollection
}

// NewFileBackend creates dir and an empty array file for each missing kind.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, storageErr("create data dir", err)
	}
	b := &FileBackend{dir: dir, cols: make(map[Kind]*fileCollection, len(Kinds))}
	for _, k := range Kinds {
		c := &fileCollection{mu: &b.mu, path: filepath.Join(dir, string(k)+".json")}
		if _, err := os.Stat(c.path); errors.Is(err, fs.ErrNotExist) {
			if err := c.write(nil); err != nil {
				return nil, err
			}
		}
		b.cols[k] = c
	}
	return b, nil
}

func (b *FileBackend) Collection(kind Kind) Collection {
	return b.cols[kind]
}

func (b *FileBackend) Close(context.Context) error { return nil }

type fileCollection struct {
	mu   *sync.Mutex
	path string
}

func (c *fileCollection) read() ([]Document, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("read "+c.path, err)
	}
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, storageErr("parse "+c.path, err)
	}
	return docs, nil
}

func (c *fileCollection) write(docs []Document) error {
	if docs == nil {
		docs = []Document{}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return storageErr("encode "+c.path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return storageErr("write "+c.path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return storageErr("write "+c.path, err)
	}
	if err := tmp.Close(); err != nil {
		return storageErr("write "+c.path, err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return storageErr(fmt.Sprintf("rename %s", c.path), err)
	}
	return nil
}

func (c *fileCollection) FindMany(_ context.Context, where Criteria) ([]Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs, err := c.read()
	if err != nil {
		return nil, err
	}
	return findMany(docs, where), nil
}

func (c *fileCollection) FindUnique(_ context.Context, where Criteria) (Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs, err := c.read()
	if err != nil {
		return nil, err
	}
	i := findIndex(docs, where)
	if i < 0 {
		return nil, ErrNotFound
	}
	return docs[i], nil
}

func (c *fileCollection) Create(_ context.Context, doc Document) (Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs, err := c.read()
	if err != nil {
		return nil, err
	}
	rec := clone(prepareCreate(doc))
	if findIndex(docs, ByID(rec.ID())) >= 0 {
		return nil, ErrDuplicate
	}
	if err := c.write(append(docs, rec)); err != nil {
		return nil, err
	}
	return rec, nil
}

func (c *fileCollection) Update(_ context.Context, where Criteria, patch Document) (Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs, err := c.read()
	if err != nil {
		return nil, err
	}
	i := findIndex(docs, where)
	if i < 0 {
		return nil, ErrNotFound
	}
	docs[i] = clone(merge(docs[i], preparePatch(patch)))
	if err := c.write(docs); err != nil {
		return nil, err
	}
	return docs[i], nil
}

func (c *fileCollection) Delete(_ context.Context, where Criteria) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs, err := c.read()
	if err != nil {
		return false, err
	}
	kept, removed := deleteMatching(docs, where)
	if !removed {
		return false, nil
	}
	if err := c.write(kept); err != nil {
		return false, err
	}
	return true, nil
}
