// Package store is the record store behind the entity repositories.
//
// Every entity kind lives in its own Collection of JSON documents. A
// Collection supports exact-match criteria lookups, creation with a
// generated id and timestamps, merge updates and criteria deletes. Backends
// (memory, JSON files, PostgreSQL, SQLite, MongoDB) are selected at start-up
// and injected into the repositories.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by FindUnique and Update when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrStorage wraps any backend I/O or serialization failure.
	ErrStorage = errors.New("storage failure")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// Kind names an entity collection.
type Kind string

const (
	Users    Kind = "users"
	Projects Kind = "projects"
	Tokens   Kind = "tokens"
	Flows    Kind = "flows"
	Nodes    Kind = "nodes"
)

// Kinds lists every collection a backend must provide.
var Kinds = []Kind{Users, Projects, Tokens, Flows, Nodes}

const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Document is one stored record as a JSON object.
type Document map[string]any

// ID returns the document id or "".
func (d Document) ID() string {
	id, _ := d[FieldID].(string)
	return id
}

// Criteria is an exact-match conjunction over top-level string fields.
// A nil or empty Criteria matches every record.
type Criteria map[string]string

// ByID is shorthand for Criteria{"id": id}.
func ByID(id string) Criteria { return Criteria{FieldID: id} }

// Matches reports whether doc satisfies every field of c.
func (c Criteria) Matches(doc Document) bool {
	for k, want := range c {
		got, ok := doc[k].(string)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Keys returns the criteria field names in a stable order, for backends that
// build query text.
func (c Criteria) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Collection is the per-kind record store contract.
type Collection interface {
	FindMany(ctx context.Context, where Criteria) ([]Document, error)
	FindUnique(ctx context.Context, where Criteria) (Document, error)
	Create(ctx context.Context, doc Document) (Document, error)
	Update(ctx context.Context, where Criteria, patch Document) (Document, error)
	Delete(ctx context.Context, where Criteria) (bool, error)
}

// Backend provides one Collection per Kind.
type Backend interface {
	Collection(kind Kind) Collection
	Close(ctx context.Context) error
}

// Migrator is implemented by backends that need schema set-up.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// now is replaced in tests that need deterministic timestamps.
var now = func() time.Time { return time.Now().UTC() }

func timestamp() string { return now().Format(time.RFC3339Nano) }

// prepareCreate returns a copy of doc with an id and fresh timestamps.
func prepareCreate(doc Document) Document {
	out := make(Document, len(doc)+3)
	for k, v := range doc {
		out[k] = v
	}
	if out.ID() == "" {
		out[FieldID] = uuid.NewString()
	}
	ts := timestamp()
	out[FieldCreatedAt] = ts
	out[FieldUpdatedAt] = ts
	return out
}

// preparePatch strips immutable fields from patch and stamps updatedAt.
func preparePatch(patch Document) Document {
	out := make(Document, len(patch)+1)
	for k, v := range patch {
		if k == FieldID || k == FieldCreatedAt {
			continue
		}
		out[k] = v
	}
	out[FieldUpdatedAt] = timestamp()
	return out
}

func merge(dst, patch Document) Document {
	out := make(Document, len(dst)+len(patch))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// Encode converts a value to a Document through its JSON form.
func Encode(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, storageErr("encode", err)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, storageErr("encode", err)
	}
	return doc, nil
}

// Decode fills out from a Document through its JSON form.
func Decode(doc Document, out any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return storageErr("decode", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return storageErr("decode", err)
	}
	return nil
}

// clone deep-copies a document so callers never share maps with a backend.
func clone(doc Document) Document {
	if doc == nil {
		return nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return merge(nil, doc)
	}
	var out Document
	if err := json.Unmarshal(b, &out); err != nil {
		return merge(nil, doc)
	}
	return out
}
