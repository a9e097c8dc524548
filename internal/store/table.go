package store

import "context"

// Table is a typed view over a Collection. T must round-trip through JSON
// with "id", "createdAt" and "updatedAt" fields.
type Table[T any] struct {
	col Collection
}

func NewTable[T any](col Collection) *Table[T] {
	return &Table[T]{col: col}
}

func (t *Table[T]) FindMany(ctx context.Context, where Criteria) ([]T, error) {
	docs, err := t.col.FindMany(ctx, where)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := Decode(doc, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (t *Table[T]) FindUnique(ctx context.Context, where Criteria) (*T, error) {
	doc, err := t.col.FindUnique(ctx, where)
	if err != nil {
		return nil, err
	}
	return t.decode(doc)
}

// Create stores v and returns the stored record with id and timestamps set.
// An empty id is replaced with a generated one.
func (t *Table[T]) Create(ctx context.Context, v *T) (*T, error) {
	doc, err := Encode(v)
	if err != nil {
		return nil, err
	}
	if doc.ID() == "" {
		delete(doc, FieldID)
	}
	created, err := t.col.Create(ctx, doc)
	if err != nil {
		return nil, err
	}
	return t.decode(created)
}

// Update merges patch into the first record matching where.
func (t *Table[T]) Update(ctx context.Context, where Criteria, patch Document) (*T, error) {
	doc, err := t.col.Update(ctx, where, patch)
	if err != nil {
		return nil, err
	}
	return t.decode(doc)
}

func (t *Table[T]) Delete(ctx context.Context, where Criteria) (bool, error) {
	return t.col.Delete(ctx, where)
}

func (t *Table[T]) decode(doc Document) (*T, error) {
	var v T
	if err := Decode(doc, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
