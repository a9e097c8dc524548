package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend keeps each kind in its own table of JSONB documents.
type PostgresBackend struct {
	pool *pgxpool.Pool
	cols map[Kind]*postgresCollection
}

func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	b := &PostgresBackend{pool: pool, cols: make(map[Kind]*postgresCollection, len(Kinds))}
	for _, k := range Kinds {
		b.cols[k] = &postgresCollection{pool: pool, table: pgx.Identifier{string(k)}.Sanitize()}
	}
	return b
}

// Migrate creates the tables and lookup indexes if they don't exist.
func (b *PostgresBackend) Migrate(ctx context.Context) error {
	for _, k := range Kinds {
		table := pgx.Identifier{string(k)}.Sanitize()
		_, err := b.pool.Exec(ctx, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id         TEXT PRIMARY KEY,
				data       JSONB       NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, table))
		if err != nil {
			return storageErr("migrate "+string(k), err)
		}
	}
	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email_idx ON users ((data->>'email'))`,
		`CREATE INDEX IF NOT EXISTS projects_user_idx ON projects ((data->>'userId'))`,
		`CREATE INDEX IF NOT EXISTS tokens_project_idx ON tokens ((data->>'projectId'))`,
		`CREATE INDEX IF NOT EXISTS flows_project_idx ON flows ((data->>'projectId'))`,
		`CREATE INDEX IF NOT EXISTS nodes_flow_idx ON nodes ((data->>'flowId'))`,
	}
	for _, stmt := range indexes {
		if _, err := b.pool.Exec(ctx, stmt); err != nil {
			return storageErr("migrate index", err)
		}
	}
	return nil
}

func (b *PostgresBackend) Collection(kind Kind) Collection {
	return b.cols[kind]
}

func (b *PostgresBackend) Close(context.Context) error {
	b.pool.Close()
	return nil
}

type postgresCollection struct {
	pool  *pgxpool.Pool
	table string
}

// where renders criteria as parameterised "data->>$n = $n+1" terms.
func (c *postgresCollection) where(crit Criteria, offset int) (string, []any) {
	if len(crit) == 0 {
		return "TRUE", nil
	}
	terms := make([]string, 0, len(crit))
	args := make([]any, 0, len(crit)*2)
	for _, k := range crit.Keys() {
		n := offset + len(args)
		terms = append(terms, fmt.Sprintf("data->>($%d::text) = $%d", n+1, n+2))
		args = append(args, k, crit[k])
	}
	return strings.Join(terms, " AND "), args
}

func (c *postgresCollection) FindMany(ctx context.Context, crit Criteria) ([]Document, error) {
	cond, args := c.where(crit, 0)
	rows, err := c.pool.Query(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE %s ORDER BY created_at, id`, c.table, cond), args...)
	if err != nil {
		return nil, storageErr("find "+c.table, err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, storageErr("scan "+c.table, err)
		}
		doc, err := unmarshalDoc(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("find "+c.table, err)
	}
	return docs, nil
}

func (c *postgresCollection) FindUnique(ctx context.Context, crit Criteria) (Document, error) {
	cond, args := c.where(crit, 0)
	var raw []byte
	err := c.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE %s ORDER BY created_at, id LIMIT 1`, c.table, cond), args...,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("find "+c.table, err)
	}
	return unmarshalDoc(raw)
}

func (c *postgresCollection) Create(ctx context.Context, doc Document) (Document, error) {
	rec := prepareCreate(doc)
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, storageErr("encode", err)
	}
	_, err = c.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, data) VALUES ($1, $2)`, c.table),
		rec.ID(), raw,
	)
	if err != nil {
		return nil, pgWriteErr("insert "+c.table, err)
	}
	return rec, nil
}

// Update merges the patch with the JSONB || operator in a single statement.
func (c *postgresCollection) Update(ctx context.Context, crit Criteria, patch Document) (Document, error) {
	raw, err := json.Marshal(preparePatch(patch))
	if err != nil {
		return nil, storageErr("encode", err)
	}
	cond, args := c.where(crit, 1)
	var out []byte
	err = c.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE %[1]s SET data = data || $1::jsonb, updated_at = NOW()
		WHERE id = (SELECT id FROM %[1]s WHERE %[2]s ORDER BY created_at, id LIMIT 1)
		RETURNING data`, c.table, cond),
		append([]any{raw}, args...)...,
	).Scan(&out)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, pgWriteErr("update "+c.table, err)
	}
	return unmarshalDoc(out)
}

func (c *postgresCollection) Delete(ctx context.Context, crit Criteria) (bool, error) {
	cond, args := c.where(crit, 0)
	tag, err := c.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s`, c.table, cond), args...)
	if err != nil {
		return false, storageErr("delete "+c.table, err)
	}
	return tag.RowsAffected() > 0, nil
}

func pgWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return storageErr(op, err)
}

func unmarshalDoc(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, storageErr("decode", err)
	}
	return doc, nil
}
