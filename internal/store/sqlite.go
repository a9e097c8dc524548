package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteBackend is the embedded single-file backend. Layout matches the
// PostgreSQL backend with the document kept as JSON text.
type SQLiteBackend struct {
	db   *sql.DB
	cols map[Kind]*sqliteCollection
}

// OpenSQLite opens (and creates) the database file at path.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, storageErr("create data dir", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, storageErr("open sqlite", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, storageErr("open sqlite", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	b := &SQLiteBackend{db: db, cols: make(map[Kind]*sqliteCollection, len(Kinds))}
	for _, k := range Kinds {
		b.cols[k] = &sqliteCollection{db: db, table: string(k)}
	}
	return b, nil
}

func (b *SQLiteBackend) Migrate(ctx context.Context) error {
	for _, k := range Kinds {
		_, err := b.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			data       TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`, k))
		if err != nil {
			return storageErr("migrate "+string(k), err)
		}
	}
	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email_idx ON users (json_extract(data, '$.email'))`,
		`CREATE INDEX IF NOT EXISTS nodes_flow_idx ON nodes (json_extract(data, '$.flowId'))`,
	}
	for _, stmt := range indexes {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return storageErr("migrate index", err)
		}
	}
	return nil
}

func (b *SQLiteBackend) Collection(kind Kind) Collection {
	return b.cols[kind]
}

func (b *SQLiteBackend) Close(context.Context) error {
	return b.db.Close()
}

type sqliteCollection struct {
	db    *sql.DB
	table string
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (c *sqliteCollection) where(crit Criteria) (string, []any) {
	if len(crit) == 0 {
		return "1 = 1", nil
	}
	terms := make([]string, 0, len(crit))
	args := make([]any, 0, len(crit)*2)
	for _, k := range crit.Keys() {
		terms = append(terms, "json_extract(data, '$.' || ?) = ?")
		args = append(args, k, crit[k])
	}
	return strings.Join(terms, " AND "), args
}

func (c *sqliteCollection) query(ctx context.Context, q queryer, crit Criteria, suffix string) ([]Document, error) {
	cond, args := c.where(crit)
	rows, err := q.QueryContext(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE %s ORDER BY rowid %s`, c.table, cond, suffix), args...)
	if err != nil {
		return nil, storageErr("find "+c.table, err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, storageErr("scan "+c.table, err)
		}
		doc, err := unmarshalDoc([]byte(raw))
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

func (c *sqliteCollection) FindMany(ctx context.Context, crit Criteria) ([]Document, error) {
	return c.query(ctx, c.db, crit, "")
}

func (c *sqliteCollection) FindUnique(ctx context.Context, crit Criteria) (Document, error) {
	docs, err := c.query(ctx, c.db, crit, "LIMIT 1")
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

func (c *sqliteCollection) Create(ctx context.Context, doc Document) (Document, error) {
	rec := prepareCreate(doc)
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, storageErr("encode", err)
	}
	_, err = c.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, data) VALUES (?, ?)`, c.table), rec.ID(), string(raw))
	if err != nil {
		return nil, sqliteWriteErr("insert "+c.table, err)
	}
	return rec, nil
}

// Update reads the first match and writes the merged document inside one
// transaction.
func (c *sqliteCollection) Update(ctx context.Context, crit Criteria, patch Document) (Document, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin", err)
	}
	defer tx.Rollback()

	docs, err := c.query(ctx, tx, crit, "LIMIT 1")
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	rec := merge(docs[0], preparePatch(patch))
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, storageErr("encode", err)
	}
	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET data = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, c.table),
		string(raw), rec.ID())
	if err != nil {
		return nil, sqliteWriteErr("update "+c.table, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit", err)
	}
	return rec, nil
}

func (c *sqliteCollection) Delete(ctx context.Context, crit Criteria) (bool, error) {
	cond, args := c.where(crit)
	res, err := c.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s`, c.table, cond), args...)
	if err != nil {
		return false, storageErr("delete "+c.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("delete "+c.table, err)
	}
	return n > 0, nil
}

func sqliteWriteErr(op string, err error) error {
	var se *sqlite.Error
	// Extended codes (e.g. SQLITE_CONSTRAINT_UNIQUE) share the low byte.
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%w: %s", ErrDuplicate, op)
	}
	return storageErr(op, err)
}
