// Package supabase stores reconciled records in Postgres tables shaped
// (id, data jsonb, created_at, updated_at), one table per collection.
package supabase

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	_ "github.com/lib/pq"

	"github.com/reggaepotato22/krugerr-brendt/internal/domain"
	"github.com/reggaepotato22/krugerr-brendt/internal/remote"
)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Table is a remote.Store over one Postgres table.
type Table[T domain.Record[T]] struct {
	db   *sql.DB
	name string
}

func NewTable[T domain.Record[T]](db *sql.DB, name string) (*Table[T], error) {
	if !tableName.MatchString(name) {
		return nil, fmt.Errorf("invalid table name %q", name)
	}
	return &Table[T]{db: db, name: name}, nil
}

// EnsureSchema creates the table when it does not exist yet.
func (t *Table[T]) EnsureSchema(ctx context.Context) error {
	_, err := t.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id         BIGSERIAL   PRIMARY KEY,
			data       JSONB       NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_created_at ON %[1]s(created_at);
	`, t.name))
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", t.name, err)
	}
	return nil
}

// List returns rows newest first.
func (t *Table[T]) List(ctx context.Context) ([]T, error) {
	rows, err := t.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, data FROM %s ORDER BY created_at DESC, id DESC
	`, t.name))
	if err != nil {
		return nil, remote.Unavailable("list "+t.name, err)
	}
	defer func() { _ = rows.Close() }()

	var out []T
	for rows.Next() {
		var (
			id   int64
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, remote.Unavailable("scan "+t.name, err)
		}
		rec, err := decode[T](id, data)
		if err != nil {
			return nil, remote.Unavailable("decode "+t.name, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, remote.Unavailable("list "+t.name, err)
	}
	return out, nil
}

func (t *Table[T]) Insert(ctx context.Context, rec T) (T, error) {
	var zero T
	data, err := encode(rec)
	if err != nil {
		return zero, remote.Unavailable("encode "+t.name, err)
	}

	var id int64
	err = t.db.QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (data) VALUES ($1) RETURNING id
	`, t.name), data).Scan(&id)
	if err != nil {
		return zero, remote.Unavailable("insert "+t.name, err)
	}

	return rec.WithMeta(remoteMeta(id)), nil
}

func (t *Table[T]) Update(ctx context.Context, rec T) error {
	id, err := strconv.ParseInt(rec.RecordMeta().ID, 10, 64)
	if err != nil {
		return remote.Unavailable("update "+t.name, fmt.Errorf("id %q is not a remote id", rec.RecordMeta().ID))
	}
	data, err := encode(rec)
	if err != nil {
		return remote.Unavailable("encode "+t.name, err)
	}

	result, err := t.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET data = $1, updated_at = NOW() WHERE id = $2
	`, t.name), data, id)
	if err != nil {
		return remote.Unavailable("update "+t.name, err)
	}
	return checkAffected(result, "update "+t.name)
}

func (t *Table[T]) Delete(ctx context.Context, id string) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return remote.Unavailable("delete "+t.name, fmt.Errorf("id %q is not a remote id", id))
	}

	result, err := t.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, t.name), n)
	if err != nil {
		return remote.Unavailable("delete "+t.name, err)
	}
	return checkAffected(result, "delete "+t.name)
}

func checkAffected(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return remote.Unavailable(op, err)
	}
	if n == 0 {
		return remote.Unavailable(op, fmt.Errorf("row not found"))
	}
	return nil
}

func remoteMeta(id int64) domain.Meta {
	return domain.Meta{}.Stamped(strconv.FormatInt(id, 10), domain.ProvenanceRemote)
}

// encode drops the reconciliation metadata; the row id is the identity.
func encode[T domain.Record[T]](rec T) ([]byte, error) {
	return json.Marshal(rec.WithMeta(domain.Meta{}))
}

func decode[T domain.Record[T]](id int64, data []byte) (T, error) {
	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, err
	}
	return rec.WithMeta(remoteMeta(id)), nil
}
