// Package ordstore is the ordered store adapter (component C4): a thin
// wrapper around a SQLite-family database exposing exactly the six
// primitives the engine façade needs — get/put/delete/range/
// deleteExpired and a transaction boundary — with nothing else.
// Internals here are intentionally unremarkable: the engine treats this
// package as an external collaborator, not a focus of the design.
package ordstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"go.uber.org/zap"
)

// SchemaVersion is written to PRAGMA user_version on a fresh database
// and checked against on every open, so a database written by a newer
// build is never silently misread by an older one.
const SchemaVersion = 1

// ErrSchemaVersion is returned by Open when the database's user_version
// is newer than this build understands.
var ErrSchemaVersion = fmt.Errorf("ordstore: schema version newer than supported")

// Entry is one stored row.
type Entry struct {
	KeyHash      string
	Value        []byte
	Versionstamp string
	ExpiresAt    *int64 // absolute ms since epoch; nil means no expiry
}

// Store is the ordered map: a SQLite database used purely as a durable
// ordered map with write-ahead logging.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the backing database at path. An
// empty path opens a private in-memory database.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := ":memory:"
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ordstore: open: %w", err)
	}
	// A single connection avoids SQLite's single-writer model fighting
	// itself across pooled connections, and keeps an in-memory database
	// from silently becoming two separate empty databases.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.init(path); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(path string) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	if path != "" {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("ordstore: pragma %q: %w", p, err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key_hash     TEXT PRIMARY KEY,
	value        BLOB,
	versionstamp TEXT NOT NULL,
	expires_at   INTEGER NULL
);
CREATE INDEX IF NOT EXISTS idx_kv_store_expires_at ON kv_store(expires_at) WHERE expires_at IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_kv_store_key_hash ON kv_store(key_hash);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("ordstore: create schema: %w", err)
	}

	var userVersion int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&userVersion); err != nil {
		return fmt.Errorf("ordstore: read user_version: %w", err)
	}
	if userVersion == 0 {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
			return fmt.Errorf("ordstore: set user_version: %w", err)
		}
		userVersion = SchemaVersion
	}
	if userVersion > SchemaVersion {
		return ErrSchemaVersion
	}

	s.logger.Debug("ordstore opened", zap.String("path", path), zap.Int("schema_version", userVersion))
	return nil
}

// Close releases the backing database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const getQuery = `SELECT value, versionstamp, expires_at FROM kv_store WHERE key_hash = ? AND (expires_at IS NULL OR expires_at > ?)`

// Get returns the entry for keyHash, or (nil, nil) if absent or expired
// as of now (ms since epoch).
func (s *Store) Get(ctx context.Context, keyHash string, now int64) (*Entry, error) {
	return get(ctx, s.db, keyHash, now)
}

func get(ctx context.Context, q querier, keyHash string, now int64) (*Entry, error) {
	row := q.QueryRowContext(ctx, getQuery, keyHash, now)
	var e Entry
	e.KeyHash = keyHash
	var expiresAt sql.NullInt64
	if err := row.Scan(&e.Value, &e.Versionstamp, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("ordstore: get: %w", err)
	}
	if expiresAt.Valid {
		v := expiresAt.Int64
		e.ExpiresAt = &v
	}
	return &e, nil
}

const putQuery = `
INSERT INTO kv_store (key_hash, value, versionstamp, expires_at) VALUES (?, ?, ?, ?)
ON CONFLICT(key_hash) DO UPDATE SET value = excluded.value, versionstamp = excluded.versionstamp, expires_at = excluded.expires_at
`

// Put upserts an entry.
func (s *Store) Put(ctx context.Context, keyHash string, value []byte, vs string, expiresAt *int64) error {
	return put(ctx, s.db, keyHash, value, vs, expiresAt)
}

func put(ctx context.Context, ex execer, keyHash string, value []byte, vs string, expiresAt *int64) error {
	var exp any
	if expiresAt != nil {
		exp = *expiresAt
	}
	if _, err := ex.ExecContext(ctx, putQuery, keyHash, value, vs, exp); err != nil {
		return fmt.Errorf("ordstore: put: %w", err)
	}
	return nil
}

// Delete unconditionally removes an entry.
func (s *Store) Delete(ctx context.Context, keyHash string) error {
	return del(ctx, s.db, keyHash)
}

func del(ctx context.Context, ex execer, keyHash string) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM kv_store WHERE key_hash = ?`, keyHash); err != nil {
		return fmt.Errorf("ordstore: delete: %w", err)
	}
	return nil
}

// Range returns rows with startHash <= key_hash < endHash (ascending) or
// the reverse order with the same bounds, excluding any row equal to
// prefixHash (pass "" to exclude nothing) and any expired row, up to
// limit rows.
func (s *Store) Range(ctx context.Context, startHash, endHash, prefixHash string, now int64, limit int, reverse bool) ([]Entry, error) {
	order := "ASC"
	if reverse {
		order = "DESC"
	}
	query := fmt.Sprintf(`
SELECT key_hash, value, versionstamp, expires_at FROM kv_store
WHERE key_hash >= ? AND key_hash < ? AND key_hash <> ? AND (expires_at IS NULL OR expires_at > ?)
ORDER BY key_hash %s
LIMIT ?`, order)

	rows, err := s.db.QueryContext(ctx, query, startHash, endHash, prefixHash, now, limit)
	if err != nil {
		return nil, fmt.Errorf("ordstore: range: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var expiresAt sql.NullInt64
		if err := rows.Scan(&e.KeyHash, &e.Value, &e.Versionstamp, &expiresAt); err != nil {
			return nil, fmt.Errorf("ordstore: range scan: %w", err)
		}
		if expiresAt.Valid {
			v := expiresAt.Int64
			e.ExpiresAt = &v
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ordstore: range iterate: %w", err)
	}
	return out, nil
}

// DeleteExpired physically removes every row whose expiry has passed.
func (s *Store) DeleteExpired(ctx context.Context, now int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_store WHERE expires_at IS NOT NULL AND expires_at <= ?`, now); err != nil {
		return fmt.Errorf("ordstore: delete expired: %w", err)
	}
	return nil
}

// querier and execer narrow *sql.DB and *sql.Tx to what Tx needs, so
// the same Get/Put/Delete bodies serve both the autocommit and
// in-transaction paths.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Tx is a Store's primitives scoped to one BEGIN/COMMIT boundary.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Get(ctx context.Context, keyHash string, now int64) (*Entry, error) {
	return get(ctx, t.tx, keyHash, now)
}

func (t *Tx) Put(ctx context.Context, keyHash string, value []byte, vs string, expiresAt *int64) error {
	return put(ctx, t.tx, keyHash, value, vs, expiresAt)
}

func (t *Tx) Delete(ctx context.Context, keyHash string) error {
	return del(ctx, t.tx, keyHash)
}

// WithTransaction runs fn inside a BEGIN/COMMIT boundary,
// rolling back on any error fn returns (including a panic recovered and
// re-raised after rollback).
func (s *Store) WithTransaction(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ordstore: begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("ordstore: commit: %w", err)
	}
	return nil
}
