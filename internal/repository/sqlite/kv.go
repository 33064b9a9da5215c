// Package sqlite implements the durable local key-value store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/challengeties/rewards/internal/errs"
	"github.com/challengeties/rewards/internal/repository"
)

// KV stores string values in a single kv table.
type KV struct {
	db *sql.DB
}

var _ repository.KeyValueStore = (*KV)(nil)

// Open opens (or creates) the database file and ensures the schema.
func Open(path string) (*KV, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	const q = `CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(q); err != nil {
		db.Close()
		return nil, err
	}
	return &KV{db: db}, nil
}

// Close closes the database connection.
func (k *KV) Close() error { return k.db.Close() }

// Get returns the stored value or errs.ErrNotFound.
func (k *KV) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := k.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errs.ErrNotFound
	}
	return v, err
}

// Set upserts a value.
func (k *KV) Set(ctx context.Context, key, value string) error {
	_, err := k.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	return err
}

// Remove deletes keys in one transaction.
func (k *KV) Remove(ctx context.Context, keys ...string) error {
	tx, err := k.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Take deletes keys with a single DELETE ... RETURNING, so a value is handed to
// at most one caller even across processes sharing the file.
func (k *KV) Take(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	args := make([]any, len(keys))
	for i, key := range keys {
		args[i] = key
	}
	q := `DELETE FROM kv WHERE key IN (?` + strings.Repeat(",?", len(keys)-1) + `) RETURNING key, value`
	rows, err := k.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var key, v string
		if err := rows.Scan(&key, &v); err != nil {
			return nil, err
		}
		out[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
