package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// KVRepo implements storage.KV on the kv_store table.
type KVRepo struct{ db *DB }

// NewKVRepo constructs a key-value repository.
func NewKVRepo(db *DB) *KVRepo { return &KVRepo{db: db} }

// Get returns the stored value, ok=false when the key is absent.
func (r *KVRepo) Get(ctx context.Context, key string) (string, bool, error) {
	const q = `SELECT value FROM kv_store WHERE key=$1`
	var v string
	if err := r.db.Pool.QueryRow(ctx, q, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

// Set upserts the value.
func (r *KVRepo) Set(ctx context.Context, key, value string) error {
	const q = `
INSERT INTO kv_store (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	_, err := r.db.Pool.Exec(ctx, q, key, value)
	return err
}

// Remove deletes the key. Missing keys are not an error.
func (r *KVRepo) Remove(ctx context.Context, key string) error {
	const q = `DELETE FROM kv_store WHERE key=$1`
	_, err := r.db.Pool.Exec(ctx, q, key)
	return err
}
