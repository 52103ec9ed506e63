package state

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Get returns the stored JSON value.
func (r *PGRepo) Get(ctx context.Context, workspaceID string, key Key) ([]byte, error) {
	if !key.Valid() {
		return nil, ErrUnknownKey
	}
	const query = `
SELECT value
FROM workspace_state
WHERE workspace_id = $1 AND key = $2`
	var value []byte
	err := r.DB.QueryRowContext(ctx, query, workspaceID, string(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put upserts the JSON value.
func (r *PGRepo) Put(ctx context.Context, workspaceID string, key Key, value []byte) error {
	if !key.Valid() {
		return ErrUnknownKey
	}
	const query = `
INSERT INTO workspace_state (workspace_id, key, value, updated_at)
VALUES ($1, $2, $3::jsonb, $4)
ON CONFLICT (workspace_id, key)
DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	_, err := r.DB.ExecContext(ctx, query, workspaceID, string(key), value, time.Now().UTC())
	return err
}
