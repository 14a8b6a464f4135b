// Package postgres stores cached collections and blobs in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"example.com/workoutcache/internal/domain"
	"example.com/workoutcache/internal/observability"
)

const schema = `
CREATE TABLE IF NOT EXISTS cached_records (
    collection  TEXT NOT NULL,
    record_id   TEXT NOT NULL,
    created_at  TEXT NOT NULL DEFAULT '',
    payload     JSONB NOT NULL,
    PRIMARY KEY (collection, record_id)
);
CREATE INDEX IF NOT EXISTS cached_records_recency ON cached_records (collection, created_at DESC);
CREATE TABLE IF NOT EXISTS cached_blobs (
    name        TEXT PRIMARY KEY,
    payload     JSONB NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// Repository provides Postgres-backed persistence for collections and blobs.
type Repository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: pool, logger: logger.Named("pgstore")}
}

// EnsureSchema creates the tables when they do not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

// Load returns a collection newest first. Rows that no longer decode as records make the whole
// collection count as corrupt, mirroring the file store.
func (r *Repository) Load(ctx context.Context, c domain.Collection) ([]domain.Record, error) {
	const query = `SELECT payload FROM cached_records WHERE collection=$1 ORDER BY created_at DESC, record_id`

	rows, err := r.pool.Query(ctx, query, string(c))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec domain.Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			r.logger.Warn("cached row unreadable, treating collection as empty",
				zap.String("collection", string(c)),
				zap.Error(fmt.Errorf("%w: %w", domain.ErrCacheCorrupt, err)))
			observability.RecordCacheCorrupt(string(c))
			return nil, nil
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Save replaces the whole collection inside one transaction.
func (r *Repository) Save(ctx context.Context, c domain.Collection, records []domain.Record) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCacheWriteFailure, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM cached_records WHERE collection=$1`, string(c)); err != nil {
		return fmt.Errorf("%w: clear %s: %w", domain.ErrCacheWriteFailure, c, err)
	}

	rows := pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
		rec := records[i]
		payload, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		return []any{string(c), rec.ID, rec.CreatedAt, string(payload)}, nil
	})
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"cached_records"}, []string{"collection", "record_id", "created_at", "payload"}, rows); err != nil {
		return fmt.Errorf("%w: copy %s: %w", domain.ErrCacheWriteFailure, c, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit %s: %w", domain.ErrCacheWriteFailure, c, err)
	}
	return nil
}

// LoadBlob returns the stored payload, or nil when the blob was never saved.
func (r *Repository) LoadBlob(ctx context.Context, name string) (json.RawMessage, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, `SELECT payload FROM cached_blobs WHERE name=$1`, name).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// SaveBlob upserts the payload.
func (r *Repository) SaveBlob(ctx context.Context, name string, payload json.RawMessage) error {
	const stmt = `INSERT INTO cached_blobs (name, payload, updated_at) VALUES ($1, $2, NOW())
        ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`

	if _, err := r.pool.Exec(ctx, stmt, name, string(payload)); err != nil {
		return fmt.Errorf("%w: blob %s: %w", domain.ErrCacheWriteFailure, name, err)
	}
	return nil
}
