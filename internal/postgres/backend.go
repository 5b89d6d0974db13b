// Package postgres implements the board store on PostgreSQL.
//
// The board lives in three tables: pipeline_meta holds the saved revision,
// pipeline_buckets the column configuration and pipeline_records one row per
// record with its position and a JSONB payload. Save replaces the board in a
// single transaction and never overwrites a newer revision.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS pipeline_meta (
	id       SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	revision BIGINT NOT NULL,
	saved_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS pipeline_buckets (
	bucket_id   TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	ordinal     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS pipeline_records (
	record_id TEXT PRIMARY KEY,
	bucket_id TEXT NOT NULL,
	position  INTEGER NOT NULL,
	payload   JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pipeline_records_bucket ON pipeline_records (bucket_id, position);
`

// Backend implements types.Backend on a PostgreSQL database.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	db       *sql.DB
}

// NewBackend creates a detached PostgreSQL backend.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach opens the connection pool for config.Postgres.DSN, pings the server
// and creates the tables if needed.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	db, err := sql.Open("postgres", config.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("pinging postgres: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return err
	}

	b.db = db
	b.attached = true
	return nil
}

// Detach closes the pool. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	b.attached = false
	return err
}

// Ping checks the database connection.
func (b *Backend) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrBackendDetached
	}
	return b.db.PingContext(ctx)
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Save replaces the stored board with snap. A snapshot whose revision is not
// newer than the stored one is skipped.
func (b *Backend) Save(ctx context.Context, snap types.Snapshot) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrBackendDetached
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var stored int64
	err = tx.QueryRowContext(ctx, `SELECT revision FROM pipeline_meta WHERE id = 1 FOR UPDATE`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return fmt.Errorf("reading revision: %w", err)
	case stored >= snap.Revision:
		return nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pipeline_records`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pipeline_buckets`); err != nil {
		return err
	}
	for i, bkt := range snap.Buckets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pipeline_buckets (bucket_id, title, description, ordinal) VALUES ($1, $2, $3, $4)`,
			bkt.ID, bkt.Title, bkt.Description, i); err != nil {
			return fmt.Errorf("inserting bucket %s: %w", bkt.ID, err)
		}
	}
	if err := copyRecords(ctx, tx, snap); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO pipeline_meta (id, revision, saved_at) VALUES (1, $1, NOW())
		 ON CONFLICT (id) DO UPDATE SET revision = EXCLUDED.revision, saved_at = EXCLUDED.saved_at`,
		snap.Revision); err != nil {
		return fmt.Errorf("writing revision: %w", err)
	}
	return tx.Commit()
}

// copyRecords bulk-loads the placed records with COPY.
func copyRecords(ctx context.Context, tx *sql.Tx, snap types.Snapshot) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("pipeline_records", "record_id", "bucket_id", "position", "payload"))
	if err != nil {
		return fmt.Errorf("preparing copy: %w", err)
	}
	defer stmt.Close()

	for _, bkt := range snap.Buckets {
		for pos, id := range bkt.Items {
			rec, ok := snap.Records[id]
			if !ok {
				return fmt.Errorf("%w: bucket %s lists unknown record %s", types.ErrInvalidData, bkt.ID, id)
			}
			payload, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, id, bkt.ID, pos, string(payload)); err != nil {
				return fmt.Errorf("copying record %s: %w", id, err)
			}
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flushing copy: %w", err)
	}
	return nil
}

// Load returns the stored board, or nil when nothing has been saved.
func (b *Backend) Load(ctx context.Context) (*types.Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrBackendDetached
	}

	var rev int64
	err := b.db.QueryRowContext(ctx, `SELECT revision FROM pipeline_meta WHERE id = 1`).Scan(&rev)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading revision: %w", err)
	}

	buckets, err := queryBuckets(ctx, b.db)
	if err != nil {
		return nil, err
	}
	rows, err := queryRecords(ctx, b.db)
	if err != nil {
		return nil, err
	}
	return buildSnapshot(rev, buckets, rows)
}

// recordRow is one pipeline_records row.
type recordRow struct {
	RecordID string
	BucketID string
	Position int
	Payload  []byte
}

func queryBuckets(ctx context.Context, db *sql.DB) ([]types.Bucket, error) {
	rows, err := db.QueryContext(ctx, `SELECT bucket_id, title, description FROM pipeline_buckets ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("querying buckets: %w", err)
	}
	defer rows.Close()

	var out []types.Bucket
	for rows.Next() {
		var bkt types.Bucket
		if err := rows.Scan(&bkt.ID, &bkt.Title, &bkt.Description); err != nil {
			return nil, err
		}
		out = append(out, bkt)
	}
	return out, rows.Err()
}

func queryRecords(ctx context.Context, db *sql.DB) ([]recordRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT record_id, bucket_id, position, payload FROM pipeline_records ORDER BY bucket_id, position`)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []recordRow
	for rows.Next() {
		var r recordRow
		if err := rows.Scan(&r.RecordID, &r.BucketID, &r.Position, &r.Payload); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// buildSnapshot assembles a snapshot from stored rows. Rows must be ordered
// by bucket and position. A record in an unknown bucket is ErrInvalidData.
func buildSnapshot(rev int64, buckets []types.Bucket, rows []recordRow) (*types.Snapshot, error) {
	snap := &types.Snapshot{
		Revision: rev,
		Buckets:  make([]types.Bucket, len(buckets)),
		Records:  make(map[string]types.Record, len(rows)),
	}
	idx := make(map[string]int, len(buckets))
	for i, bkt := range buckets {
		bkt.Items = []string{}
		snap.Buckets[i] = bkt
		idx[bkt.ID] = i
	}
	for _, r := range rows {
		i, ok := idx[r.BucketID]
		if !ok {
			return nil, fmt.Errorf("%w: record %s in unknown bucket %s", types.ErrInvalidData, r.RecordID, r.BucketID)
		}
		var rec types.Record
		if err := json.Unmarshal(r.Payload, &rec); err != nil {
			return nil, fmt.Errorf("%w: record %s: %v", types.ErrInvalidData, r.RecordID, err)
		}
		rec.ID = r.RecordID
		rec.Status = r.BucketID
		snap.Buckets[i].Items = append(snap.Buckets[i].Items, r.RecordID)
		snap.Records[r.RecordID] = rec
	}
	return snap, nil
}
