// Package sqlite implements the SQLite board store.
//
// JSONL files in the data directory are the source of truth. On Attach the
// SQLite database board.db is recreated and loaded from them; every Save
// rewrites the tables in one transaction and then re-exports the JSONL
// files atomically.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// Backend implements types.Backend using SQLite as the query engine and
// JSONL files as the source of truth.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	dataDir  string
	db       *sql.DB
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach initializes the backend with the given configuration.
// Creates DataDir if it does not exist, recreates board.db, loads the JSONL
// files and seeds the configured buckets on first run.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	// board.db is a cache of the JSONL files; start from a fresh schema.
	dbPath := filepath.Join(dataDir, dbFile)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return err
	}
	if err := initJSONLFiles(dataDir); err != nil {
		db.Close()
		return err
	}
	if err := loadAllJSONL(db, dataDir); err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}
	if err := seedBuckets(db, dataDir, config.Buckets); err != nil {
		db.Close()
		return fmt.Errorf("seed buckets: %w", err)
	}

	b.db = db
	b.config = config
	b.dataDir = dataDir
	b.attached = true
	return nil
}

// createSchema executes every table and index statement.
func createSchema(db *sql.DB) error {
	for _, ddl := range append(append([]string{}, schemaDDL...), indexDDL...) {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// Detach closes the SQLite connection. After Detach, Save and Load return
// ErrBackendDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.attached = false
	if b.db != nil {
		err := b.db.Close()
		b.db = nil
		return err
	}
	return nil
}

// Ping checks that board.db is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrBackendDetached
	}
	return b.db.PingContext(ctx)
}

// Save replaces the stored board with snap. A snapshot that is not newer
// than the stored revision is ignored.
func (b *Backend) Save(ctx context.Context, snap types.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrBackendDetached
	}

	stored, ok, err := readRevision(ctx, b.db)
	if err != nil {
		return err
	}
	if ok && stored >= snap.Revision {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM records", "DELETE FROM buckets"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clearing board: %w", err)
		}
	}
	defs := make([]types.BucketDef, len(snap.Buckets))
	for i, bk := range snap.Buckets {
		defs[i] = bk.Def()
	}
	if err := insertBuckets(tx, defs); err != nil {
		return err
	}
	if err := insertSnapshotRecords(ctx, tx, snap); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO board_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		metaRevision, strconv.FormatInt(snap.Revision, 10),
	); err != nil {
		return fmt.Errorf("writing revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing save transaction: %w", err)
	}

	return exportJSONL(b.db, b.dataDir)
}

// insertSnapshotRecords writes every placed record with its position.
func insertSnapshotRecords(ctx context.Context, tx *sql.Tx, snap types.Snapshot) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (record_id, bucket_id, position, name, phone,
		products, value, priority, last_contact, demo_date, delivery_date, notes, tags, payment_plan,
		event_id, calendar_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing record insert: %w", err)
	}
	defer stmt.Close()

	for _, bk := range snap.Buckets {
		for pos, id := range bk.Items {
			rec, ok := snap.Records[id]
			if !ok {
				return fmt.Errorf("%w: bucket %s references unknown record %s", types.ErrInvalidData, bk.ID, id)
			}
			rj := newRecordJSON(rec, bk.ID, pos)
			products, tags, err := encodeLists(rj)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, rj.RecordID, rj.BucketID, rj.Position, rj.Name, rj.Phone,
				products, rj.Value, rj.Priority, rj.LastContact, rj.DemoDate, rj.DeliveryDate, rj.Notes,
				tags, rj.PaymentPlan, rj.EventID, rj.CalendarID, rj.CreatedAt, rj.UpdatedAt,
			); err != nil {
				return fmt.Errorf("inserting record %s: %w", id, err)
			}
		}
	}
	return nil
}

// Load returns the stored board, or nil if nothing has been saved yet.
func (b *Backend) Load(ctx context.Context) (*types.Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrBackendDetached
	}

	rev, ok, err := readRevision(ctx, b.db)
	if err != nil || !ok {
		return nil, err
	}
	buckets, err := queryBuckets(b.db)
	if err != nil {
		return nil, err
	}
	records, err := queryRecords(b.db)
	if err != nil {
		return nil, err
	}

	snap := &types.Snapshot{
		Revision: rev,
		Buckets:  make([]types.Bucket, 0, len(buckets)),
		Records:  make(map[string]types.Record, len(records)),
	}
	index := make(map[string]int, len(buckets))
	for _, bj := range buckets {
		index[bj.BucketID] = len(snap.Buckets)
		snap.Buckets = append(snap.Buckets, types.Bucket{
			ID: bj.BucketID, Title: bj.Title, Description: bj.Description, Items: []string{},
		})
	}
	for _, rj := range records {
		rec, err := rj.toRecord()
		if err != nil {
			return nil, err
		}
		i, known := index[rj.BucketID]
		if !known {
			// Keep orphans visible so the engine rejects the snapshot.
			i = len(snap.Buckets)
			index[rj.BucketID] = i
			snap.Buckets = append(snap.Buckets, types.Bucket{ID: rj.BucketID, Items: []string{}})
		}
		snap.Buckets[i].Items = append(snap.Buckets[i].Items, rec.ID)
		snap.Records[rec.ID] = rec
	}
	return snap, nil
}

// readRevision returns the stored revision and whether one exists.
func readRevision(ctx context.Context, db *sql.DB) (int64, bool, error) {
	var value string
	err := db.QueryRowContext(ctx, "SELECT value FROM board_meta WHERE key = ?", metaRevision).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading revision: %w", err)
	}
	rev, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: revision %q", types.ErrInvalidData, value)
	}
	return rev, true, nil
}
