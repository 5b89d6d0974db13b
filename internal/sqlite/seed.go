// Bucket seeding on backend attach.
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// seedBuckets writes the configured buckets when the buckets table is empty
// (first run) and exports them to buckets.jsonl. Seeding is idempotent: once
// buckets.jsonl has content nothing is written.
func seedBuckets(db *sql.DB, dataDir string, defs []types.BucketDef) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM buckets").Scan(&count); err != nil {
		return fmt.Errorf("counting buckets: %w", err)
	}
	if count > 0 || len(defs) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertBuckets(tx, defs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed transaction: %w", err)
	}
	if err := exportJSONL(db, dataDir); err != nil {
		return fmt.Errorf("persisting seeded buckets: %w", err)
	}
	return nil
}

// insertBuckets inserts bucket definitions with their configuration order.
func insertBuckets(tx *sql.Tx, defs []types.BucketDef) error {
	for i, d := range defs {
		if _, err := tx.Exec(
			"INSERT INTO buckets (bucket_id, title, description, ordinal) VALUES (?, ?, ?, ?)",
			d.ID, d.Title, d.Description, i,
		); err != nil {
			return fmt.Errorf("inserting bucket %s: %w", d.ID, err)
		}
	}
	return nil
}
