// Package sqlite implements the SQLite board store.
// This file holds the schema DDL for board.db.
package sqlite

// Schema DDL for all tables. records.products and records.tags hold JSON
// arrays.
const (
	createBuckets = `CREATE TABLE buckets (
    bucket_id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT,
    ordinal INTEGER NOT NULL
);`

	createRecords = `CREATE TABLE records (
    record_id TEXT PRIMARY KEY,
    bucket_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    phone TEXT NOT NULL,
    products TEXT NOT NULL,
    value TEXT,
    priority TEXT NOT NULL,
    last_contact TEXT,
    demo_date TEXT,
    delivery_date TEXT,
    notes TEXT,
    tags TEXT,
    payment_plan TEXT,
    event_id TEXT,
    calendar_id TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    FOREIGN KEY (bucket_id) REFERENCES buckets(bucket_id)
);`

	createBoardMeta = `CREATE TABLE board_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`
)

// Index DDL for board order and list filters.
const (
	idxRecordsPlacement = `CREATE UNIQUE INDEX idx_records_placement ON records(bucket_id, position);`
	idxRecordsPriority  = `CREATE INDEX idx_records_priority ON records(priority);`
	idxBucketsOrdinal   = `CREATE INDEX idx_buckets_ordinal ON buckets(ordinal);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createBuckets,
	createRecords,
	createBoardMeta,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxRecordsPlacement,
	idxRecordsPriority,
	idxBucketsOrdinal,
}

// metaRevision is the board_meta key holding the snapshot revision.
const metaRevision = "revision"
