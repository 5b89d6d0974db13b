// JSONL loading on attach and export after each save.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// jsonlTableMapping maps JSONL files to their SQLite tables and columns.
// Buckets load before records because of the foreign key.
var jsonlTableMapping = []struct {
	file    string
	table   string
	columns []string
}{
	{bucketsJSONL, "buckets", []string{"bucket_id", "title", "description", "ordinal"}},
	{recordsJSONL, "records", []string{
		"record_id", "bucket_id", "position", "name", "phone", "products", "value", "priority",
		"last_contact", "demo_date", "delivery_date", "notes", "tags", "payment_plan",
		"event_id", "calendar_id", "created_at", "updated_at",
	}},
	{metaJSONL, "board_meta", []string{"key", "value"}},
}

// loadAllJSONL reads each JSONL file from dataDir into its table in one
// transaction: either every file loads or the database stays empty.
// Malformed lines and unknown fields are ignored.
func loadAllJSONL(db *sql.DB, dataDir string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disabling foreign keys for load: %w", err)
	}
	for _, mapping := range jsonlTableMapping {
		lines, err := readJSONL(filepath.Join(dataDir, mapping.file))
		if err != nil {
			return fmt.Errorf("reading %s: %w", mapping.file, err)
		}
		if len(lines) == 0 {
			continue
		}
		if err := insertRecords(tx, mapping.table, mapping.columns, lines); err != nil {
			return fmt.Errorf("loading %s into %s: %w", mapping.file, mapping.table, err)
		}
	}
	if _, err := tx.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("re-enabling foreign keys: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}

// insertRecords inserts parsed JSONL lines into a table. Only the listed
// columns are extracted; arrays and objects are stored as JSON text. Lines
// that fail to parse or violate a constraint are skipped.
func insertRecords(tx *sql.Tx, table string, columns []string, lines []json.RawMessage) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("preparing insert for %s: %w", table, err)
	}
	defer stmt.Close()

	for _, line := range lines {
		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			continue
		}
		args := make([]any, len(columns))
		for i, col := range columns {
			switch v := obj[col].(type) {
			case map[string]any, []any:
				b, err := json.Marshal(v)
				if err != nil {
					continue
				}
				args[i] = string(b)
			default:
				args[i] = v
			}
		}
		if _, err := stmt.Exec(args...); err != nil {
			continue
		}
	}
	return nil
}

// exportJSONL rewrites every data file from the current contents of db.
// meta.jsonl is written last so a crash mid-export leaves the previous
// revision marker in place.
func exportJSONL(db *sql.DB, dataDir string) error {
	buckets, err := queryBuckets(db)
	if err != nil {
		return err
	}
	records, err := queryRecords(db)
	if err != nil {
		return err
	}
	meta, err := queryMeta(db)
	if err != nil {
		return err
	}

	files := []struct {
		name  string
		lines func() ([]json.RawMessage, error)
	}{
		{bucketsJSONL, func() ([]json.RawMessage, error) { return marshalLines(buckets) }},
		{recordsJSONL, func() ([]json.RawMessage, error) { return marshalLines(records) }},
		{metaJSONL, func() ([]json.RawMessage, error) { return marshalLines(meta) }},
	}
	for _, f := range files {
		lines, err := f.lines()
		if err != nil {
			return fmt.Errorf("encoding %s: %w", f.name, err)
		}
		if err := writeJSONL(filepath.Join(dataDir, f.name), lines); err != nil {
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

func queryBuckets(q querier) ([]bucketJSON, error) {
	rows, err := q.Query("SELECT bucket_id, title, description, ordinal FROM buckets ORDER BY ordinal, bucket_id")
	if err != nil {
		return nil, fmt.Errorf("querying buckets: %w", err)
	}
	defer rows.Close()

	var out []bucketJSON
	for rows.Next() {
		var b bucketJSON
		var desc sql.NullString
		if err := rows.Scan(&b.BucketID, &b.Title, &desc, &b.Ordinal); err != nil {
			return nil, fmt.Errorf("scanning bucket: %w", err)
		}
		b.Description = desc.String
		out = append(out, b)
	}
	return out, rows.Err()
}

func queryRecords(q querier) ([]recordJSON, error) {
	rows, err := q.Query(`SELECT record_id, bucket_id, position, name, phone, products, value, priority,
		last_contact, demo_date, delivery_date, notes, tags, payment_plan, event_id, calendar_id,
		created_at, updated_at
		FROM records ORDER BY bucket_id, position`)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []recordJSON
	for rows.Next() {
		var r recordJSON
		var products string
		var value, lastContact, demoDate, deliveryDate, notes, tags, paymentPlan, eventID, calendarID sql.NullString
		if err := rows.Scan(&r.RecordID, &r.BucketID, &r.Position, &r.Name, &r.Phone, &products, &value,
			&r.Priority, &lastContact, &demoDate, &deliveryDate, &notes, &tags, &paymentPlan,
			&eventID, &calendarID, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if err := json.Unmarshal([]byte(products), &r.Products); err != nil {
			return nil, fmt.Errorf("record %s products: %w", r.RecordID, err)
		}
		if tags.Valid && tags.String != "" {
			if err := json.Unmarshal([]byte(tags.String), &r.Tags); err != nil {
				return nil, fmt.Errorf("record %s tags: %w", r.RecordID, err)
			}
		}
		r.Value = value.String
		r.LastContact = lastContact.String
		r.DemoDate = demoDate.String
		r.DeliveryDate = deliveryDate.String
		r.Notes = notes.String
		r.PaymentPlan = paymentPlan.String
		r.EventID = eventID.String
		r.CalendarID = calendarID.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryMeta(q querier) ([]metaJSON, error) {
	rows, err := q.Query("SELECT key, value FROM board_meta ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("querying board_meta: %w", err)
	}
	defer rows.Close()

	var out []metaJSON
	for rows.Next() {
		var m metaJSON
		if err := rows.Scan(&m.Key, &m.Value); err != nil {
			return nil, fmt.Errorf("scanning board_meta: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
