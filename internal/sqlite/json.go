// JSON record structures for the board data files.
// Each struct is one line of its JSONL file; column names match board.db.
package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// timeLayout is the timestamp format of created_at and updated_at.
const timeLayout = time.RFC3339Nano

// bucketJSON represents a bucket in buckets.jsonl.
type bucketJSON struct {
	BucketID    string `json:"bucket_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Ordinal     int    `json:"ordinal"`
}

// recordJSON represents a record and its placement in records.jsonl. The
// record's status is its bucket_id.
type recordJSON struct {
	RecordID     string   `json:"record_id"`
	BucketID     string   `json:"bucket_id"`
	Position     int      `json:"position"`
	Name         string   `json:"name"`
	Phone        string   `json:"phone"`
	Products     []string `json:"products"`
	Value        string   `json:"value"`
	Priority     string   `json:"priority"`
	LastContact  string   `json:"last_contact"`
	DemoDate     string   `json:"demo_date"`
	DeliveryDate string   `json:"delivery_date"`
	Notes        string   `json:"notes"`
	Tags         []string `json:"tags"`
	PaymentPlan  string   `json:"payment_plan"`
	EventID      string   `json:"event_id"`
	CalendarID   string   `json:"calendar_id"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

// metaJSON represents a key/value pair in meta.jsonl.
type metaJSON struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// newRecordJSON flattens a record placed at position pos of bucketID.
func newRecordJSON(r types.Record, bucketID string, pos int) recordJSON {
	return recordJSON{
		RecordID:     r.ID,
		BucketID:     bucketID,
		Position:     pos,
		Name:         r.Name,
		Phone:        r.Phone,
		Products:     r.Products,
		Value:        r.Value,
		Priority:     string(r.Priority),
		LastContact:  r.LastContact,
		DemoDate:     r.DemoDate,
		DeliveryDate: r.DeliveryDate,
		Notes:        r.Notes,
		Tags:         r.Tags,
		PaymentPlan:  r.PaymentPlan,
		EventID:      r.EventID,
		CalendarID:   r.CalendarID,
		CreatedAt:    r.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:    r.UpdatedAt.UTC().Format(timeLayout),
	}
}

// toRecord converts the row back into a board record.
func (rj recordJSON) toRecord() (types.Record, error) {
	created, err := time.Parse(timeLayout, rj.CreatedAt)
	if err != nil {
		return types.Record{}, fmt.Errorf("%w: record %s created_at: %v", types.ErrInvalidData, rj.RecordID, err)
	}
	updated, err := time.Parse(timeLayout, rj.UpdatedAt)
	if err != nil {
		return types.Record{}, fmt.Errorf("%w: record %s updated_at: %v", types.ErrInvalidData, rj.RecordID, err)
	}
	tags := rj.Tags
	if tags == nil {
		tags = []string{}
	}
	return types.Record{
		ID:           rj.RecordID,
		Name:         rj.Name,
		Phone:        rj.Phone,
		Products:     rj.Products,
		Value:        rj.Value,
		Priority:     types.Priority(rj.Priority),
		LastContact:  rj.LastContact,
		DemoDate:     rj.DemoDate,
		DeliveryDate: rj.DeliveryDate,
		Notes:        rj.Notes,
		Tags:         tags,
		Status:       rj.BucketID,
		PaymentPlan:  rj.PaymentPlan,
		EventID:      rj.EventID,
		CalendarID:   rj.CalendarID,
		CreatedAt:    created,
		UpdatedAt:    updated,
	}, nil
}

// encodeLists returns products and tags as JSON array text for their columns.
func encodeLists(rj recordJSON) (products, tags string, err error) {
	p, err := json.Marshal(rj.Products)
	if err != nil {
		return "", "", fmt.Errorf("encoding products of %s: %w", rj.RecordID, err)
	}
	t, err := json.Marshal(rj.Tags)
	if err != nil {
		return "", "", fmt.Errorf("encoding tags of %s: %w", rj.RecordID, err)
	}
	return string(p), string(t), nil
}
