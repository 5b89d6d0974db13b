package types

import "time"

// Change operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpMove   = "move"
	OpDelete = "delete"
)

// Change describes the mutation that produced a snapshot revision. Index
// fields are -1 when they do not apply (e.g. FromIndex on create).
type Change struct {
	Op         string    `json:"op"`
	RecordID   string    `json:"recordId"`
	FromBucket string    `json:"fromBucket,omitempty"`
	ToBucket   string    `json:"toBucket,omitempty"`
	FromIndex  int       `json:"fromIndex"`
	ToIndex    int       `json:"toIndex"`
	Revision   int64     `json:"revision"`
	At         time.Time `json:"at"`
}

// Snapshot is an immutable copy of the board state. Buckets are listed in
// configuration order; Records holds every record on the board keyed by id.
type Snapshot struct {
	Revision int64             `json:"revision"`
	Buckets  []Bucket          `json:"buckets"`
	Records  map[string]Record `json:"records"`
	Change   *Change           `json:"change,omitempty"`
}

// Bucket returns the bucket with the given id.
func (s Snapshot) Bucket(id string) (Bucket, bool) {
	for _, b := range s.Buckets {
		if b.ID == id {
			return b, true
		}
	}
	return Bucket{}, false
}

// Record returns the record with the given id.
func (s Snapshot) Record(id string) (Record, bool) {
	r, ok := s.Records[id]
	return r, ok
}

// Placement returns the bucket id and index of a record, scanning bucket
// items. It returns ok=false when the record is not placed.
func (s Snapshot) Placement(recordID string) (bucketID string, index int, ok bool) {
	for _, b := range s.Buckets {
		if i := b.IndexOf(recordID); i >= 0 {
			return b.ID, i, true
		}
	}
	return "", -1, false
}

// Ordered returns the records of a bucket in board order.
func (s Snapshot) Ordered(bucketID string) []Record {
	b, ok := s.Bucket(bucketID)
	if !ok {
		return nil
	}
	out := make([]Record, 0, len(b.Items))
	for _, id := range b.Items {
		if r, ok := s.Records[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of records on the board.
func (s Snapshot) Len() int {
	return len(s.Records)
}
