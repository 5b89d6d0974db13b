package board

import (
	"fmt"
	"slices"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// Get returns the records of a bucket in board order. Returns ErrNotFound if
// the bucket is not configured.
func (e *Engine) Get(bucketID string) ([]types.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.bucketLocked(bucketID)
	if !ok {
		return nil, fmt.Errorf("%w: bucket %q", types.ErrNotFound, bucketID)
	}
	out := make([]types.Record, len(b.items))
	for i, id := range b.items {
		out[i] = e.records[id].Clone()
	}
	return out, nil
}

// FindRecord returns the bucket holding a record and a copy of the record.
// Returns ErrNotFound if no record has that id.
func (e *Engine) FindRecord(id string) (string, types.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bucketID, rec, ok := e.findLocked(id)
	if !ok {
		return "", types.Record{}, fmt.Errorf("%w: record %q", types.ErrNotFound, id)
	}
	return bucketID, rec.Clone(), nil
}

// findLocked looks a record up through the placement map. The caller must
// hold e.mu.
func (e *Engine) findLocked(id string) (string, *types.Record, bool) {
	rec, ok := e.records[id]
	if !ok {
		return "", nil, false
	}
	return e.placement[id], rec, true
}

// indexOf returns the position of id in items, or -1.
func indexOf(items []string, id string) int {
	return slices.Index(items, id)
}

// insertAt inserts id at position i of items.
func insertAt(items []string, i int, id string) []string {
	return slices.Insert(items, i, id)
}

// removeAt removes the element at position i of items.
func removeAt(items []string, i int) []string {
	return slices.Delete(items, i, i+1)
}

// checkInvariants panics if the bucket index and the record store disagree.
// A violation is an engine defect, never a caller error. The caller must
// hold e.mu.
func (e *Engine) checkInvariants() {
	seen := make(map[string]string, len(e.records))
	for _, b := range e.buckets {
		for _, id := range b.items {
			if prev, dup := seen[id]; dup {
				panic(fmt.Sprintf("board: record %q appears in both %q and %q", id, prev, b.def.ID))
			}
			seen[id] = b.def.ID

			rec, ok := e.records[id]
			if !ok {
				panic(fmt.Sprintf("board: bucket %q references missing record %q", b.def.ID, id))
			}
			if rec.Status != b.def.ID {
				panic(fmt.Sprintf("board: record %q has status %q but sits in %q", id, rec.Status, b.def.ID))
			}
			if e.placement[id] != b.def.ID {
				panic(fmt.Sprintf("board: placement of %q is %q but it sits in %q", id, e.placement[id], b.def.ID))
			}
		}
	}
	if len(seen) != len(e.records) || len(e.placement) != len(e.records) {
		panic(fmt.Sprintf("board: %d records stored, %d placed, %d in placement map",
			len(e.records), len(seen), len(e.placement)))
	}
}
