package board

import (
	"fmt"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// Move applies a drag-and-drop result.
//
// A nil Destination is a cancelled drag and returns the board unchanged. The
// source position must still hold the record, otherwise the caller's view is
// stale and ErrConflict is returned. Within a bucket the record is removed
// and reinserted (array-move semantics); across buckets it is inserted at the
// destination index and its Status follows. Any stage may move to any other.
func (e *Engine) Move(req types.MoveRequest) (types.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if req.Destination == nil {
		return e.snapshotLocked(nil), nil
	}

	rec, ok := e.records[req.RecordID]
	if !ok {
		return types.Snapshot{}, fmt.Errorf("%w: record %q", types.ErrNotFound, req.RecordID)
	}
	src, ok := e.bucketLocked(req.Source.BucketID)
	if !ok {
		return types.Snapshot{}, fmt.Errorf("%w: source bucket %q", types.ErrNotFound, req.Source.BucketID)
	}
	dst, ok := e.bucketLocked(req.Destination.BucketID)
	if !ok {
		return types.Snapshot{}, fmt.Errorf("%w: destination bucket %q", types.ErrNotFound, req.Destination.BucketID)
	}

	from, to := req.Source.Index, req.Destination.Index
	if from < 0 || from >= len(src.items) || src.items[from] != req.RecordID {
		return types.Snapshot{}, fmt.Errorf("%w: %q is not at %s[%d]", types.ErrConflict, req.RecordID, src.def.ID, from)
	}

	change := types.Change{
		Op:         types.OpMove,
		RecordID:   req.RecordID,
		FromBucket: src.def.ID,
		ToBucket:   dst.def.ID,
		FromIndex:  from,
		ToIndex:    to,
	}

	if src == dst {
		if to < 0 || to >= len(src.items) {
			return types.Snapshot{}, fmt.Errorf("%w: index %d out of range for %s", types.ErrConflict, to, src.def.ID)
		}
		if from == to {
			return e.snapshotLocked(nil), nil
		}
		src.items = removeAt(src.items, from)
		src.items = insertAt(src.items, to, req.RecordID)
		return e.commitLocked(change), nil
	}

	if to < 0 || to > len(dst.items) {
		return types.Snapshot{}, fmt.Errorf("%w: index %d out of range for %s", types.ErrConflict, to, dst.def.ID)
	}
	src.items = removeAt(src.items, from)
	dst.items = insertAt(dst.items, to, req.RecordID)
	rec.Status = dst.def.ID
	rec.UpdatedAt = e.now().UTC()
	e.placement[req.RecordID] = dst.def.ID
	return e.commitLocked(change), nil
}
