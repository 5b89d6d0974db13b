package board

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// RequestDelete opens a deletion for a record that must currently sit in
// bucketID. Nothing is removed until ConfirmDelete is called with the
// returned token. Several requests may be pending at once.
func (e *Engine) RequestDelete(recordID, bucketID, displayName string) (types.PendingDelete, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkPlacedLocked(recordID, bucketID); err != nil {
		return types.PendingDelete{}, err
	}
	pd := types.PendingDelete{
		Token:       uuid.New().String(),
		RecordID:    recordID,
		BucketID:    bucketID,
		DisplayName: displayName,
		RequestedAt: e.now().UTC(),
	}
	e.pending[pd.Token] = pd
	return pd, nil
}

// ConfirmDelete removes the record named by a pending request from its
// bucket and from the store. The token is consumed whether or not the
// deletion succeeds. If the record has since left the bucket, ErrNotFound is
// returned and nothing changes.
func (e *Engine) ConfirmDelete(token string) (types.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pd, ok := e.pending[token]
	if !ok {
		return types.Snapshot{}, fmt.Errorf("%w: pending deletion %q", types.ErrNotFound, token)
	}
	delete(e.pending, token)

	if err := e.checkPlacedLocked(pd.RecordID, pd.BucketID); err != nil {
		return types.Snapshot{}, err
	}
	b, _ := e.bucketLocked(pd.BucketID)
	i := indexOf(b.items, pd.RecordID)
	b.items = removeAt(b.items, i)
	delete(e.records, pd.RecordID)
	delete(e.placement, pd.RecordID)

	return e.commitLocked(types.Change{
		Op:         types.OpDelete,
		RecordID:   pd.RecordID,
		FromBucket: pd.BucketID,
		FromIndex:  i,
		ToIndex:    -1,
	}), nil
}

// CancelDelete discards a pending request. The board is never touched.
func (e *Engine) CancelDelete(token string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.pending[token]; !ok {
		return fmt.Errorf("%w: pending deletion %q", types.ErrNotFound, token)
	}
	delete(e.pending, token)
	return nil
}

// Pending returns the unconfirmed deletion for token.
func (e *Engine) Pending(token string) (types.PendingDelete, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pd, ok := e.pending[token]
	return pd, ok
}

// checkPlacedLocked returns ErrNotFound unless recordID sits in bucketID.
// The caller must hold e.mu.
func (e *Engine) checkPlacedLocked(recordID, bucketID string) error {
	if _, ok := e.bucketLocked(bucketID); !ok {
		return fmt.Errorf("%w: bucket %q", types.ErrNotFound, bucketID)
	}
	if e.placement[recordID] != bucketID {
		return fmt.Errorf("%w: record %q in bucket %q", types.ErrNotFound, recordID, bucketID)
	}
	return nil
}
