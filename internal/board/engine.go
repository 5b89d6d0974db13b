// Package board implements the pipeline board engine: a record store, an
// ordered bucket index, and the move, upsert and two-step delete operations
// that mutate both together.
//
// Every mutation runs to completion under the engine lock, verifies the
// partition invariants, bumps the revision and hands the resulting snapshot
// to the Persister. Failed operations leave the board untouched.
package board

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// Persister receives the snapshot produced by each successful mutation. It
// must not block; whether the snapshot is stored, retried or dropped is the
// persister's concern.
type Persister interface {
	Persist(snap types.Snapshot)
}

// PersisterFunc adapts a function to the Persister interface.
type PersisterFunc func(snap types.Snapshot)

// Persist calls f(snap).
func (f PersisterFunc) Persist(snap types.Snapshot) { f(snap) }

// bucket is the engine's mutable view of a stage.
type bucket struct {
	def   types.BucketDef
	items []string
}

// Engine owns the board state.
type Engine struct {
	mu sync.Mutex

	buckets   []*bucket                      // configuration order
	bucketIdx map[string]int                 // bucket id -> position in buckets
	records   map[string]*types.Record       // record id -> record
	placement map[string]string              // record id -> bucket id
	pending   map[string]types.PendingDelete // token -> unconfirmed deletion

	revision    int64
	placeholder string
	persister   Persister
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithPersister sets the collaborator that receives snapshots after every
// successful mutation.
func WithPersister(p Persister) Option {
	return func(e *Engine) { e.persister = p }
}

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithPlaceholderProduct sets the product line substituted for records whose
// products are all blank. A blank value keeps the default.
func WithPlaceholderProduct(p string) Option {
	return func(e *Engine) {
		if p = strings.TrimSpace(p); p != "" {
			e.placeholder = p
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides record id generation, for tests.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// New creates an empty board with the given bucket configuration.
func New(defs []types.BucketDef, opts ...Option) (*Engine, error) {
	if len(defs) == 0 {
		return nil, types.ErrNoBuckets
	}
	e := &Engine{
		bucketIdx:   make(map[string]int, len(defs)),
		records:     make(map[string]*types.Record),
		placement:   make(map[string]string),
		pending:     make(map[string]types.PendingDelete),
		placeholder: types.DefaultPlaceholderProduct,
		persister:   PersisterFunc(func(types.Snapshot) {}),
		logger:      zap.NewNop(),
		now:         time.Now,
		newID:       generateUUID,
	}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("%w: %q", types.ErrBucketIDInvalid, d.ID)
		}
		if _, dup := e.bucketIdx[d.ID]; dup {
			return nil, fmt.Errorf("%w: %q", types.ErrBucketIDInvalid, d.ID)
		}
		e.bucketIdx[d.ID] = len(e.buckets)
		e.buckets = append(e.buckets, &bucket{def: d})
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Restore creates a board from a previously persisted snapshot. Buckets are
// laid out in configuration order; snapshot buckets missing from the
// configuration must be empty. The snapshot is untrusted input, so
// inconsistencies are reported as ErrInvalidData rather than panics.
func Restore(defs []types.BucketDef, snap types.Snapshot, opts ...Option) (*Engine, error) {
	e, err := New(defs, opts...)
	if err != nil {
		return nil, err
	}

	for _, sb := range snap.Buckets {
		idx, ok := e.bucketIdx[sb.ID]
		if !ok {
			if len(sb.Items) > 0 {
				return nil, fmt.Errorf("%w: bucket %q holds %d records but is not configured",
					types.ErrInvalidData, sb.ID, len(sb.Items))
			}
			continue
		}
		b := e.buckets[idx]
		for _, id := range sb.Items {
			rec, ok := snap.Records[id]
			if !ok {
				return nil, fmt.Errorf("%w: bucket %q references unknown record %q", types.ErrInvalidData, sb.ID, id)
			}
			if prev, dup := e.placement[id]; dup {
				return nil, fmt.Errorf("%w: record %q placed in both %q and %q", types.ErrInvalidData, id, prev, sb.ID)
			}
			if rec.ID != id {
				return nil, fmt.Errorf("%w: record keyed %q carries id %q", types.ErrInvalidData, id, rec.ID)
			}
			if rec.Status != sb.ID {
				return nil, fmt.Errorf("%w: record %q has status %q but sits in %q", types.ErrInvalidData, id, rec.Status, sb.ID)
			}
			c := rec.Clone()
			e.records[id] = &c
			e.placement[id] = sb.ID
			b.items = append(b.items, id)
		}
	}
	if len(e.records) != len(snap.Records) {
		return nil, fmt.Errorf("%w: %d records are not placed in any bucket",
			types.ErrInvalidData, len(snap.Records)-len(e.records))
	}
	e.revision = snap.Revision
	e.checkInvariants()
	return e, nil
}

// Buckets returns the bucket configuration in board order.
func (e *Engine) Buckets() []types.BucketDef {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]types.BucketDef, len(e.buckets))
	for i, b := range e.buckets {
		out[i] = b.def
	}
	return out
}

// Snapshot returns an immutable copy of the current board.
func (e *Engine) Snapshot() types.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(nil)
}

// Revision returns the number of mutations applied since the board was
// created, including those of a restored snapshot.
func (e *Engine) Revision() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.revision
}

// snapshotLocked copies the board. The caller must hold e.mu.
func (e *Engine) snapshotLocked(change *types.Change) types.Snapshot {
	snap := types.Snapshot{
		Revision: e.revision,
		Buckets:  make([]types.Bucket, len(e.buckets)),
		Records:  make(map[string]types.Record, len(e.records)),
		Change:   change,
	}
	for i, b := range e.buckets {
		snap.Buckets[i] = types.Bucket{
			ID:          b.def.ID,
			Title:       b.def.Title,
			Description: b.def.Description,
			Items:       b.items,
		}.Clone()
	}
	for id, r := range e.records {
		snap.Records[id] = r.Clone()
	}
	return snap
}

// commitLocked verifies invariants, bumps the revision and hands the new
// snapshot to the persister. The caller must hold e.mu and must only call it
// after a mutation has been fully applied.
func (e *Engine) commitLocked(change types.Change) types.Snapshot {
	e.checkInvariants()
	e.revision++
	change.Revision = e.revision
	change.At = e.now().UTC()
	snap := e.snapshotLocked(&change)

	e.logger.Debug("board mutated",
		zap.String("op", change.Op),
		zap.String("record", change.RecordID),
		zap.String("from", change.FromBucket),
		zap.String("to", change.ToBucket),
		zap.Int64("revision", change.Revision))

	e.persister.Persist(snap)
	return snap
}

// bucketLocked returns the bucket with the given id. The caller must hold e.mu.
func (e *Engine) bucketLocked(id string) (*bucket, bool) {
	idx, ok := e.bucketIdx[id]
	if !ok {
		return nil, false
	}
	return e.buckets[idx], true
}

// generateUUID generates a new UUID v7 for record ids.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}
