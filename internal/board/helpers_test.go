// Shared fixtures for board engine tests.
package board

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

var testBuckets = []types.BucketDef{
	{ID: "nuevo", Title: "Nuevo"},
	{ID: "contactado", Title: "Contactado"},
	{ID: "demo", Title: "Demo"},
	{ID: "negociacion", Title: "Negociación"},
	{ID: "venta-nueva", Title: "Venta Nueva"},
}

// recorder is a Persister that keeps every snapshot it receives.
type recorder struct {
	mu    sync.Mutex
	snaps []types.Snapshot
}

func (r *recorder) Persist(snap types.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func (r *recorder) last() types.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snaps[len(r.snaps)-1]
}

// fixedClock returns a clock frozen at a known instant.
func fixedClock() func() time.Time {
	t0 := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

// sequentialIDs returns a generator yielding task-1, task-2, ...
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("task-%d", n)
	}
}

// newTestEngine builds an empty engine with deterministic ids and clock.
func newTestEngine(t *testing.T) (*Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	e, err := New(testBuckets,
		WithPersister(rec),
		WithClock(fixedClock()),
		WithIDGenerator(sequentialIDs()))
	require.NoError(t, err)
	return e, rec
}

// form returns a valid form for bucket status.
func form(name, status string) types.FormData {
	return types.FormData{
		Name:     name,
		Phone:    "+52 55 1234 5678",
		Products: []string{"Olla"},
		Status:   status,
	}
}

// seed creates one record per name in bucket and returns their ids.
func seed(t *testing.T, e *Engine, bucket string, names ...string) []string {
	t.Helper()
	ids := make([]string, len(names))
	for i, n := range names {
		_, r, err := e.Upsert(form(n, bucket))
		require.NoError(t, err)
		ids[i] = r.ID
	}
	return ids
}

// items returns the ordered ids of a bucket.
func items(t *testing.T, e *Engine, bucket string) []string {
	t.Helper()
	recs, err := e.Get(bucket)
	require.NoError(t, err)
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

// assertPartition checks that every record sits in exactly one bucket and
// its status names that bucket.
func assertPartition(t *testing.T, snap types.Snapshot) {
	t.Helper()
	seen := make(map[string]string)
	for _, b := range snap.Buckets {
		for _, id := range b.Items {
			prev, dup := seen[id]
			require.False(t, dup, "record %s in both %s and %s", id, prev, b.ID)
			seen[id] = b.ID
			r, ok := snap.Records[id]
			require.True(t, ok, "bucket %s references missing record %s", b.ID, id)
			require.Equal(t, b.ID, r.Status, "status of %s", id)
		}
	}
	require.Len(t, seen, len(snap.Records))
}

func pos(bucket string, index int) *types.Position {
	return &types.Position{BucketID: bucket, Index: index}
}
