// Unit tests for record creation and editing.
package board

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

func TestUpsertCreate(t *testing.T) {
	e, _ := newTestEngine(t)
	seed(t, e, "nuevo", "A")

	f := form("Juan Pérez", "nuevo")
	f.Tags = []string{"urgente", "urgente", " ", "sin-registro"}
	snap, rec, err := e.Upsert(f)
	require.NoError(t, err)

	assert.Equal(t, "task-2", rec.ID)
	assert.Equal(t, "nuevo", rec.Status)
	assert.Equal(t, types.PriorityMedium, rec.Priority)
	assert.Equal(t, []string{"urgente", "sin-registro"}, rec.Tags)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, []string{"task-1", "task-2"}, items(t, e, "nuevo"))
	assert.Equal(t, rec, snap.Records[rec.ID])
	assertPartition(t, snap)
}

func TestUpsertDefaultIDsAreUUIDs(t *testing.T) {
	e, err := New(testBuckets)
	require.NoError(t, err)

	_, a, err := e.Upsert(form("A", "nuevo"))
	require.NoError(t, err)
	_, b, err := e.Upsert(form("B", "nuevo"))
	require.NoError(t, err)

	assert.Len(t, a.ID, 36)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestUpsertEditSameBucketKeepsPosition(t *testing.T) {
	e, _ := newTestEngine(t)
	ids := seed(t, e, "contactado", "A", "B", "C")
	_, orig, err := e.FindRecord(ids[1])
	require.NoError(t, err)

	later := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return later }

	f := form("B editado", "contactado")
	f.ID = ids[1]
	f.Priority = types.PriorityHigh
	f.Value = "$12,500"
	f.DemoDate = "2026-04-10"
	_, rec, err := e.Upsert(f)
	require.NoError(t, err)

	assert.Equal(t, ids, items(t, e, "contactado"))
	assert.Equal(t, ids[1], rec.ID)
	assert.Equal(t, "B editado", rec.Name)
	assert.Equal(t, types.PriorityHigh, rec.Priority)
	assert.Equal(t, "$12,500", rec.Value)
	assert.Equal(t, "2026-04-10", rec.DemoDate)
	assert.Equal(t, orig.CreatedAt, rec.CreatedAt)
	assert.Equal(t, later, rec.UpdatedAt)
}

func TestUpsertCrossBucketEditPreservesIdentity(t *testing.T) {
	e, rec := newTestEngine(t)
	seed(t, e, "nuevo", "A", "B")
	contactado := seed(t, e, "contactado", "C") // task-3
	venta := seed(t, e, "venta-nueva", "D")
	require.Equal(t, "task-3", contactado[0])

	f := form("Carlos Ruiz", "venta-nueva")
	f.ID = "task-3"
	f.Phone = "+52 33 0000 0000"
	f.Products = []string{"Sartén", "Olla"}
	f.PaymentPlan = "3 meses"
	snap, got, err := e.Upsert(f)
	require.NoError(t, err)

	assert.NotContains(t, items(t, e, "contactado"), "task-3")
	assert.Equal(t, []string{venta[0], "task-3"}, items(t, e, "venta-nueva"))
	assert.Equal(t, "task-3", got.ID)
	assert.Equal(t, "venta-nueva", got.Status)
	assert.Equal(t, "Carlos Ruiz", got.Name)
	assert.Equal(t, "+52 33 0000 0000", got.Phone)
	assert.Equal(t, []string{"Sartén", "Olla"}, got.Products)
	assert.Equal(t, "3 meses", got.PaymentPlan)
	assert.Equal(t, 4, snap.Len())
	assertPartition(t, snap)

	last := rec.last()
	require.NotNil(t, last.Change)
	assert.Equal(t, types.OpUpdate, last.Change.Op)
	assert.Equal(t, "contactado", last.Change.FromBucket)
	assert.Equal(t, "venta-nueva", last.Change.ToBucket)
	assert.Equal(t, 0, last.Change.FromIndex)
	assert.Equal(t, 1, last.Change.ToIndex)
}

func TestUpsertPreservesCalendarFields(t *testing.T) {
	e, _ := newTestEngine(t)
	ids := seed(t, e, "demo", "A")

	event, cal := "evt-123", "primary"
	f := form("A", "demo")
	f.ID = ids[0]
	f.EventID, f.CalendarID = &event, &cal
	_, rec, err := e.Upsert(f)
	require.NoError(t, err)
	assert.Equal(t, "evt-123", rec.EventID)
	assert.Equal(t, "primary", rec.CalendarID)

	// A later edit that does not carry the calendar fields keeps them.
	f = form("A renamed", "negociacion")
	f.ID = ids[0]
	_, rec, err = e.Upsert(f)
	require.NoError(t, err)
	assert.Equal(t, "evt-123", rec.EventID)
	assert.Equal(t, "primary", rec.CalendarID)

	// Moves never touch them either.
	snap, err := e.Move(types.MoveRequest{
		RecordID:    ids[0],
		Source:      types.Position{BucketID: "negociacion", Index: 0},
		Destination: pos("nuevo", 0),
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-123", snap.Records[ids[0]].EventID)
}

func TestUpsertProductSanitization(t *testing.T) {
	tests := []struct {
		name     string
		products []string
		want     []string
	}{
		{"blank entries dropped", []string{"", "  ", "Olla"}, []string{"Olla"}},
		{"all blank becomes placeholder", []string{"", ""}, []string{types.DefaultPlaceholderProduct}},
		{"nil becomes placeholder", nil, []string{types.DefaultPlaceholderProduct}},
		{"entries trimmed", []string{" Olla ", "Sartén"}, []string{"Olla", "Sartén"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t)
			f := form("A", "nuevo")
			f.Products = tt.products
			_, rec, err := e.Upsert(f)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Products)

			// Re-submitting the sanitized record is a fixed point.
			again := types.FormFromRecord(rec)
			_, rec2, err := e.Upsert(again)
			require.NoError(t, err)
			assert.Equal(t, rec.Products, rec2.Products)
		})
	}
}

func TestSanitizeProductsIdempotent(t *testing.T) {
	inputs := [][]string{
		nil,
		{"", "  "},
		{"Olla", "", " Sartén "},
		{"Olla"},
	}
	for _, in := range inputs {
		once := SanitizeProducts(in, "Sin producto")
		twice := SanitizeProducts(once, "Sin producto")
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Errorf("SanitizeProducts(%q) not idempotent (-once +twice):\n%s", in, diff)
		}
		assert.NotEmpty(t, once)
	}
}

func TestUpsertCustomPlaceholder(t *testing.T) {
	e, err := New(testBuckets, WithPlaceholderProduct("Por definir"))
	require.NoError(t, err)

	f := form("A", "nuevo")
	f.Products = nil
	_, rec, err := e.Upsert(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"Por definir"}, rec.Products)
}

func TestUpsertBlankPlaceholderKeepsDefault(t *testing.T) {
	for _, p := range []string{"", "   "} {
		e, err := New(testBuckets, WithPlaceholderProduct(p))
		require.NoError(t, err)

		f := form("A", "nuevo")
		f.Products = []string{" "}
		_, rec, err := e.Upsert(f)
		require.NoError(t, err)
		assert.Equal(t, []string{types.DefaultPlaceholderProduct}, rec.Products, "placeholder %q", p)
	}
}

func TestUpsertValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *types.FormData)
		fields []string
	}{
		{"missing name", func(f *types.FormData) { f.Name = "  " }, []string{"name"}},
		{"missing phone", func(f *types.FormData) { f.Phone = "" }, []string{"phone"}},
		{"missing status", func(f *types.FormData) { f.Status = "" }, []string{"status"}},
		{"bad priority", func(f *types.FormData) { f.Priority = "URGENT" }, []string{"priority"}},
		{"bad date", func(f *types.FormData) { f.DemoDate = "10/04/2026" }, []string{"demoDate"}},
		{"date with time", func(f *types.FormData) { f.LastContact = "2026-04-10T10:00:00Z" }, []string{"lastContact"}},
		{
			name:   "several fields",
			mutate: func(f *types.FormData) { f.Name, f.Phone, f.DeliveryDate = "", "", "mañana" },
			fields: []string{"name", "phone", "deliveryDate"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, rec := newTestEngine(t)
			seed(t, e, "nuevo", "A")
			before := e.Snapshot()

			f := form("B", "nuevo")
			tt.mutate(&f)
			_, _, err := e.Upsert(f)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrValidation)

			var verr *types.ValidationError
			require.True(t, errors.As(err, &verr))
			for _, field := range tt.fields {
				assert.True(t, verr.Has(field), "expected %s to fail", field)
			}
			assert.Len(t, verr.Fields, len(tt.fields))

			if diff := cmp.Diff(before, e.Snapshot()); diff != "" {
				t.Errorf("invalid upsert mutated the board (-before +after):\n%s", diff)
			}
			assert.Equal(t, 1, rec.count())
		})
	}
}

func TestUpsertInvalidBucketIsAllOrNothing(t *testing.T) {
	e, rec := newTestEngine(t)
	ids := seed(t, e, "contactado", "A", "B")
	before := e.Snapshot()

	f := form("A", "perdido")
	f.ID = ids[0]
	_, _, err := e.Upsert(f)
	assert.ErrorIs(t, err, types.ErrInvalidBucket)

	_, _, err = e.Upsert(form("new", "perdido"))
	assert.ErrorIs(t, err, types.ErrInvalidBucket)

	if diff := cmp.Diff(before, e.Snapshot()); diff != "" {
		t.Errorf("invalid bucket mutated the board (-before +after):\n%s", diff)
	}
	assert.Equal(t, 2, rec.count())
}

func TestUpsertUnknownIDIsNotFound(t *testing.T) {
	e, _ := newTestEngine(t)
	f := form("A", "nuevo")
	f.ID = "task-404"

	_, _, err := e.Upsert(f)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, 0, e.Snapshot().Len())
}

func TestUpsertRejectsIDCollision(t *testing.T) {
	e, err := New(testBuckets, WithIDGenerator(func() string { return "same" }))
	require.NoError(t, err)

	_, _, err = e.Upsert(form("A", "nuevo"))
	require.NoError(t, err)
	_, _, err = e.Upsert(form("B", "nuevo"))
	assert.ErrorIs(t, err, types.ErrConflict)
	assert.Equal(t, 1, e.Snapshot().Len())
}

func TestUpdateFieldsAndRelocateCompose(t *testing.T) {
	e, _ := newTestEngine(t)
	seed(t, e, "nuevo", "A", "B")

	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.records["task-1"]
	from, _ := e.bucketLocked("nuevo")
	to, _ := e.bucketLocked("demo")

	e.updateFields(rec, form("A2", "demo"), []string{"Olla"})
	assert.Equal(t, "nuevo", rec.Status, "updateFields must not touch placement")
	assert.Equal(t, []string{"task-1", "task-2"}, from.items)

	idx := e.relocate(rec, from, to)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "demo", rec.Status)
	assert.Equal(t, []string{"task-2"}, from.items)
	assert.Equal(t, []string{"task-1"}, to.items)
	assert.NotPanics(t, func() { e.checkInvariants() })
}
