// Unit tests for record filtering, sorting and pagination.
package board

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// queryFixture builds a board with varied fields across two buckets.
func queryFixture(t *testing.T) types.Snapshot {
	t.Helper()
	e, _ := newTestEngine(t)
	add := func(name, status string, p types.Priority, demo string, tags []string, notes string) {
		f := form(name, status)
		f.Priority = p
		f.DemoDate = demo
		f.Tags = tags
		f.Notes = notes
		_, _, err := e.Upsert(f)
		require.NoError(t, err)
	}
	add("Carlos", "nuevo", types.PriorityLow, "2026-05-02", nil, "")
	add("ana", "nuevo", types.PriorityHigh, "", []string{"urgente"}, "quiere sartenes")
	add("Beto", "demo", types.PriorityMedium, "2026-04-20", []string{"referido"}, "")
	add("Diana", "demo", types.PriorityHigh, "2026-04-01", []string{"urgente", "referido"}, "")
	return e.Snapshot()
}

func names(page types.RecordPage) []string {
	out := make([]string, len(page.Records))
	for i, r := range page.Records {
		out[i] = r.Name
	}
	return out
}

func TestQuery(t *testing.T) {
	snap := queryFixture(t)
	tests := []struct {
		name  string
		q     types.RecordQuery
		want  []string
		total int
	}{
		{"board order", types.RecordQuery{}, []string{"Carlos", "ana", "Beto", "Diana"}, 4},
		{"bucket filter", types.RecordQuery{BucketID: "demo"}, []string{"Beto", "Diana"}, 2},
		{"priority filter", types.RecordQuery{Priority: types.PriorityHigh}, []string{"ana", "Diana"}, 2},
		{"tag filter", types.RecordQuery{Tag: "referido"}, []string{"Beto", "Diana"}, 2},
		{"text in notes", types.RecordQuery{Text: "SARTEN"}, []string{"ana"}, 1},
		{"text in product", types.RecordQuery{Text: "olla"}, []string{"Carlos", "ana", "Beto", "Diana"}, 4},
		{"sort by name", types.RecordQuery{SortBy: types.SortName}, []string{"ana", "Beto", "Carlos", "Diana"}, 4},
		{"sort by name desc", types.RecordQuery{SortBy: types.SortName, Desc: true}, []string{"Diana", "Carlos", "Beto", "ana"}, 4},
		{"sort by priority is stable", types.RecordQuery{SortBy: types.SortPriority}, []string{"ana", "Diana", "Beto", "Carlos"}, 4},
		{"sort by demo date, empty last", types.RecordQuery{SortBy: types.SortDemoDate}, []string{"Diana", "Beto", "Carlos", "ana"}, 4},
		{"page two", types.RecordQuery{Page: 2, PerPage: 3}, []string{"Diana"}, 4},
		{"page past end", types.RecordQuery{Page: 5, PerPage: 3}, []string{}, 4},
		{"page far past end", types.RecordQuery{Page: math.MaxInt / 50, PerPage: 100}, []string{}, 4},
		{"largest page", types.RecordQuery{Page: math.MaxInt, PerPage: 1}, []string{}, 4},
		{"last full page", types.RecordQuery{Page: 2, PerPage: 2}, []string{"Beto", "Diana"}, 4},
		{"no match", types.RecordQuery{Tag: "mayorista"}, []string{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := Query(snap, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(page))
			assert.Equal(t, tt.total, page.Total)
		})
	}
}

func TestQueryPaginationDefaults(t *testing.T) {
	snap := queryFixture(t)

	page, err := Query(snap, types.RecordQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, types.DefaultPerPage, page.PerPage)

	page, err = Query(snap, types.RecordQuery{PerPage: 1000})
	require.NoError(t, err)
	assert.Equal(t, types.MaxPerPage, page.PerPage)
}

func TestQueryInvalid(t *testing.T) {
	snap := queryFixture(t)
	_, err := Query(snap, types.RecordQuery{SortBy: "value"})
	assert.ErrorIs(t, err, types.ErrValidation)
}
