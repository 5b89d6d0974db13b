package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriority(t *testing.T) {
	assert.True(t, PriorityHigh.Valid())
	assert.True(t, PriorityMedium.Valid())
	assert.True(t, PriorityLow.Valid())
	assert.False(t, Priority("URGENT").Valid())
	assert.False(t, Priority("").Valid())

	assert.Less(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityLow.Rank())
	assert.Greater(t, Priority("other").Rank(), PriorityLow.Rank())
}

func TestRecordCloneDoesNotShareSlices(t *testing.T) {
	r := Record{ID: "a", Products: []string{"Olla"}, Tags: []string{"urgente"}}
	c := r.Clone()
	c.Products[0] = "Sartén"
	c.Tags[0] = "referido"

	assert.Equal(t, "Olla", r.Products[0])
	assert.Equal(t, "urgente", r.Tags[0])
	assert.True(t, r.HasTag("urgente"))
	assert.False(t, r.HasTag("referido"))
}

func TestBucketCloneNormalizesItems(t *testing.T) {
	b := Bucket{ID: "nuevo"}
	c := b.Clone()
	require.NotNil(t, c.Items)
	assert.Empty(t, c.Items)

	b.Items = []string{"a", "b"}
	c = b.Clone()
	c.Items[0] = "z"
	assert.Equal(t, "a", b.Items[0])
	assert.Equal(t, 1, b.IndexOf("b"))
	assert.Equal(t, -1, b.IndexOf("z"))
}

func TestSnapshotLookups(t *testing.T) {
	snap := Snapshot{
		Buckets: []Bucket{
			{ID: "nuevo", Items: []string{"a", "b"}},
			{ID: "contactado", Items: []string{"c"}},
		},
		Records: map[string]Record{
			"a": {ID: "a", Status: "nuevo"},
			"b": {ID: "b", Status: "nuevo"},
			"c": {ID: "c", Status: "contactado"},
		},
	}

	bucketID, idx, ok := snap.Placement("c")
	require.True(t, ok)
	assert.Equal(t, "contactado", bucketID)
	assert.Equal(t, 0, idx)

	_, _, ok = snap.Placement("missing")
	assert.False(t, ok)

	ordered := snap.Ordered("nuevo")
	require.Len(t, ordered, 2)
	assert.Equal(t, "a", ordered[0].ID)
	assert.Equal(t, "b", ordered[1].ID)
	assert.Nil(t, snap.Ordered("unknown"))
	assert.Equal(t, 3, snap.Len())
}

func TestValidationError(t *testing.T) {
	var verr ValidationError
	assert.NoError(t, verr.OrNil())

	verr.Add("name", "is required")
	verr.Add("phone", "is required")
	err := verr.OrNil()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "phone is required")

	var target *ValidationError
	require.True(t, errors.As(err, &target))
	assert.True(t, target.Has("phone"))
	assert.False(t, target.Has("status"))
}

func TestTagRegistryResolve(t *testing.T) {
	reg := NewTagRegistry(DefaultTags)

	tag, ok := reg.Resolve("urgente")
	assert.True(t, ok)
	assert.Equal(t, "Urgente", tag.Label)

	tag, ok = reg.Resolve("vip")
	assert.False(t, ok)
	assert.Equal(t, "vip", tag.Label)
}

func TestRecordQueryValidate(t *testing.T) {
	assert.NoError(t, RecordQuery{}.Validate())
	assert.NoError(t, RecordQuery{SortBy: SortPriority, Priority: PriorityHigh, Page: 2, PerPage: 10}.Validate())

	err := RecordQuery{SortBy: "color", Priority: "URGENT", Page: -1}.Validate()
	require.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("sortBy"))
	assert.True(t, verr.Has("priority"))
	assert.True(t, verr.Has("page"))
}
