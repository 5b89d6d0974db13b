package board

import (
	"cmp"
	"slices"
	"strings"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// Query filters, sorts and paginates the records of a snapshot. Records are
// first laid out in board order (buckets in configuration order, items in
// bucket order); sorting is stable on that order. Page numbers start at 1 and
// a page past the end is empty.
func Query(snap types.Snapshot, q types.RecordQuery) (types.RecordPage, error) {
	if err := q.Validate(); err != nil {
		return types.RecordPage{}, err
	}
	page, perPage := q.Page, q.PerPage
	if page == 0 {
		page = 1
	}
	if perPage == 0 {
		perPage = types.DefaultPerPage
	}
	perPage = min(perPage, types.MaxPerPage)

	text := strings.ToLower(strings.TrimSpace(q.Text))
	var matched []types.Record
	for _, b := range snap.Buckets {
		if q.BucketID != "" && b.ID != q.BucketID {
			continue
		}
		for _, r := range snap.Ordered(b.ID) {
			if q.Priority != "" && r.Priority != q.Priority {
				continue
			}
			if q.Tag != "" && !r.HasTag(q.Tag) {
				continue
			}
			if text != "" && !matchesText(r, text) {
				continue
			}
			matched = append(matched, r)
		}
	}

	if q.SortBy != types.SortBoard {
		less := sortFunc(q.SortBy)
		slices.SortStableFunc(matched, func(a, b types.Record) int {
			if q.Desc {
				return less(b, a)
			}
			return less(a, b)
		})
	}

	out := types.RecordPage{Total: len(matched), Page: page, PerPage: perPage, Records: []types.Record{}}
	if page-1 >= (len(matched)+perPage-1)/perPage {
		return out, nil
	}
	start := (page - 1) * perPage
	end := min(start+perPage, len(matched))
	out.Records = matched[start:end]
	return out, nil
}

// matchesText reports whether needle (already lower-cased) occurs in the
// record's name, phone, notes or any product line.
func matchesText(r types.Record, needle string) bool {
	fields := append([]string{r.Name, r.Phone, r.Notes}, r.Products...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// sortFunc returns the comparison for a sort key. Empty dates sort last in
// ascending order.
func sortFunc(key string) func(a, b types.Record) int {
	switch key {
	case types.SortName:
		return func(a, b types.Record) int {
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	case types.SortPriority:
		return func(a, b types.Record) int { return cmp.Compare(a.Priority.Rank(), b.Priority.Rank()) }
	case types.SortLastContact:
		return func(a, b types.Record) int { return compareDates(a.LastContact, b.LastContact) }
	case types.SortDemoDate:
		return func(a, b types.Record) int { return compareDates(a.DemoDate, b.DemoDate) }
	case types.SortDeliveryDate:
		return func(a, b types.Record) int { return compareDates(a.DeliveryDate, b.DeliveryDate) }
	case types.SortCreatedAt:
		return func(a, b types.Record) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
	return func(types.Record, types.Record) int { return 0 }
}

// compareDates orders YYYY-MM-DD strings lexically, which matches calendar
// order.
func compareDates(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	}
	return cmp.Compare(a, b)
}
