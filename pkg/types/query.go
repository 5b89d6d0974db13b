package types

// Sort keys accepted by RecordQuery.SortBy.
const (
	SortBoard        = ""
	SortName         = "name"
	SortPriority     = "priority"
	SortLastContact  = "lastContact"
	SortDemoDate     = "demoDate"
	SortDeliveryDate = "deliveryDate"
	SortCreatedAt    = "createdAt"
)

// Pagination limits.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// RecordQuery filters, sorts and paginates the records of a snapshot. Zero
// values mean "no filter"; an empty SortBy keeps board order.
type RecordQuery struct {
	BucketID string   `json:"bucketId,omitempty"`
	Priority Priority `json:"priority,omitempty"`
	Tag      string   `json:"tag,omitempty"`
	Text     string   `json:"text,omitempty"`
	SortBy   string   `json:"sortBy,omitempty"`
	Desc     bool     `json:"desc,omitempty"`
	Page     int      `json:"page,omitempty"`
	PerPage  int      `json:"perPage,omitempty"`
}

// validSortKeys is the set of recognized SortBy values.
var validSortKeys = map[string]bool{
	SortBoard:        true,
	SortName:         true,
	SortPriority:     true,
	SortLastContact:  true,
	SortDemoDate:     true,
	SortDeliveryDate: true,
	SortCreatedAt:    true,
}

// Validate checks the sort key and priority filter.
func (q RecordQuery) Validate() error {
	var verr ValidationError
	if !validSortKeys[q.SortBy] {
		verr.Add("sortBy", "unknown sort key")
	}
	if q.Priority != "" && !q.Priority.Valid() {
		verr.Add("priority", "must be HIGH, MEDIUM or LOW")
	}
	if q.Page < 0 {
		verr.Add("page", "must not be negative")
	}
	if q.PerPage < 0 {
		verr.Add("perPage", "must not be negative")
	}
	return verr.OrNil()
}

// RecordPage is one page of query results.
type RecordPage struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Page    int      `json:"page"`
	PerPage int      `json:"perPage"`
}
