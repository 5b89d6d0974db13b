package types

import (
	"slices"
	"time"
)

// Priority is the urgency of a pipeline record.
type Priority string

// Record priorities.
const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// DefaultPriority is applied when a form leaves the priority empty.
const DefaultPriority = PriorityMedium

// validPriorities is the set of recognized priority values.
var validPriorities = map[Priority]bool{
	PriorityHigh:   true,
	PriorityMedium: true,
	PriorityLow:    true,
}

// priorityRank orders priorities from most to least urgent.
var priorityRank = map[Priority]int{
	PriorityHigh:   0,
	PriorityMedium: 1,
	PriorityLow:    2,
}

// Valid reports whether p is one of the recognized priorities.
func (p Priority) Valid() bool {
	return validPriorities[p]
}

// Rank returns 0 for HIGH, 1 for MEDIUM and 2 for LOW. Unknown values sort last.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank)
}

// DateLayout is the ISO calendar date format used by record date fields.
const DateLayout = "2006-01-02"

// Record is a single pipeline item: a sales lead or contact in progress.
type Record struct {
	ID           string    `json:"id"`           // UUID v7, generated on creation, never changes.
	Name         string    `json:"name"`         // Required display identity.
	Phone        string    `json:"phone"`        // Required display identity.
	Products     []string  `json:"products"`     // Never empty once sanitized.
	Value        string    `json:"value"`        // Opaque monetary display string.
	Priority     Priority  `json:"priority"`     // HIGH, MEDIUM or LOW.
	LastContact  string    `json:"lastContact"`  // Optional YYYY-MM-DD.
	DemoDate     string    `json:"demoDate"`     // Optional YYYY-MM-DD.
	DeliveryDate string    `json:"deliveryDate"` // Optional YYYY-MM-DD.
	Notes        string    `json:"notes"`
	Tags         []string  `json:"tags"`   // Opaque tag ids, resolved by the presentation layer.
	Status       string    `json:"status"` // Id of the bucket holding the record.
	PaymentPlan  string    `json:"paymentPlan"`
	EventID      string    `json:"eventId,omitempty"`    // Calendar sync, preserved verbatim.
	CalendarID   string    `json:"calendarId,omitempty"` // Calendar sync, preserved verbatim.
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the record so that callers never share the
// engine's slices.
func (r Record) Clone() Record {
	r.Products = slices.Clone(r.Products)
	r.Tags = slices.Clone(r.Tags)
	return r
}

// HasTag reports whether the record carries the given tag id.
func (r Record) HasTag(tagID string) bool {
	return slices.Contains(r.Tags, tagID)
}
