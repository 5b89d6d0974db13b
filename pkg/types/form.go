package types

import "time"

// FormData is the contract between the board engine and any form that
// creates or edits a record. Name, Phone and Status are required; an empty ID
// creates a new record. Status names the target bucket.
//
// EventID and CalendarID belong to the calendar-sync collaborator: nil keeps
// the stored value, a non-nil pointer replaces it.
type FormData struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name"`
	Phone        string   `json:"phone"`
	Products     []string `json:"products"`
	Value        string   `json:"value"`
	Priority     Priority `json:"priority"`
	LastContact  string   `json:"lastContact"`
	DemoDate     string   `json:"demoDate"`
	DeliveryDate string   `json:"deliveryDate"`
	Notes        string   `json:"notes"`
	Tags         []string `json:"tags"`
	Status       string   `json:"status"`
	PaymentPlan  string   `json:"paymentPlan"`
	EventID      *string  `json:"eventId,omitempty"`
	CalendarID   *string  `json:"calendarId,omitempty"`
}

// FormFromRecord builds the form an editor would show for r. Submitting it
// unchanged is a no-op apart from UpdatedAt.
func FormFromRecord(r Record) FormData {
	r = r.Clone()
	return FormData{
		ID:           r.ID,
		Name:         r.Name,
		Phone:        r.Phone,
		Products:     r.Products,
		Value:        r.Value,
		Priority:     r.Priority,
		LastContact:  r.LastContact,
		DemoDate:     r.DemoDate,
		DeliveryDate: r.DeliveryDate,
		Notes:        r.Notes,
		Tags:         r.Tags,
		Status:       r.Status,
		PaymentPlan:  r.PaymentPlan,
	}
}

// Position addresses a slot in a bucket.
type Position struct {
	BucketID string `json:"bucketId"`
	Index    int    `json:"index"`
}

// MoveRequest is a drag-and-drop result. A nil Destination means the drag was
// cancelled or dropped outside any column.
type MoveRequest struct {
	RecordID    string    `json:"recordId"`
	Source      Position  `json:"source"`
	Destination *Position `json:"destination"`
}

// PendingDelete is an unconfirmed deletion awaiting ConfirmDelete or
// CancelDelete.
type PendingDelete struct {
	Token       string    `json:"token"`
	RecordID    string    `json:"recordId"`
	BucketID    string    `json:"bucketId"`
	DisplayName string    `json:"displayName"`
	RequestedAt time.Time `json:"requestedAt"`
}
