package board

import (
	"strings"
	"time"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// ValidateForm checks the required and typed fields of a form. It returns a
// *types.ValidationError listing every failing field, or nil.
func ValidateForm(form types.FormData) error {
	var verr types.ValidationError
	if strings.TrimSpace(form.Name) == "" {
		verr.Add("name", "is required")
	}
	if strings.TrimSpace(form.Phone) == "" {
		verr.Add("phone", "is required")
	}
	if strings.TrimSpace(form.Status) == "" {
		verr.Add("status", "is required")
	}
	if form.Priority != "" && !form.Priority.Valid() {
		verr.Add("priority", "must be HIGH, MEDIUM or LOW")
	}
	checkDate(&verr, "lastContact", form.LastContact)
	checkDate(&verr, "demoDate", form.DemoDate)
	checkDate(&verr, "deliveryDate", form.DeliveryDate)
	return verr.OrNil()
}

// checkDate accepts an empty value or an ISO calendar date.
func checkDate(verr *types.ValidationError, field, value string) {
	if value == "" {
		return
	}
	if _, err := time.Parse(types.DateLayout, value); err != nil {
		verr.Add(field, "must be a date (YYYY-MM-DD)")
	}
}

// SanitizeProducts trims product lines and drops blank ones. When nothing is
// left the result is a single placeholder line. Applying it to its own
// output returns an equal slice.
func SanitizeProducts(products []string, placeholder string) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{placeholder}
	}
	return out
}

// normalizeTags drops blank tag ids and duplicates, keeping first-seen order.
// Unknown ids are kept: tags are opaque to the engine.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
