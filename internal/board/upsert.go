package board

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// Upsert creates or edits a record from a form submission.
//
// With an empty form ID a new record is appended to the end of the target
// bucket. With a form ID the record's fields are replaced in place; if
// Status names a different bucket the record is then removed from its
// current bucket and appended to the end of the target one. The record id
// never changes. Validation, bucket and existence checks all run before the
// first write, so a failed Upsert leaves the board untouched.
func (e *Engine) Upsert(form types.FormData) (types.Snapshot, types.Record, error) {
	if err := ValidateForm(form); err != nil {
		return types.Snapshot{}, types.Record{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	target, ok := e.bucketLocked(strings.TrimSpace(form.Status))
	if !ok {
		return types.Snapshot{}, types.Record{}, fmt.Errorf("%w: %q", types.ErrInvalidBucket, form.Status)
	}
	products := SanitizeProducts(form.Products, e.placeholder)

	if form.ID == "" {
		return e.createLocked(form, products, target)
	}
	return e.editLocked(form, products, target)
}

// createLocked inserts a new record at the end of target. The caller must
// hold e.mu.
func (e *Engine) createLocked(form types.FormData, products []string, target *bucket) (types.Snapshot, types.Record, error) {
	id := e.newID()
	if _, exists := e.records[id]; exists {
		return types.Snapshot{}, types.Record{}, fmt.Errorf("%w: generated id %q already in use", types.ErrConflict, id)
	}

	now := e.now().UTC()
	rec := &types.Record{ID: id, CreatedAt: now}
	e.updateFields(rec, form, products)
	rec.Status = target.def.ID

	e.records[id] = rec
	e.placement[id] = target.def.ID
	target.items = append(target.items, id)

	snap := e.commitLocked(types.Change{
		Op:        types.OpCreate,
		RecordID:  id,
		ToBucket:  target.def.ID,
		FromIndex: -1,
		ToIndex:   len(target.items) - 1,
	})
	return snap, rec.Clone(), nil
}

// editLocked replaces the fields of an existing record and relocates it when
// the target bucket differs. The caller must hold e.mu.
func (e *Engine) editLocked(form types.FormData, products []string, target *bucket) (types.Snapshot, types.Record, error) {
	curID, rec, ok := e.findLocked(form.ID)
	if !ok {
		return types.Snapshot{}, types.Record{}, fmt.Errorf("%w: record %q", types.ErrNotFound, form.ID)
	}
	cur, _ := e.bucketLocked(curID)
	fromIdx := indexOf(cur.items, rec.ID)

	e.updateFields(rec, form, products)
	toIdx := fromIdx
	if cur != target {
		toIdx = e.relocate(rec, cur, target)
	}

	snap := e.commitLocked(types.Change{
		Op:         types.OpUpdate,
		RecordID:   rec.ID,
		FromBucket: cur.def.ID,
		ToBucket:   target.def.ID,
		FromIndex:  fromIdx,
		ToIndex:    toIdx,
	})
	return snap, rec.Clone(), nil
}

// updateFields replaces the business fields of rec with the form values.
// ID, CreatedAt and Status are left alone: identity is immutable and
// placement belongs to relocate. Calendar fields change only when the form
// carries them.
func (e *Engine) updateFields(rec *types.Record, form types.FormData, products []string) {
	rec.Name = strings.TrimSpace(form.Name)
	rec.Phone = strings.TrimSpace(form.Phone)
	rec.Products = products
	rec.Value = form.Value
	rec.Priority = form.Priority
	if rec.Priority == "" {
		rec.Priority = types.DefaultPriority
	}
	rec.LastContact = form.LastContact
	rec.DemoDate = form.DemoDate
	rec.DeliveryDate = form.DeliveryDate
	rec.Notes = form.Notes
	rec.Tags = normalizeTags(form.Tags)
	rec.PaymentPlan = form.PaymentPlan
	if form.EventID != nil {
		rec.EventID = *form.EventID
	}
	if form.CalendarID != nil {
		rec.CalendarID = *form.CalendarID
	}
	rec.UpdatedAt = e.now().UTC()
}

// relocate moves rec from one bucket to the end of another and keeps Status
// and the placement map in step. It returns the new index. The caller must
// hold e.mu and guarantee rec sits in from.
func (e *Engine) relocate(rec *types.Record, from, to *bucket) int {
	i := indexOf(from.items, rec.ID)
	if i < 0 {
		panic(fmt.Sprintf("board: relocate %q from %q where it is not placed", rec.ID, from.def.ID))
	}
	from.items = removeAt(from.items, i)
	to.items = append(to.items, rec.ID)
	rec.Status = to.def.ID
	e.placement[rec.ID] = to.def.ID
	return len(to.items) - 1
}
