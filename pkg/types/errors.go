package types

import (
	"errors"
	"strings"
)

// Board operation errors. All are recoverable: an operation returning one of
// them has not mutated the board.
var (
	// ErrNotFound reports that a referenced record, bucket or pending
	// deletion does not exist at the time of the operation.
	ErrNotFound = errors.New("not found")

	// ErrConflict reports that the caller's view of the board is stale, e.g.
	// a drag source index no longer holds the dragged record.
	ErrConflict = errors.New("conflict with current board state")

	// ErrInvalidBucket reports an upsert targeting a bucket that is not in
	// the configuration.
	ErrInvalidBucket = errors.New("invalid bucket")

	// ErrValidation reports missing or malformed form fields. Errors of this
	// kind are *ValidationError values.
	ErrValidation = errors.New("validation failed")
)

// Data errors.
var (
	ErrInvalidData = errors.New("invalid board data")
)

// FieldError is a single failed field check.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every failed field check of a form.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// Add records a failed field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns e when at least one field failed, otherwise nil.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Message
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Has reports whether field failed validation.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}
