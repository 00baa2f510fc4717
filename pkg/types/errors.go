package types

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Schema and store errors.
var (
	ErrDuplicateName         = errors.New("characteristic already defined")
	ErrInvalidDefinition     = errors.New("invalid definition")
	ErrInvalidName           = errors.New("invalid name")
	ErrInvalidDataType       = errors.New("invalid data type")
	ErrNotFound              = errors.New("not found")
	ErrUnknownCharacteristic = errors.New("unknown characteristic")
	ErrUnknownGroup          = errors.New("unknown group")
	ErrDuplicateGroup        = errors.New("group already defined")
	ErrInUse                 = errors.New("still referenced")
	ErrNothingToUndo         = errors.New("nothing to undo")
)

// Validation errors. ErrValidation matches any *ValidationErrors; the
// remaining sentinels are FieldError reasons.
var (
	ErrValidation           = errors.New("validation failed")
	ErrRequiredFieldMissing = errors.New("required field missing")
	ErrInvalidFormat        = errors.New("invalid format")
	ErrOutOfRange           = errors.New("out of range")
	ErrNotInOptions         = errors.New("not in options")
)

// ErrPersistence wraps every failure returned by a Persistence port.
var ErrPersistence = errors.New("persistence failure")

// FieldError reports why one field failed validation.
type FieldError struct {
	Field  string // Characteristic name.
	Reason error  // One of the validation sentinels, or ErrUnknownCharacteristic.
	Detail string // Human-readable detail, may be empty.
}

func (e *FieldError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %v: %s", e.Field, e.Reason, e.Detail)
}

func (e *FieldError) Unwrap() error { return e.Reason }

// ValidationErrors collects every field that failed in one operation so a
// caller can report all of them at once. Fields is sorted by field name.
type ValidationErrors struct {
	Fields []*FieldError
}

// NewValidationErrors sorts fields by name and wraps them. Returns nil when
// fields is empty.
func NewValidationErrors(fields []*FieldError) *ValidationErrors {
	if len(fields) == 0 {
		return nil
	}
	sorted := slices.Clone(fields)
	slices.SortStableFunc(sorted, func(a, b *FieldError) int {
		return strings.Compare(a.Field, b.Field)
	})
	return &ValidationErrors{Fields: sorted}
}

func (e *ValidationErrors) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(parts, "; "))
}

// Is reports ErrValidation.
func (e *ValidationErrors) Is(target error) bool { return target == ErrValidation }

// Unwrap exposes every field error to errors.Is and errors.As.
func (e *ValidationErrors) Unwrap() []error {
	out := make([]error, len(e.Fields))
	for i, f := range e.Fields {
		out[i] = f
	}
	return out
}

// Field returns the error for the named field, or nil.
func (e *ValidationErrors) Field(name string) *FieldError {
	for _, f := range e.Fields {
		if f.Field == name {
			return f
		}
	}
	return nil
}

// AsValidation extracts *ValidationErrors from err.
func AsValidation(err error) (*ValidationErrors, bool) {
	var ve *ValidationErrors
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// PersistenceError wraps a port failure for operation op.
func PersistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
