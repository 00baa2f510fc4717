package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorsSortedAndMatchable(t *testing.T) {
	err := error(NewValidationErrors([]*FieldError{
		{Field: "weight", Reason: ErrOutOfRange, Detail: "must be <= 10"},
		{Field: "color", Reason: ErrNotInOptions},
	}))

	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.ErrorIs(t, err, ErrNotInOptions)
	assert.NotErrorIs(t, err, ErrRequiredFieldMissing)

	ve, ok := AsValidation(fmt.Errorf("create: %w", err))
	require.True(t, ok)
	require.Len(t, ve.Fields, 2)
	assert.Equal(t, "color", ve.Fields[0].Field)
	assert.Equal(t, "weight", ve.Fields[1].Field)
	assert.Same(t, ve.Fields[1], ve.Field("weight"))
	assert.Nil(t, ve.Field("missing"))
	assert.Contains(t, err.Error(), "weight: out of range: must be <= 10")
}

func TestNewValidationErrorsEmpty(t *testing.T) {
	assert.Nil(t, NewValidationErrors(nil))
}

func TestPersistenceError(t *testing.T) {
	cause := errors.New("disk full")
	err := PersistenceError("save record", cause)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "persistence failure: save record: disk full", err.Error())
}
