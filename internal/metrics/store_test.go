package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/stockroom/pkg/types"
)

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ResultOK},
		{types.NewValidationErrors([]*types.FieldError{{Field: "x", Reason: types.ErrInvalidFormat}}), ResultValidation},
		{fmt.Errorf("get: %w", types.ErrNotFound), ResultNotFound},
		{types.ErrUnknownGroup, ResultNotFound},
		{types.ErrInUse, ResultConflict},
		{types.ErrDuplicateName, ResultConflict},
		{types.PersistenceError("save record", errors.New("disk full")), ResultPersistence},
		{errors.New("boom"), ResultError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Result(tt.err), "%v", tt.err)
	}
}

func TestObserveMutation(t *testing.T) {
	before := testutil.ToFloat64(StoreMutationsTotal.WithLabelValues("test_op", ResultOK))
	ObserveMutation("test_op", time.Now(), nil)
	after := testutil.ToFloat64(StoreMutationsTotal.WithLabelValues("test_op", ResultOK))
	assert.Equal(t, before+1, after)
}
