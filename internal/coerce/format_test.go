package coerce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/stockroom/pkg/types"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		v    types.Value
		want string
	}{
		{"price two decimals", types.NumberValue(types.DataTypePrice, 12.5), "12.50"},
		{"percentage suffix", types.NumberValue(types.DataTypePercentage, 7.25), "7.25%"},
		{"number plain", types.NumberValue(types.DataTypeNumber, 7.25), "7.25"},
		{"boolean yes", types.BoolValue(true), "yes"},
		{"boolean no", types.BoolValue(false), "no"},
		{"calendar date", types.DateValue(time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)), "2024-02-03"},
		{"date-time", types.DateValue(time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)), "2024-02-03T04:05:06Z"},
		{"null", types.NullValue(types.DataTypePrice), ""},
		{"text", types.TextValue("bolt"), "bolt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.v))
		})
	}
}
