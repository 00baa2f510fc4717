package coerce

import (
	"strconv"
	"time"

	"github.com/mesh-intelligence/stockroom/pkg/types"
)

// Format renders v for display. Percentage and price differ from number
// only here: prices show two decimals, percentages a % suffix.
func Format(v types.Value) string {
	if v.Null {
		return ""
	}
	switch v.Type {
	case types.DataTypePrice:
		return strconv.FormatFloat(v.Number, 'f', 2, 64)
	case types.DataTypePercentage:
		return strconv.FormatFloat(v.Number, 'f', -1, 64) + "%"
	case types.DataTypeBoolean:
		if v.Bool {
			return "yes"
		}
		return "no"
	case types.DataTypeDate:
		t := v.Time.UTC()
		if t.Equal(t.Truncate(24 * time.Hour)) {
			return t.Format(dateOnly)
		}
		return t.Format(time.RFC3339)
	default:
		return v.String()
	}
}
