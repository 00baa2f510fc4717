// Package coerce converts raw textual input into typed characteristic
// values. Every function here is pure: the same definition and input
// always produce the same value or the same error.
package coerce

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/mesh-intelligence/stockroom/pkg/types"
)

// decimalPattern accepts plain decimal notation with an optional exponent.
// strconv.ParseFloat alone would also accept hex floats, "NaN" and "Inf".
var decimalPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// dateOnly is the layout for calendar dates without a time of day.
const dateOnly = "2006-01-02"

// Coerce validates raw against def and returns the typed value.
// Failures are returned as *types.FieldError with one of the validation
// sentinels as reason.
func Coerce(def types.Characteristic, raw string) (types.Value, error) {
	if isEmpty(def.DataType, raw) {
		if def.Nullable {
			return types.NullValue(def.DataType), nil
		}
		return types.Value{}, fieldErr(def, types.ErrRequiredFieldMissing, "")
	}

	switch def.DataType {
	case types.DataTypeText:
		return types.TextValue(raw), nil

	case types.DataTypeEnum:
		if !def.HasOption(raw) {
			return types.Value{}, fieldErr(def, types.ErrNotInOptions,
				fmt.Sprintf("%q is not one of [%s]", raw, strings.Join(def.Options, ", ")))
		}
		return types.EnumValue(raw), nil

	case types.DataTypeNumber, types.DataTypePercentage, types.DataTypePrice:
		f, err := parseNumber(def.DataType, raw)
		if err != nil {
			return types.Value{}, fieldErr(def, types.ErrInvalidFormat, err.Error())
		}
		if def.Min != nil && f < *def.Min {
			return types.Value{}, fieldErr(def, types.ErrOutOfRange, "must be >= "+formatBound(*def.Min))
		}
		if def.Max != nil && f > *def.Max {
			return types.Value{}, fieldErr(def, types.ErrOutOfRange, "must be <= "+formatBound(*def.Max))
		}
		return types.NumberValue(def.DataType, f), nil

	case types.DataTypeBoolean:
		b, err := parseBool(raw)
		if err != nil {
			return types.Value{}, fieldErr(def, types.ErrInvalidFormat, err.Error())
		}
		return types.BoolValue(b), nil

	case types.DataTypeDate:
		t, err := parseDate(raw)
		if err != nil {
			return types.Value{}, fieldErr(def, types.ErrInvalidFormat, err.Error())
		}
		return types.DateValue(t), nil

	default:
		return types.Value{}, fieldErr(def, types.ErrInvalidFormat,
			fmt.Sprintf("unsupported data type %q", def.DataType))
	}
}

// Decode hydrates a stored canonical value without re-checking
// constraints; the value was valid when it was written. A nil s decodes
// to the typed null.
func Decode(dt types.DataType, s *string) (types.Value, error) {
	if s == nil {
		return types.NullValue(dt), nil
	}
	raw := *s
	switch dt {
	case types.DataTypeText:
		return types.TextValue(raw), nil
	case types.DataTypeEnum:
		return types.EnumValue(raw), nil
	case types.DataTypeNumber, types.DataTypePercentage, types.DataTypePrice:
		f, err := parseNumber(dt, raw)
		if err != nil {
			return types.Value{}, fmt.Errorf("decoding %s value: %w", dt, err)
		}
		return types.NumberValue(dt, f), nil
	case types.DataTypeBoolean:
		b, err := parseBool(raw)
		if err != nil {
			return types.Value{}, fmt.Errorf("decoding boolean value: %w", err)
		}
		return types.BoolValue(b), nil
	case types.DataTypeDate:
		t, err := parseDate(raw)
		if err != nil {
			return types.Value{}, fmt.Errorf("decoding date value: %w", err)
		}
		return types.DateValue(t), nil
	default:
		return types.Value{}, types.ErrInvalidDataType
	}
}

// isEmpty reports whether raw counts as absent for dt. Text keeps its
// whitespace, so only the empty string is absent; other types ignore
// surrounding whitespace.
func isEmpty(dt types.DataType, raw string) bool {
	if dt == types.DataTypeText || dt == types.DataTypeEnum {
		return raw == ""
	}
	return strings.TrimSpace(raw) == ""
}

func parseNumber(dt types.DataType, raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	switch dt {
	case types.DataTypePercentage:
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	case types.DataTypePrice:
		s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	}
	if !decimalPattern.MatchString(s) {
		return 0, fmt.Errorf("%q is not a decimal number", raw)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a finite number", raw)
	}
	return f, nil
}

func parseBool(raw string) (bool, error) {
	// A Caser is stateful, so each call gets its own.
	switch cases.Fold().String(strings.TrimSpace(raw)) {
	case "yes", "true":
		return true, nil
	case "no", "false":
		return false, nil
	default:
		return false, fmt.Errorf("%q is not one of yes, no, true, false", raw)
	}
}

// parseDate accepts RFC 3339 date-times with an explicit offset and plain
// calendar dates, which are taken as midnight UTC. Local date-times
// without an offset are rejected.
func parseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateOnly, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%q is not an ISO-8601 date or date-time with offset", raw)
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func fieldErr(def types.Characteristic, reason error, detail string) *types.FieldError {
	return &types.FieldError{Field: def.Name, Reason: reason, Detail: detail}
}
