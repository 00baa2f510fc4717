package types

import (
	"encoding/json"
	"strconv"
	"time"
)

// Value is a coerced, typed characteristic value. Exactly one payload
// field is meaningful for a given Type; a Null value carries none.
type Value struct {
	Type   DataType
	Null   bool
	Text   string    // text, enum
	Number float64   // number, percentage, price
	Bool   bool      // boolean
	Time   time.Time // date, always UTC
}

// NullValue returns the typed null for dt.
func NullValue(dt DataType) Value { return Value{Type: dt, Null: true} }

// TextValue returns a text value. Use EnumValue for enum characteristics.
func TextValue(s string) Value { return Value{Type: DataTypeText, Text: s} }

// EnumValue returns an enum value holding the selected option.
func EnumValue(opt string) Value { return Value{Type: DataTypeEnum, Text: opt} }

// NumberValue returns a numeric value of the given numeric type.
func NumberValue(dt DataType, f float64) Value { return Value{Type: dt, Number: f} }

// BoolValue returns a boolean value.
func BoolValue(b bool) Value { return Value{Type: DataTypeBoolean, Bool: b} }

// DateValue returns a date value normalized to UTC.
func DateValue(t time.Time) Value { return Value{Type: DataTypeDate, Time: t.UTC()} }

// String returns the canonical textual form of v. Coercing the canonical
// form against the same definition yields v again. A null value renders
// as the empty string.
func (v Value) String() string {
	if v.Null {
		return ""
	}
	switch v.Type {
	case DataTypeText, DataTypeEnum:
		return v.Text
	case DataTypeNumber, DataTypePercentage, DataTypePrice:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case DataTypeBoolean:
		return strconv.FormatBool(v.Bool)
	case DataTypeDate:
		return v.Time.UTC().Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// Encode returns the storage form of v: nil for null, the canonical text
// otherwise.
func (v Value) Encode() *string {
	if v.Null {
		return nil
	}
	s := v.String()
	return &s
}

// Equal reports whether v and o hold the same typed value.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type || v.Null != o.Null {
		return false
	}
	if v.Null {
		return true
	}
	switch v.Type {
	case DataTypeText, DataTypeEnum:
		return v.Text == o.Text
	case DataTypeNumber, DataTypePercentage, DataTypePrice:
		return v.Number == o.Number
	case DataTypeBoolean:
		return v.Bool == o.Bool
	case DataTypeDate:
		return v.Time.Equal(o.Time)
	default:
		return false
	}
}

// MarshalJSON renders v as a native JSON value: null, string, number,
// boolean, or an RFC 3339 string for dates.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Null {
		return []byte("null"), nil
	}
	switch v.Type {
	case DataTypeNumber, DataTypePercentage, DataTypePrice:
		return json.Marshal(v.Number)
	case DataTypeBoolean:
		return json.Marshal(v.Bool)
	default:
		return json.Marshal(v.String())
	}
}
