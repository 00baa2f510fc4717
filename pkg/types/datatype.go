package types

import "strings"

// DataType determines which raw inputs a characteristic accepts and how
// they are coerced.
type DataType string

// Recognized data types. The set is closed: every switch over DataType in
// this module handles all of them.
const (
	DataTypeText       DataType = "text"
	DataTypeNumber     DataType = "number"
	DataTypeBoolean    DataType = "boolean"
	DataTypeDate       DataType = "date"
	DataTypePercentage DataType = "percentage"
	DataTypePrice      DataType = "price"
	DataTypeEnum       DataType = "enum"
)

// AllDataTypes lists the data types in display order.
var AllDataTypes = []DataType{
	DataTypeText,
	DataTypeNumber,
	DataTypeBoolean,
	DataTypeDate,
	DataTypePercentage,
	DataTypePrice,
	DataTypeEnum,
}

// dataTypeAliases maps accepted spellings to their data type. The aliases
// are the labels the inventory screens offered.
var dataTypeAliases = map[string]DataType{
	"text":       DataTypeText,
	"number":     DataTypeNumber,
	"numbers":    DataTypeNumber,
	"boolean":    DataTypeBoolean,
	"bool":       DataTypeBoolean,
	"yes/no":     DataTypeBoolean,
	"date":       DataTypeDate,
	"percentage": DataTypePercentage,
	"percent":    DataTypePercentage,
	"price":      DataTypePrice,
	"enum":       DataTypeEnum,
	"dropdown":   DataTypeEnum,
}

// ParseDataType resolves a data type name or alias, ignoring case and
// surrounding whitespace.
// Returns ErrInvalidDataType if the name is not recognized.
func ParseDataType(s string) (DataType, error) {
	dt, ok := dataTypeAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", ErrInvalidDataType
	}
	return dt, nil
}

// Valid reports whether dt is one of the recognized data types.
func (dt DataType) Valid() bool {
	switch dt {
	case DataTypeText, DataTypeNumber, DataTypeBoolean, DataTypeDate,
		DataTypePercentage, DataTypePrice, DataTypeEnum:
		return true
	default:
		return false
	}
}

// Numeric reports whether values of dt are stored as numbers and may carry
// min/max bounds.
func (dt DataType) Numeric() bool {
	return dt == DataTypeNumber || dt == DataTypePercentage || dt == DataTypePrice
}

func (dt DataType) String() string { return string(dt) }
