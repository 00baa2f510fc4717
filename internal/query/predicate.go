package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/stockroom/internal/coerce"
	"github.com/mesh-intelligence/stockroom/internal/schema"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

// Predicate reports whether a value matches.
type Predicate func(types.Value) bool

// ErrInvalidPredicate is returned for expressions ParsePredicate cannot
// read.
var ErrInvalidPredicate = errors.New("invalid predicate")

// operators in match order: two-character operators first.
var operators = []string{"!=", "<=", ">=", "=", "<", ">", "~"}

// ParsePredicate reads "name<op>operand", for example "Price>=10" or
// "Color=red". Operators are = != < <= > >= and ~ (substring). The
// operand is compared against the stored value of the same type: numbers
// numerically, dates chronologically, booleans by truth value and text by
// byte order. Null values only match "name=" and "name!=".
func ParsePredicate(expr string) (string, Predicate, error) {
	for i := 0; i < len(expr); i++ {
		for _, op := range operators {
			if !strings.HasPrefix(expr[i:], op) {
				continue
			}
			name := schema.NormalizeName(expr[:i])
			if name == "" {
				return "", nil, fmt.Errorf("%w: %q has no characteristic name", ErrInvalidPredicate, expr)
			}
			operand := strings.TrimSpace(expr[i+len(op):])
			return name, compare(op, operand), nil
		}
	}
	return "", nil, fmt.Errorf("%w: %q has no operator", ErrInvalidPredicate, expr)
}

// Equals matches values whose canonical form equals operand after
// coercion to the value's type.
func Equals(operand string) Predicate {
	return compare("=", operand)
}

func compare(op, operand string) Predicate {
	return func(v types.Value) bool {
		if v.Null || operand == "" {
			switch op {
			case "=":
				return v.Null == (operand == "")
			case "!=":
				return v.Null != (operand == "")
			default:
				return false
			}
		}
		if op == "~" {
			return strings.Contains(strings.ToLower(coerce.Format(v)), strings.ToLower(operand))
		}

		want, err := coerce.Coerce(types.Characteristic{Name: "operand", DataType: v.Type, Nullable: true, Options: []string{operand}}, operand)
		if err != nil {
			return op == "!="
		}
		c, ok := order(v, want)
		if !ok {
			return false
		}
		switch op {
		case "=":
			return c == 0
		case "!=":
			return c != 0
		case "<":
			return c < 0
		case "<=":
			return c <= 0
		case ">":
			return c > 0
		case ">=":
			return c >= 0
		default:
			return false
		}
	}
}

// order compares two non-null values of the same type.
func order(a, b types.Value) (int, bool) {
	if a.Type != b.Type {
		return 0, false
	}
	switch a.Type {
	case types.DataTypeText, types.DataTypeEnum:
		return strings.Compare(a.Text, b.Text), true
	case types.DataTypeNumber, types.DataTypePercentage, types.DataTypePrice:
		switch {
		case a.Number < b.Number:
			return -1, true
		case a.Number > b.Number:
			return 1, true
		default:
			return 0, true
		}
	case types.DataTypeBoolean:
		switch {
		case a.Bool == b.Bool:
			return 0, true
		case b.Bool:
			return -1, true
		default:
			return 1, true
		}
	case types.DataTypeDate:
		return a.Time.Compare(b.Time), true
	default:
		return 0, false
	}
}
