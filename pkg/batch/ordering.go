package batch

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// Sort order names accepted by ParseSortKey.
const (
	SortOrderAsc  = "asc"
	SortOrderDesc = "desc"

	sortPartsMax = 2
)

// SortKey orders rows by a single column.
type SortKey struct {
	Column string
	Desc   bool
}

// Asc returns an ascending sort key on column.
func Asc(column string) SortKey {
	return SortKey{Column: column}
}

// Desc returns a descending sort key on column.
func Desc(column string) SortKey {
	return SortKey{Column: column, Desc: true}
}

// String formats the key as "column:order".
func (k SortKey) String() string {
	if k.Desc {
		return k.Column + ":" + SortOrderDesc
	}
	return k.Column + ":" + SortOrderAsc
}

// ParseSortKey parses a sort expression in "column:order" format.
// Supports:
//   - "column" - defaults to asc order
//   - "column:asc" - explicit ascending order
//   - "column:desc" - explicit descending order
func ParseSortKey(expr string) (SortKey, error) {
	if strings.TrimSpace(expr) == "" {
		return SortKey{}, errors.New("empty sort expression")
	}

	parts := strings.Split(expr, ":")
	if len(parts) > sortPartsMax {
		return SortKey{}, fmt.Errorf("invalid format: too many colons in %q", expr)
	}

	column := strings.TrimSpace(parts[0])
	if column == "" {
		return SortKey{}, errors.New("empty sort expression")
	}

	order := SortOrderAsc
	if len(parts) == sortPartsMax {
		order = strings.ToLower(strings.TrimSpace(parts[1]))
	}

	switch order {
	case SortOrderAsc:
		return Asc(column), nil
	case SortOrderDesc:
		return Desc(column), nil
	default:
		return SortKey{}, fmt.Errorf("invalid sort order: %q (must be asc or desc)", order)
	}
}

// ParseOrdering parses a list of sort expressions.
func ParseOrdering(exprs []string) ([]SortKey, error) {
	keys := make([]SortKey, 0, len(exprs))
	for _, expr := range exprs {
		k, err := ParseSortKey(expr)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// compareRows orders two rows by keys, falling back to the identifier column so
// the result is a total order whenever identifiers are unique.
func compareRows(a, b Row, keys []SortKey, idColumn string) int {
	for _, k := range keys {
		c := compareValues(a[k.Column], b[k.Column])
		if k.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return compareValues(a[idColumn], b[idColumn])
}

// Type ranks used when two values of different kinds are compared.
const (
	rankNil = iota
	rankBool
	rankNumber
	rankString
	rankTime
	rankOther
)

// compareValues compares two column values. nil sorts first. Integers and
// floats compare numerically across widths; mismatched kinds compare by kind.
func compareValues(a, b any) int {
	ra, rb := valueRank(a), valueRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}

	switch ra {
	case rankNil:
		return 0
	case rankBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case rankNumber:
		return compareNumbers(a, b)
	case rankString:
		return strings.Compare(stringValue(a), stringValue(b))
	case rankTime:
		return a.(time.Time).Compare(b.(time.Time))
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func valueRank(v any) int {
	switch v.(type) {
	case nil:
		return rankNil
	case bool:
		return rankBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return rankNumber
	case string, []byte:
		return rankString
	case time.Time:
		return rankTime
	default:
		return rankOther
	}
}

func stringValue(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v.(string)
}

func compareNumbers(a, b any) int {
	ai, aInt := toInt64(a)
	bi, bInt := toInt64(b)
	if aInt && bInt {
		return cmp.Compare(ai, bi)
	}
	return cmp.Compare(toFloat64(a), toFloat64(b))
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	default:
		return 0, false
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	default:
		i, _ := toInt64(v)
		return float64(i)
	}
}

// normalizeID converts an identifier into a canonical map key so ids read by
// different queries (or drivers returning different integer widths) match.
func normalizeID(v any) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil", ErrInvalidIdentifier)
	}
	if b, ok := v.([]byte); ok {
		return string(b), nil
	}
	if i, ok := toInt64(v); ok {
		return i, nil
	}
	if !reflect.TypeOf(v).Comparable() {
		return nil, fmt.Errorf("%w: %T is not comparable", ErrInvalidIdentifier, v)
	}
	return v, nil
}
