package bikeshare

import (
	"fmt"
	"strings"
	"time"
)

// Geometry is implemented by polygon values stored in a GEOMETRY column.
type Geometry interface {
	// WKT returns the well-known-text representation of the geometry.
	WKT() string
}

// AsInt returns v as an int64 if it holds an integer.
func AsInt(v interface{}) (int64, bool) {
	switch vt := v.(type) {
	case int64:
		return vt, true
	case int:
		return int64(vt), true
	case int32:
		return int64(vt), true
	}
	return 0, false
}

// AsFloat returns v as a float64 if it holds any number.
func AsFloat(v interface{}) (float64, bool) {
	switch vt := v.(type) {
	case float64:
		return vt, true
	case float32:
		return float64(vt), true
	}
	if i, ok := AsInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

// AsString returns v as a string if it holds one.
func AsString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// AsTime returns v as a time.Time if it holds one.
func AsTime(v interface{}) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}

// AsBool returns v as a bool if it holds one.
func AsBool(v interface{}) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// Compare orders two cell values. nil sorts first, numbers compare
// numerically, times chronologically, false before true, and anything else by
// its printed form.
func Compare(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if af, ok := AsFloat(a); ok {
		if bf, ok := AsFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	switch at := a.(type) {
	case string:
		if bt, ok := b.(string); ok {
			return strings.Compare(at, bt)
		}
	case time.Time:
		if bt, ok := b.(time.Time); ok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			}
			return 0
		}
	case bool:
		if bt, ok := b.(bool); ok {
			switch {
			case at == bt:
				return 0
			case !at:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// Key builds a comparable grouping key from a list of cell values. Times are
// keyed by instant so the same moment in different locations groups together.
func Key(vals ...interface{}) string {
	var sb strings.Builder
	for i, v := range vals {
		if i > 0 {
			sb.WriteByte(0x1f)
		}
		switch vt := v.(type) {
		case nil:
			sb.WriteString("\x00")
		case time.Time:
			fmt.Fprintf(&sb, "t%d", vt.UnixNano())
		case Geometry:
			sb.WriteString(vt.WKT())
		default:
			if i, ok := AsInt(v); ok {
				fmt.Fprintf(&sb, "i%d", i)
			} else {
				fmt.Fprintf(&sb, "%T%v", v, v)
			}
		}
	}
	return sb.String()
}

// ColumnMap is a declared rename table from old to new column names.
type ColumnMap map[string]string

// Apply returns the new name for col, or col if it is not renamed.
func (m ColumnMap) Apply(col string) string {
	if to, ok := m[col]; ok {
		return to
	}
	return col
}

// PrefixMap returns a ColumnMap which prefixes each of cols.
func PrefixMap(prefix string, cols ...string) ColumnMap {
	m := make(ColumnMap, len(cols))
	for _, c := range cols {
		m[c] = prefix + c
	}
	return m
}

// Merge returns a new ColumnMap holding the entries of m and o, o winning on
// conflicts.
func (m ColumnMap) Merge(o ColumnMap) ColumnMap {
	ret := make(ColumnMap, len(m)+len(o))
	for k, v := range m {
		ret[k] = v
	}
	for k, v := range o {
		ret[k] = v
	}
	return ret
}
