package backend

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Normalize maps Go values onto the small set of scalar kinds rows are
// compared in: string, float64, bool, nil, []any.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string, bool, float64:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC().Format(time.RFC3339Nano)
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case fmt.Stringer:
		return x.String()
	default:
		return x
	}
}

// Compare orders two values. Strings that both parse as RFC 3339 timestamps
// are compared as instants. ok is false for incomparable kinds.
func Compare(a, b any) (c int, ok bool) {
	a, b = Normalize(a), Normalize(b)
	switch x := a.(type) {
	case string:
		y, isStr := b.(string)
		if !isStr {
			return 0, false
		}
		if tx, err := time.Parse(time.RFC3339Nano, x); err == nil {
			if ty, err := time.Parse(time.RFC3339Nano, y); err == nil {
				return tx.Compare(ty), true
			}
		}
		return strings.Compare(x, y), true
	case float64:
		y, isNum := b.(float64)
		if !isNum {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case bool:
		y, isBool := b.(bool)
		if !isBool {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	case nil:
		if b == nil {
			return 0, true
		}
		return -1, true
	}
	return 0, false
}

func equalLoose(a, b any) bool {
	c, ok := Compare(a, b)
	return ok && c == 0
}

// Eval reports whether a row satisfies the filter. Missing columns only
// satisfy neq.
func (f Filter) Eval(row map[string]any) bool {
	v, present := row[f.Column]
	if !present || v == nil {
		return f.Op == OpNeq && f.Value != nil
	}
	switch f.Op {
	case OpEq:
		return equalLoose(v, f.Value)
	case OpNeq:
		return !equalLoose(v, f.Value)
	case OpIn:
		set, _ := Normalize(f.Value).([]any)
		for _, s := range set {
			if equalLoose(v, s) {
				return true
			}
		}
		return false
	case OpContains:
		s, ok := v.(string)
		needle, _ := f.Value.(string)
		return ok && strings.Contains(strings.ToLower(s), strings.ToLower(needle))
	}
	c, ok := Compare(v, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}

// MatchAll reports whether row satisfies every filter.
func MatchAll(row map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !f.Eval(row) {
			return false
		}
	}
	return true
}

// SortRows orders rows in place. Rows missing the column sort first.
func SortRows(rows []map[string]any, o *Order) {
	if o == nil {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		c, _ := Compare(rows[i][o.Column], rows[j][o.Column])
		if o.Desc {
			return c > 0
		}
		return c < 0
	})
}
