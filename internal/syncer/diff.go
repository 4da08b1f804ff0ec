package syncer

import (
	"strconv"
	"strings"
	"time"
)

// Diff returns the entries of next whose value differs from current.
// Numbers and dates are compared by value, so "5000" equals "5000.00" and
// an epoch-millisecond string equals the same instant in RFC 3339.
func Diff(current, next map[string]string) map[string]string {
	out := make(map[string]string)
	for k, v := range next {
		if !valuesEqual(current[k], v) {
			out[k] = v
		}
	}
	return out
}

func valuesEqual(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return fa == fb
	}
	ta, okA := instant(a)
	tb, okB := instant(b)
	return okA && okB && ta == tb
}

// instant reads epoch milliseconds, RFC 3339 or YYYY-MM-DD (UTC midnight).
func instant(s string) (int64, bool) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UnixMilli(), true
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UnixMilli(), true
	}
	return 0, false
}
