package mapper

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dateKey = regexp.MustCompile(`(^|_)(close_?)?date$`)

// EpochMillis converts an RFC 3339 timestamp or a YYYY-MM-DD date (midnight
// UTC) into the CRM's millisecond timestamp string.
func EpochMillis(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return strconv.FormatInt(t.UnixMilli(), 10), true
	}
	if len(s) < 10 {
		return "", false
	}
	t, err := time.Parse(time.DateOnly, s[:10])
	if err != nil {
		return "", false
	}
	return strconv.FormatInt(t.UnixMilli(), 10), true
}

// ParseDatePrefix reads a strict YYYY-MM-DD prefix.
func ParseDatePrefix(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 10 {
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, s[:10])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatAmount renders a number without exponent or trailing zeros.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// stringify renders a dynamic JSON value as a CRM property value. Nested
// objects and nulls are not representable and report false.
func stringify(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return FormatAmount(x), true
	case float32:
		return FormatAmount(float64(x)), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case json.Number:
		return x.String(), true
	case []string:
		return strings.Join(x, ";"), len(x) > 0
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := scalarString(item); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ";"), len(parts) > 0
	case map[string]any:
		return "", false
	default:
		return fmt.Sprint(x), true
	}
}

func scalarString(v any) (string, bool) {
	switch v.(type) {
	case []any, []string, map[string]any:
		return "", false
	}
	return stringify(v)
}
