package chunk

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ToSeconds coerces a loosely typed numeric value into seconds.
// It never fails: nil, unparseable strings, NaN and infinities all yield nil.
func ToSeconds(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		return parseSeconds(n)
	case []byte:
		return parseSeconds(string(n))
	case *float64:
		if n == nil {
			return nil
		}
		f = *n
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func parseSeconds(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.Contains(s, ":") {
		return parseClock(s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// parseClock reads "MM:SS" or "HH:MM:SS"; the last field may be fractional.
func parseClock(s string) *float64 {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return nil
	}
	total := 0.0
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		if i < len(parts)-1 && v != math.Trunc(v) {
			return nil
		}
		total = total*60 + v
	}
	return &total
}

// FirstString returns the first non-blank value, or "".
func FirstString(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// FirstSeconds returns the first value that coerces to seconds, or nil.
func FirstSeconds(values ...any) *float64 {
	for _, v := range values {
		if s := ToSeconds(v); s != nil {
			return s
		}
	}
	return nil
}

// StringValue reads a string out of a loosely typed metadata value.
// Numbers are formatted; anything else yields "".
func StringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

// StringSlice reads a list of strings out of a loosely typed metadata value.
// Non-string items are skipped.
func StringSlice(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
