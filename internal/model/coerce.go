package model

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Truthy reports whether a cell counts as present: nil, false, zero, NaN and
// the empty string do not.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	default:
		f, ok := numeric(v)
		if !ok {
			return true
		}
		return f != 0 && !math.IsNaN(f)
	}
}

// Number coerces a cell to a float64 the permissive way: numbers pass through,
// strings contribute their leading numeric prefix ("12.5 AED" is 12.5) and
// anything else, including non-finite results, is 0. Callers treat 0 as an
// absent operand.
func Number(v any) float64 {
	if s, ok := v.(string); ok {
		m := leadingNumber.FindString(strings.TrimSpace(s))
		if m == "" {
			return 0
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil || math.IsInf(f, 0) {
			return 0
		}
		return f
	}

	f, ok := numeric(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Text renders a cell as a string. Whole numbers print without a fraction so a
// numeric TRN such as 100000000000003 keeps all of its digits.
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	}

	if f, ok := numeric(v); ok {
		return FormatNumber(f)
	}
	return ""
}

// FormatNumber prints a float with the shortest representation that round-trips.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
