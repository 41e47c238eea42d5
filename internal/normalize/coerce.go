package normalize

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

func cleanString(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// str returns v as a cleaned string, or def when v is not a non-empty string.
func str(v any, def string) string {
	s, ok := v.(string)
	if !ok {
		return def
	}
	s = cleanString(s)
	if s == "" {
		return def
	}
	return s
}

// id accepts strings and integral numbers.
func id(v any) string {
	switch t := v.(type) {
	case string:
		return cleanString(t)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// stringList keeps the non-empty string elements of an array; anything else is empty.
func stringList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s := str(e, ""); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func list(v any) []any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	return arr
}

func object(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

// integer accepts integral numbers and numeric strings.
func integer(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int(t), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// first returns the first present key of m.
func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

// uniqueID returns base, or base with a numeric suffix if it was already taken.
func uniqueID(base string, seen map[string]bool) string {
	candidate := base
	for n := 2; seen[candidate]; n++ {
		candidate = base + "-" + strconv.Itoa(n)
	}
	seen[candidate] = true
	return candidate
}

// positional keeps every element of a string array in place, so indices into
// it stay meaningful. It fails if any element is not a string.
func positional(v any) ([]string, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, len(arr))
	for i, e := range arr {
		s, ok := e.(string)
		if !ok {
			return nil, false
		}
		out[i] = cleanString(s)
	}
	return out, true
}
