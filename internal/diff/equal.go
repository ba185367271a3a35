package diff

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// Equal reports whether two values are loosely equal: numbers and numeric
// strings compare numerically, two strings compare textually, lists compare
// element-wise and maps key-wise, both with Equal.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	an, aNum := toFloat(a)
	bn, bNum := toFloat(b)
	switch {
	case aNum && bNum:
		return an == bn
	case aNum:
		if s, ok := b.(string); ok {
			f, ok := parseNumeric(s)
			return ok && f == an
		}
		return false
	case bNum:
		if s, ok := a.(string); ok {
			f, ok := parseNumeric(s)
			return ok && f == bn
		}
		return false
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		return equalMaps(av, asMap(b))
	case Item:
		return equalMaps(av, asMap(b))
	}
	return reflect.DeepEqual(a, b)
}

func asMap(v any) map[string]any {
	switch v := v.(type) {
	case map[string]any:
		return v
	case Item:
		return v
	}
	return nil
}

func equalMaps(a, b map[string]any) bool {
	if b == nil || len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
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
