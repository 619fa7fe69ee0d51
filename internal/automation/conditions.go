package automation

import "reflect"

// Matches reports whether every condition key is present in the context
// with a structurally equal value. Empty conditions always match.
func Matches(conditions, ctx map[string]any) bool {
	for key, want := range conditions {
		got, ok := ctx[key]
		if !ok || !equal(want, got) {
			return false
		}
	}
	return true
}

// equal compares two decoded values. Numbers compare by value whatever
// their Go type, so a JSON 7.0 equals uint(7).
func equal(a, b any) bool {
	if isNumber(a) || isNumber(b) {
		fa, okA := toFloat(a)
		fb, okB := toFloat(b)
		return okA && okB && fa == fb
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case map[string]any:
		bv, ok := asMap(b)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, present := bv[k]
			if !present || !equal(v, other) {
				return false
			}
		}
		return true
	case Context:
		return equal(map[string]any(av), b)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Context:
		return m, true
	}
	return nil, false
}
