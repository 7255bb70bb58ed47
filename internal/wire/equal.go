package wire

import (
	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// AnswersEqual compares two answers the way a reconcile does: array answers
// (multiselect, geo) element by element, scalars by value. Numbers compare
// by value regardless of their Go type, so a locally typed 3 matches the
// server's decoded 3.0.
func AnswersEqual(a, b any) bool {
	return cmp.Equal(normalize(a), normalize(b))
}

// ChoicesEqual reports whether two choice lists are deeply equal. A nil list
// and an empty list are equal.
func ChoicesEqual(a, b []any) bool {
	return cmp.Equal(normalize(a), normalize(b), cmpopts.EquateEmpty())
}

// Clone returns a deep copy of an answer so a snapshot held as a pending
// answer cannot be mutated through the live value.
func Clone(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = Clone(e)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	case []int:
		out := make([]int, len(val))
		copy(out, val)
		return out
	case []float64:
		out := make([]float64, len(val))
		copy(out, val)
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = Clone(e)
		}
		return out
	}
	return v
}

// normalize maps Go values onto the shapes a JSON decoder produces: numbers
// become float64, typed slices become []any.
func normalize(v any) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return string(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = e
		}
		return out
	case []int:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = float64(e)
		}
		return out
	case []float64:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = e
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalize(e)
		}
		return out
	}
	return v
}
