package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/rewind/internal/array"
	"github.com/roach88/rewind/internal/replay"
	"github.com/roach88/rewind/internal/runtime"
)

// varRefs lists the "$name" references in vals, recursing into lists and maps.
func varRefs(vals []any) []string {
	var out []string
	for _, v := range vals {
		switch x := v.(type) {
		case string:
			if name, ok := strings.CutPrefix(x, "$"); ok {
				out = append(out, name)
			}
		case []any:
			out = append(out, varRefs(x)...)
		case map[string]any:
			for _, k := range sortedKeys(x) {
				out = append(out, varRefs([]any{x[k]})...)
			}
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// toScript builds a script value through the recording session so any
// allocation lands in the log.
func toScript(s *replay.Session, vars map[string]runtime.Value, v any) (runtime.Value, error) {
	switch x := v.(type) {
	case nil:
		return runtime.Null, nil
	case bool:
		return runtime.Bool(x), nil
	case int:
		return runtime.Number(float64(x)), nil
	case float64:
		return runtime.Number(x), nil
	case string:
		if name, ok := strings.CutPrefix(x, "$"); ok {
			bound, ok := vars[name]
			if !ok {
				return nil, fmt.Errorf("unbound $%s", name)
			}
			return bound, nil
		}
		return runtime.String(x), nil
	case []any:
		arr, err := s.AllocateArray(uint32(len(x)))
		if err != nil {
			return nil, err
		}
		for i, elem := range x {
			ev, err := toScript(s, vars, elem)
			if err != nil {
				return nil, err
			}
			if err := s.SetIndex(arr, runtime.Number(float64(i)), ev); err != nil {
				return nil, err
			}
		}
		return arr, nil
	case map[string]any:
		obj, err := s.AllocateObject()
		if err != nil {
			return nil, err
		}
		for _, k := range sortedKeys(x) {
			pv, err := toScript(s, vars, x[k])
			if err != nil {
				return nil, err
			}
			if err := s.SetProperty(obj, k, pv); err != nil {
				return nil, err
			}
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}
}

// fromScript converts a result for comparison: numbers become float64,
// arrays []any, holes and undefined nil. Reads go straight to the object
// and are not recorded.
func fromScript(v runtime.Value) any {
	switch x := v.(type) {
	case runtime.Number:
		return float64(x)
	case runtime.String:
		return string(x)
	case runtime.Bool:
		return bool(x)
	case *runtime.Object:
		if arr, ok := array.FromObject(x); ok {
			vals := arr.Values()
			out := make([]any, len(vals))
			for i, e := range vals {
				out[i] = fromScript(e)
			}
			return out
		}
		return fmt.Sprintf("[object %s]", x.Class())
	default:
		return nil
	}
}

// normalize maps YAML-decoded expectations onto fromScript's shapes.
func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

func sameValue(want, got any) bool {
	return reflect.DeepEqual(normalize(want), got)
}
