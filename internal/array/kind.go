package array

import (
	"math"

	"github.com/roach88/rewind/internal/runtime"
	"github.com/roach88/rewind/internal/sparse"
)

// Kind is an array's element representation. Kinds only widen:
// Int -> Float -> Var.
type Kind int

const (
	// KindInt stores native int32 elements.
	KindInt Kind = iota
	// KindFloat stores native float64 elements.
	KindFloat
	// KindVar stores boxed script values.
	KindVar
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindVar:
		return "var"
	}
	return "unknown"
}

// codec ties a representation's hole traits to boxing rules.
type codec[T any] struct {
	kind   Kind
	traits sparse.Traits[T]
	box    func(T) runtime.Value
	// unbox reports false when v does not fit the representation.
	unbox func(runtime.Value) (T, bool)
}

var intCodec = &codec[int32]{
	kind:   KindInt,
	traits: sparse.IntTraits,
	box:    func(v int32) runtime.Value { return runtime.Number(float64(v)) },
	unbox: func(v runtime.Value) (int32, bool) {
		n, ok := v.(runtime.Number)
		if !ok {
			return 0, false
		}
		i, fits := int32Of(float64(n))
		return i, fits
	},
}

var floatCodec = &codec[float64]{
	kind:   KindFloat,
	traits: sparse.FloatTraits,
	box:    func(v float64) runtime.Value { return runtime.Number(v) },
	unbox: func(v runtime.Value) (float64, bool) {
		n, ok := v.(runtime.Number)
		if !ok {
			return 0, false
		}
		return sparse.CanonicalFloat(float64(n)), true
	},
}

// VarTraits are the traits for boxed storage; Missing never reaches script.
var VarTraits = sparse.Traits[runtime.Value]{
	Name:      "var",
	Missing:   runtime.Missing,
	IsMissing: runtime.IsMissing,
}

var varCodec = &codec[runtime.Value]{
	kind:   KindVar,
	traits: VarTraits,
	box:    func(v runtime.Value) runtime.Value { return v },
	unbox: func(v runtime.Value) (runtime.Value, bool) {
		if v == nil || runtime.IsMissing(v) {
			return nil, false
		}
		return v, true
	},
}

// int32Of reports whether f is exactly representable in int storage: an
// integer in int32 range, not -0, and not the hole pattern.
func int32Of(f float64) (int32, bool) {
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	if f == 0 && math.Signbit(f) {
		return 0, false
	}
	i := int32(f)
	if i == sparse.IntMissing {
		return 0, false
	}
	return i, true
}

// kindFor returns the narrowest kind that can hold v.
func kindFor(v runtime.Value) Kind {
	n, ok := v.(runtime.Number)
	if !ok {
		return KindVar
	}
	if _, fits := int32Of(float64(n)); fits {
		return KindInt
	}
	return KindFloat
}
