package runtime

import "math"

// Value is a sealed interface over script values.
// Only Undefined, Null, Bool, Number, String, *Symbol, *Object and the
// internal Missing marker implement it.
type Value interface {
	jsValue() // Sealed - only these types implement it
}

type undefinedValue struct{}

func (undefinedValue) jsValue() {}

type nullValue struct{}

func (nullValue) jsValue() {}

// missingValue marks a hole inside dense storage. It is never a legal
// script value, so it can double as the generic representation's sentinel.
type missingValue struct{}

func (missingValue) jsValue() {}

var (
	// Undefined is the undefined value.
	Undefined Value = undefinedValue{}

	// Null is the null value.
	Null Value = nullValue{}

	// Missing is the hole marker used by array storage.
	Missing Value = missingValue{}
)

// Bool is a boolean value.
type Bool bool

func (Bool) jsValue() {}

// Number is an IEEE 754 double value.
type Number float64

func (Number) jsValue() {}

// String is a string value.
type String string

func (String) jsValue() {}

// Symbol is a unique property key value.
type Symbol struct {
	Description string
}

func (*Symbol) jsValue() {}

// Well-known symbols, shared by every context.
var (
	SymbolSpecies            = &Symbol{Description: "Symbol.species"}
	SymbolIsConcatSpreadable = &Symbol{Description: "Symbol.isConcatSpreadable"}
)

// Int returns a Number for an integer.
func Int(i int64) Value {
	return Number(float64(i))
}

// IsUndefined reports whether v is undefined.
func IsUndefined(v Value) bool {
	_, ok := v.(undefinedValue)
	return ok
}

// IsNull reports whether v is null.
func IsNull(v Value) bool {
	_, ok := v.(nullValue)
	return ok
}

// IsNullish reports whether v is undefined or null.
func IsNullish(v Value) bool {
	return IsUndefined(v) || IsNull(v)
}

// IsMissing reports whether v is the internal hole marker.
func IsMissing(v Value) bool {
	_, ok := v.(missingValue)
	return ok
}

// IsNaN reports whether v is a NaN number.
func IsNaN(v Value) bool {
	n, ok := v.(Number)
	return ok && math.IsNaN(float64(n))
}

// AsObject returns v as an object if it is one.
func AsObject(v Value) (*Object, bool) {
	o, ok := v.(*Object)
	return o, ok && o != nil
}

// TypeOf returns the typeof string for v.
func TypeOf(v Value) string {
	switch val := v.(type) {
	case undefinedValue, missingValue:
		return "undefined"
	case nullValue:
		return "object"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case *Symbol:
		return "symbol"
	case *Object:
		if val.IsCallable() {
			return "function"
		}
		return "object"
	default:
		return "undefined"
	}
}
