package runtime

import (
	"strconv"
)

const (
	// MaxArrayLength is the largest length a dense array can report.
	MaxArrayLength = 1<<32 - 1

	// MaxArrayIndex is the largest integer that is an array index.
	// 2^32-1 itself is an ordinary property name.
	MaxArrayIndex = MaxArrayLength - 1
)

// PropertyKey names a property: either a string or a symbol.
// Comparable, so it can key maps directly.
type PropertyKey struct {
	name string
	sym  *Symbol
}

// Key returns a string property key.
func Key(name string) PropertyKey {
	return PropertyKey{name: name}
}

// SymbolKey returns a symbol property key.
func SymbolKey(s *Symbol) PropertyKey {
	return PropertyKey{sym: s}
}

// IndexKey returns the canonical key for an array index.
func IndexKey(i uint32) PropertyKey {
	return PropertyKey{name: strconv.FormatUint(uint64(i), 10)}
}

// IndexKey64 returns the canonical key for an integer that may exceed the
// array index range.
func IndexKey64(i int64) PropertyKey {
	return PropertyKey{name: strconv.FormatInt(i, 10)}
}

// IsSymbol reports whether k is a symbol key.
func (k PropertyKey) IsSymbol() bool { return k.sym != nil }

// Name returns the string name; empty for symbol keys.
func (k PropertyKey) Name() string { return k.name }

// Symbol returns the symbol; nil for string keys.
func (k PropertyKey) Symbol() *Symbol { return k.sym }

// String renders the key for diagnostics.
func (k PropertyKey) String() string {
	if k.sym != nil {
		return "[" + k.sym.Description + "]"
	}
	return k.name
}

// Value returns the key as a script value.
func (k PropertyKey) Value() Value {
	if k.sym != nil {
		return k.sym
	}
	return String(k.name)
}

// ArrayIndex reports whether k is a canonical array index (< 2^32-1).
func (k PropertyKey) ArrayIndex() (uint32, bool) {
	if k.sym != nil {
		return 0, false
	}
	return ParseArrayIndex(k.name)
}

// ParseArrayIndex parses a canonical numeric string in the array index
// range. Leading zeros, signs and anything at or above 2^32-1 are rejected.
func ParseArrayIndex(s string) (uint32, bool) {
	if len(s) == 0 || len(s) > 10 {
		return 0, false
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, false
	}
	var n uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
	}
	if n > MaxArrayIndex {
		return 0, false
	}
	return uint32(n), true
}

// ToPropertyKey converts v to a property key.
func ToPropertyKey(ctx *Context, v Value) (PropertyKey, error) {
	switch val := v.(type) {
	case *Symbol:
		return SymbolKey(val), nil
	case String:
		return Key(string(val)), nil
	case *Object:
		prim, err := ToPrimitive(ctx, val, "string")
		if err != nil {
			return PropertyKey{}, err
		}
		return ToPropertyKey(ctx, prim)
	default:
		s, err := ToString(ctx, v)
		if err != nil {
			return PropertyKey{}, err
		}
		return Key(s), nil
	}
}

// Property is a data or accessor property.
type Property struct {
	Value        Value
	Getter       *Object
	Setter       *Object
	Accessor     bool
	Writable     bool
	Enumerable   bool
	Configurable bool
}

// DataProperty returns a writable, enumerable, configurable data property.
func DataProperty(v Value) Property {
	return Property{Value: v, Writable: true, Enumerable: true, Configurable: true}
}

// AccessorProperty returns an enumerable, configurable accessor property.
func AccessorProperty(getter, setter *Object) Property {
	return Property{Getter: getter, Setter: setter, Accessor: true, Enumerable: true, Configurable: true}
}
