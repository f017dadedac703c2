package runtime

import "math"

// StrictEquals implements ===. NaN is unequal to itself and -0 equals +0.
func StrictEquals(a, b Value) bool {
	switch x := a.(type) {
	case Number:
		y, ok := b.(Number)
		return ok && float64(x) == float64(y)
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case undefinedValue, missingValue:
		return IsUndefined(b) || IsMissing(b)
	case nullValue:
		return IsNull(b)
	case *Object:
		y, ok := b.(*Object)
		return ok && x == y
	case *Symbol:
		y, ok := b.(*Symbol)
		return ok && x == y
	}
	return false
}

// SameValueZero is StrictEquals except that NaN equals NaN. Used by includes.
func SameValueZero(a, b Value) bool {
	x, xok := a.(Number)
	y, yok := b.(Number)
	if xok && yok && math.IsNaN(float64(x)) && math.IsNaN(float64(y)) {
		return true
	}
	return StrictEquals(a, b)
}

// SameValue distinguishes -0 from +0 and treats NaN as equal to NaN.
func SameValue(a, b Value) bool {
	x, xok := a.(Number)
	y, yok := b.(Number)
	if xok && yok {
		fx, fy := float64(x), float64(y)
		if math.IsNaN(fx) && math.IsNaN(fy) {
			return true
		}
		if fx == 0 && fy == 0 {
			return math.Signbit(fx) == math.Signbit(fy)
		}
		return fx == fy
	}
	return StrictEquals(a, b)
}

// LooseEquals implements ==.
func LooseEquals(ctx *Context, a, b Value) (bool, error) {
	if sameType(a, b) {
		return StrictEquals(a, b), nil
	}
	if IsNullish(a) && IsNullish(b) {
		return true, nil
	}
	if IsNullish(a) || IsNullish(b) {
		return false, nil
	}
	switch x := a.(type) {
	case Number:
		if s, ok := b.(String); ok {
			return float64(x) == stringToNumber(string(s)), nil
		}
	case String:
		if n, ok := b.(Number); ok {
			return stringToNumber(string(x)) == float64(n), nil
		}
	case Bool:
		n, _ := ToNumber(ctx, x)
		return LooseEquals(ctx, Number(n), b)
	}
	if y, ok := b.(Bool); ok {
		n, _ := ToNumber(ctx, y)
		return LooseEquals(ctx, a, Number(n))
	}
	if o, ok := a.(*Object); ok {
		if _, bIsObj := b.(*Object); !bIsObj {
			prim, err := ToPrimitive(ctx, o, "default")
			if err != nil {
				return false, err
			}
			return LooseEquals(ctx, prim, b)
		}
	}
	if o, ok := b.(*Object); ok {
		prim, err := ToPrimitive(ctx, o, "default")
		if err != nil {
			return false, err
		}
		return LooseEquals(ctx, a, prim)
	}
	return false, nil
}

func sameType(a, b Value) bool {
	switch a.(type) {
	case Number:
		_, ok := b.(Number)
		return ok
	case String:
		_, ok := b.(String)
		return ok
	case Bool:
		_, ok := b.(Bool)
		return ok
	case undefinedValue:
		return IsUndefined(b)
	case nullValue:
		return IsNull(b)
	case *Object:
		_, ok := b.(*Object)
		return ok
	case *Symbol:
		_, ok := b.(*Symbol)
		return ok
	}
	return false
}
