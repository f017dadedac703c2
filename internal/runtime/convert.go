package runtime

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

// MaxSafeInteger is 2^53-1, the upper bound used by ToLength.
const MaxSafeInteger = 1<<53 - 1

// ToBoolean converts v per the language truthiness rules.
func ToBoolean(v Value) bool {
	switch val := v.(type) {
	case undefinedValue, nullValue, missingValue:
		return false
	case Bool:
		return bool(val)
	case Number:
		f := float64(val)
		return f != 0 && !math.IsNaN(f)
	case String:
		return len(val) > 0
	default:
		return true
	}
}

// ToNumber converts v to a float64. Objects go through ToPrimitive with
// the "number" hint, which may call script code.
func ToNumber(ctx *Context, v Value) (float64, error) {
	switch val := v.(type) {
	case undefinedValue, missingValue:
		return math.NaN(), nil
	case nullValue:
		return 0, nil
	case Bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case Number:
		return float64(val), nil
	case String:
		return stringToNumber(string(val)), nil
	case *Symbol:
		return 0, ctx.NewTypeError("Cannot convert a Symbol value to a number")
	case *Object:
		prim, err := ToPrimitive(ctx, val, "number")
		if err != nil {
			return 0, err
		}
		return ToNumber(ctx, prim)
	default:
		return math.NaN(), nil
	}
}

func stringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		}
	}
	// ParseFloat accepts forms ("inf", "0x1p3", "1_000") the language does not.
	for _, r := range s {
		if !(r >= '0' && r <= '9') && r != '.' && r != 'e' && r != 'E' && r != '+' && r != '-' {
			return math.NaN()
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// ToString converts v to a string. Objects go through ToPrimitive with the
// "string" hint.
func ToString(ctx *Context, v Value) (string, error) {
	switch val := v.(type) {
	case undefinedValue, missingValue:
		return "undefined", nil
	case nullValue:
		return "null", nil
	case Bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case Number:
		return NumberToString(float64(val)), nil
	case String:
		return string(val), nil
	case *Symbol:
		return "", ctx.NewTypeError("Cannot convert a Symbol value to a string")
	case *Object:
		prim, err := ToPrimitive(ctx, val, "string")
		if err != nil {
			return "", err
		}
		return ToString(ctx, prim)
	default:
		return "", nil
	}
}

// NumberToString formats f the way the language prints numbers: integers
// without a fraction, decimal notation in [1e-6, 1e21), exponent otherwise.
func NumberToString(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case f == 0:
		return "0"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign := exp[0]
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "e" + string(sign) + digits
}

// ToPrimitive converts an object to a primitive by calling valueOf and
// toString in hint order.
func ToPrimitive(ctx *Context, o *Object, hint string) (Value, error) {
	order := []string{"valueOf", "toString"}
	if hint == "string" {
		order = []string{"toString", "valueOf"}
	}
	for _, name := range order {
		method, err := o.Get(ctx, Key(name))
		if err != nil {
			return nil, err
		}
		if !IsCallable(method) {
			continue
		}
		result, err := Call(ctx, method, o, nil)
		if err != nil {
			return nil, err
		}
		if _, isObj := result.(*Object); !isObj {
			return result, nil
		}
	}
	return nil, ctx.NewTypeError("Cannot convert object to primitive value")
}

// ToIntegerOrInfinity converts v to an integral float64; NaN becomes 0 and
// -0 becomes +0.
func ToIntegerOrInfinity(ctx *Context, v Value) (float64, error) {
	f, err := ToNumber(ctx, v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || f == 0 {
		return 0, nil
	}
	if math.IsInf(f, 0) {
		return f, nil
	}
	return math.Trunc(f), nil
}

// ToUint32 applies the modulo-2^32 integer conversion to f.
func ToUint32(f float64) uint32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	i := math.Trunc(f)
	m := math.Mod(i, 1<<32)
	if m < 0 {
		m += 1 << 32
	}
	return uint32(m)
}

// ToLength clamps v to [0, 2^53-1].
func ToLength(ctx *Context, v Value) (int64, error) {
	f, err := ToIntegerOrInfinity(ctx, v)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, nil
	}
	if f > MaxSafeInteger {
		return MaxSafeInteger, nil
	}
	return int64(f), nil
}

// ToObject converts v to an object, wrapping primitives.
func ToObject(ctx *Context, v Value) (*Object, error) {
	switch val := v.(type) {
	case *Object:
		return val, nil
	case undefinedValue, nullValue, missingValue:
		return nil, ctx.NewTypeError("Cannot convert undefined or null to object")
	case String:
		o := ctx.NewObject()
		o.class = "String"
		o.primitive = val
		units := utf16.Encode([]rune(string(val)))
		for i, u := range units {
			o.defineOwn(IndexKey(uint32(i)), &Property{Value: String(string(utf16.Decode([]uint16{u}))), Enumerable: true})
		}
		o.defineOwn(Key("length"), &Property{Value: Number(float64(len(units)))})
		return o, nil
	default:
		o := ctx.NewObject()
		o.class = "Primitive"
		o.primitive = v
		return o, nil
	}
}

// CompareStrings orders strings by UTF-16 code units, the order used for
// default sort comparisons. Go's native string order compares UTF-8 bytes,
// which differs for supplementary-plane characters.
func CompareStrings(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := len(a16)
	if len(b16) < minLen {
		minLen = len(b16)
	}
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	if len(a16) < len(b16) {
		return -1
	}
	if len(a16) > len(b16) {
		return 1
	}
	return 0
}
