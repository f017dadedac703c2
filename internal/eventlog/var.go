package eventlog

import (
	"fmt"
	"math"
	"strconv"
)

// LogTag stands in for a heap reference in the log. Tags are assigned at
// record time and resolved against the replay-time object graph, so a log
// never holds an address.
type LogTag uint64

// NoTag is the zero tag; it never names an object.
const NoTag LogTag = 0

func (t LogTag) String() string { return "*" + strconv.FormatUint(uint64(t), 10) }

// VarKind discriminates a Var.
type VarKind uint8

const (
	VarUndefined VarKind = iota
	VarNull
	VarBool
	VarNumber
	VarString
	VarObject
	// VarHole marks an absent array element inside a snapshot.
	VarHole
)

var varKindNames = [...]string{
	VarUndefined: "undefined",
	VarNull:      "null",
	VarBool:      "bool",
	VarNumber:    "number",
	VarString:    "string",
	VarObject:    "object",
	VarHole:      "hole",
}

func (k VarKind) String() string {
	if int(k) < len(varKindNames) {
		return varKindNames[k]
	}
	return fmt.Sprintf("VarKind(%d)", uint8(k))
}

// ParseVarKind maps a name written by VarKind.String back to the kind.
func ParseVarKind(name string) (VarKind, bool) {
	for k, n := range varKindNames {
		if n == name {
			return VarKind(k), true
		}
	}
	return 0, false
}

// Var is a recorded script value. Primitives are stored by value and heap
// references by tag.
type Var struct {
	Kind VarKind
	Bool bool
	Num  float64
	Str  string
	Tag  LogTag
}

func UndefinedVar() Var { return Var{Kind: VarUndefined} }
func NullVar() Var { return Var{Kind: VarNull} }
func HoleVar() Var { return Var{Kind: VarHole} }
func BoolVar(b bool) Var { return Var{Kind: VarBool, Bool: b} }
func NumberVar(f float64) Var { return Var{Kind: VarNumber, Num: f} }
func StringVar(s string) Var { return Var{Kind: VarString, Str: s} }
func ObjectVar(tag LogTag) Var { return Var{Kind: VarObject, Tag: tag} }

// IsObject reports whether v refers to a tagged heap value.
func (v Var) IsObject() bool { return v.Kind == VarObject }

// Identical compares two vars bit for bit: NaN matches NaN and -0 does not
// match +0.
func (v Var) Identical(o Var) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case VarBool:
		return v.Bool == o.Bool
	case VarNumber:
		if math.IsNaN(v.Num) && math.IsNaN(o.Num) {
			return true
		}
		return math.Float64bits(v.Num) == math.Float64bits(o.Num)
	case VarString:
		return v.Str == o.Str
	case VarObject:
		return v.Tag == o.Tag
	}
	return true
}

func (v Var) String() string {
	switch v.Kind {
	case VarBool:
		return strconv.FormatBool(v.Bool)
	case VarNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case VarString:
		return strconv.Quote(v.Str)
	case VarObject:
		return v.Tag.String()
	}
	return v.Kind.String()
}

// KnownObjects are the tags a script context's well-known values were
// given when the context was created.
type KnownObjects struct {
	Global    LogTag
	Undefined LogTag
	Null      LogTag
	True      LogTag
	False     LogTag
}

// Tags lists the known tags in a fixed order.
func (k KnownObjects) Tags() [5]LogTag {
	return [5]LogTag{k.Global, k.Undefined, k.Null, k.True, k.False}
}
