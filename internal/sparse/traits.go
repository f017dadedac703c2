package sparse

import "math"

const (
	// IntMissingBits is the hole pattern for native int32 storage. Arrays
	// that need to store this exact integer widen to float storage first.
	IntMissingBits uint32 = 0xFFF80002

	// FloatMissingBits is the hole pattern for native float64 storage, a NaN
	// payload that canonical NaN storage never produces.
	FloatMissingBits uint64 = 0xFFF80002FFF80002
)

// IntMissing is IntMissingBits reinterpreted as a stored int32.
const IntMissing int32 = -0x7FFFE

// FloatMissing is FloatMissingBits as a stored float64.
var FloatMissing = math.Float64frombits(FloatMissingBits)

// IntTraits are the traits for native int32 storage.
var IntTraits = Traits[int32]{
	Name:      "int",
	Missing:   IntMissing,
	IsMissing: func(v int32) bool { return v == IntMissing },
}

// FloatTraits are the traits for native float64 storage. The sentinel is
// compared by bit pattern since NaN != NaN.
var FloatTraits = Traits[float64]{
	Name:      "float",
	Missing:   FloatMissing,
	IsMissing: func(v float64) bool { return math.Float64bits(v) == FloatMissingBits },
}

// CanonicalFloat maps every NaN to the single canonical NaN so a stored
// value can never collide with FloatMissing.
func CanonicalFloat(f float64) float64 {
	if f != f {
		return math.NaN()
	}
	return f
}
