package eventlog

import "fmt"

// EventKind tags an Entry and fixes the type of its payload.
type EventKind uint8

const (
	KindInvalid EventKind = iota

	// Snapshot and non-deterministic host inputs.
	KindSnapshot
	KindRandomSeed
	KindDouble
	KindString
	KindCallbackOp
	KindExternalCall

	// Script context lifecycle.
	KindCreateScriptContext
	KindSetActiveScriptContext
	KindDeadScriptContext
	KindHostExitProcess

	// Embedding API actions.
	KindAllocateObject
	KindAllocateExternalObject
	KindAllocateArray
	KindAllocateFunction
	KindGetAndClearException
	KindSetException
	KindGetProperty
	KindSetProperty
	KindGetIndex
	KindSetIndex
	KindConvertToNumber
	KindConvertToBoolean
	KindConvertToString
	KindEquals
	KindCodeParse
	KindCallExistingFunction
	KindConstructCall

	kindCount
)

var kindNames = [kindCount]string{
	KindInvalid:                "Invalid",
	KindSnapshot:               "Snapshot",
	KindRandomSeed:             "RandomSeed",
	KindDouble:                 "Double",
	KindString:                 "String",
	KindCallbackOp:             "CallbackOp",
	KindExternalCall:           "ExternalCall",
	KindCreateScriptContext:    "CreateScriptContext",
	KindSetActiveScriptContext: "SetActiveScriptContext",
	KindDeadScriptContext:      "DeadScriptContext",
	KindHostExitProcess:        "HostExitProcess",
	KindAllocateObject:         "AllocateObject",
	KindAllocateExternalObject: "AllocateExternalObject",
	KindAllocateArray:          "AllocateArray",
	KindAllocateFunction:       "AllocateFunction",
	KindGetAndClearException:   "GetAndClearException",
	KindSetException:           "SetException",
	KindGetProperty:            "GetProperty",
	KindSetProperty:            "SetProperty",
	KindGetIndex:               "GetIndex",
	KindSetIndex:               "SetIndex",
	KindConvertToNumber:        "ConvertToNumber",
	KindConvertToBoolean:       "ConvertToBoolean",
	KindConvertToString:        "ConvertToString",
	KindEquals:                 "Equals",
	KindCodeParse:              "CodeParse",
	KindCallExistingFunction:   "CallExistingFunction",
	KindConstructCall:          "ConstructCall",
}

// Kinds returns every valid kind in declaration order.
func Kinds() []EventKind {
	out := make([]EventKind, 0, kindCount-1)
	for k := KindInvalid + 1; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// Valid reports whether k is a declared kind other than KindInvalid.
func (k EventKind) Valid() bool {
	return k > KindInvalid && k < kindCount
}

// String returns the stable name used in log files.
func (k EventKind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

// ParseKind maps a stable name back to its kind.
func ParseKind(name string) (EventKind, bool) {
	for k := KindInvalid + 1; k < kindCount; k++ {
		if kindNames[k] == name {
			return k, true
		}
	}
	return KindInvalid, false
}
