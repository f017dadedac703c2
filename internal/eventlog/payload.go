package eventlog

import "github.com/roach88/rewind/internal/slab"

// Payload is the closed set of per-kind records an Entry carries.
type Payload interface {
	accepts(k EventKind) bool
}

// SnapObject is one object captured by a snapshot. ID is local to the
// snapshot; Tag is the object's session tag, or NoTag when the object was
// only reachable through other objects.
type SnapObject struct {
	ID    LogTag
	Tag   LogTag
	Class string
	// Intrinsic names a context intrinsic such as "%Array.prototype%".
	// Intrinsics are referenced, not captured: only ID and Tag are set.
	Intrinsic string
	// Proto is "null" for an object without a prototype; otherwise
	// ProtoRef holds the prototype's snapshot-local ID.
	Proto    string
	ProtoRef LogTag

	Extensible bool
	Props      []SnapProp

	// Arrays.
	Length   uint32
	Elements []Var

	// Function is set for callable objects. External marks host-backed
	// objects: external functions, or objects from CreateExternalObject.
	// Script is the URI of the script a parsed script function runs.
	Function string
	External bool
	Script   string
}

// SnapProp is a captured data property. Object values inside a snapshot use
// snapshot-local IDs.
type SnapProp struct {
	Name         string
	Value        Var
	Writable     bool
	Enumerable   bool
	Configurable bool
}

// SnapshotData is the state of one script context at RestoreTime.
type SnapshotData struct {
	RestoreTime int64
	ContextID   int64
	Known       KnownObjects
	Objects     []SnapObject
	NextTag     LogTag

	RandomSeeded bool
	RandomState  [2]uint64

	// Callbacks maps registered callback ids to the snapshot-local id of
	// their function.
	Callbacks []SnapCallback
	Pending   Var
}

type SnapCallback struct {
	ID       int64
	Function LogTag
}

// Snapshot is an explicit snapshot entry.
type Snapshot struct {
	Data *SnapshotData
}

type RandomSeed struct {
	Seed0, Seed1 uint64
}

type Double struct {
	Value float64
}

type String struct {
	Value string
	Ref   slab.Ref
}

// CallbackOp registers or cancels a host callback.
type CallbackOp struct {
	Register bool
	ID       int64
	Function Var
	// CreatedBy is the root call time during which the operation happened,
	// or -1 outside any call.
	CreatedBy int64
}

// ExternalCall is a call from script into a host external function. The
// host's nested calls back into script follow it in the log up to
// LastNestedEventTime.
type ExternalCall struct {
	RootDepth           int32
	Function            Var
	Args                []Var
	ArgsRef             slab.Ref
	Result              Var
	Thrown              bool
	LastNestedEventTime int64
}

type CreateScriptContext struct {
	ContextID int64
	Known     KnownObjects
}

// SetActiveScriptContext selects the context later actions run in;
// ContextID 0 clears it.
type SetActiveScriptContext struct {
	ContextID int64
}

type DeadScriptContext struct {
	ContextID int64
	Known     KnownObjects
}

type HostExitProcess struct {
	ExitCode int32
}

type AllocateObject struct {
	Result LogTag
}

type AllocateExternalObject struct {
	Result LogTag
}

type AllocateArray struct {
	Length uint32
	Result LogTag
}

type AllocateFunction struct {
	Name    string
	NameRef slab.Ref
	Result  LogTag
}

type GetAndClearException struct {
	Result Var
}

type SetException struct {
	Value Var
}

type GetProperty struct {
	Object  Var
	Name    string
	NameRef slab.Ref
	Result  Var
}

type SetProperty struct {
	Object  Var
	Name    string
	NameRef slab.Ref
	Value   Var
}

type GetIndex struct {
	Object Var
	Index  Var
	Result Var
}

type SetIndex struct {
	Object Var
	Index  Var
	Value  Var
}

// Convert serves KindConvertToNumber, KindConvertToBoolean and
// KindConvertToString.
type Convert struct {
	Value  Var
	Result Var
}

type Equals struct {
	Left   Var
	Right  Var
	Strict bool
	Result bool
}

// CodeParse loads a script. The source text is stored out of line under
// BodyCounter.
type CodeParse struct {
	ContextID   int64
	URI         string
	Source      string
	SourceRef   slab.Ref
	BodyCounter uint64
	Result      LogTag
}

// CallInfo is the additional record kept for every function call.
type CallInfo struct {
	CallEventTime             int64
	TopLevelCallbackEventTime int64
	LastNestedEventTime       int64
	// LastSnapshotTime is the restore time of the nearest earlier snapshot,
	// or -1.
	LastSnapshotTime int64
	// Snapshot is a just-in-time snapshot taken before a root call.
	Snapshot *SnapshotData

	// Replay-only state.
	LastLocation string
	ExecRef      slab.Ref
}

// CallExistingFunction records a call through the embedding API. Args[0]
// is the callee and Args[1] the receiver; the call arguments follow.
type CallExistingFunction struct {
	CallbackDepth int32
	Args          []Var
	ArgsRef       slab.Ref
	Result        Var
	Thrown        bool
	Info          *CallInfo
	InfoRef       slab.Ref
}

// Callee returns the recorded function.
func (c *CallExistingFunction) Callee() Var { return c.Args[0] }

// This returns the recorded receiver.
func (c *CallExistingFunction) This() Var { return c.Args[1] }

// CallArgs returns the recorded call arguments.
func (c *CallExistingFunction) CallArgs() []Var { return c.Args[2:] }

// ConstructCall records new applied through the embedding API. Args[0] is
// the constructor.
type ConstructCall struct {
	Args    []Var
	ArgsRef slab.Ref
	Result  Var
	Thrown  bool
}

func (*Snapshot) accepts(k EventKind) bool { return k == KindSnapshot }
func (*RandomSeed) accepts(k EventKind) bool { return k == KindRandomSeed }
func (*Double) accepts(k EventKind) bool { return k == KindDouble }
func (*String) accepts(k EventKind) bool { return k == KindString }
func (*CallbackOp) accepts(k EventKind) bool { return k == KindCallbackOp }
func (*ExternalCall) accepts(k EventKind) bool { return k == KindExternalCall }
func (*CreateScriptContext) accepts(k EventKind) bool { return k == KindCreateScriptContext }
func (*SetActiveScriptContext) accepts(k EventKind) bool { return k == KindSetActiveScriptContext }
func (*DeadScriptContext) accepts(k EventKind) bool { return k == KindDeadScriptContext }
func (*HostExitProcess) accepts(k EventKind) bool { return k == KindHostExitProcess }
func (*AllocateObject) accepts(k EventKind) bool { return k == KindAllocateObject }
func (*AllocateExternalObject) accepts(k EventKind) bool { return k == KindAllocateExternalObject }
func (*AllocateArray) accepts(k EventKind) bool { return k == KindAllocateArray }
func (*AllocateFunction) accepts(k EventKind) bool { return k == KindAllocateFunction }
func (*GetAndClearException) accepts(k EventKind) bool { return k == KindGetAndClearException }
func (*SetException) accepts(k EventKind) bool { return k == KindSetException }
func (*GetProperty) accepts(k EventKind) bool { return k == KindGetProperty }
func (*SetProperty) accepts(k EventKind) bool { return k == KindSetProperty }
func (*GetIndex) accepts(k EventKind) bool { return k == KindGetIndex }
func (*SetIndex) accepts(k EventKind) bool { return k == KindSetIndex }
func (*Equals) accepts(k EventKind) bool { return k == KindEquals }
func (*CodeParse) accepts(k EventKind) bool { return k == KindCodeParse }
func (*CallExistingFunction) accepts(k EventKind) bool { return k == KindCallExistingFunction }
func (*ConstructCall) accepts(k EventKind) bool { return k == KindConstructCall }

func (*Convert) accepts(k EventKind) bool {
	return k == KindConvertToNumber || k == KindConvertToBoolean || k == KindConvertToString
}
