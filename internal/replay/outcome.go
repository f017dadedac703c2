package replay

import "github.com/roach88/rewind/internal/runtime"

// Outcome is the status every replay step returns to the driver. Aborts are
// ordinary values here, not errors: they stop the driver cleanly.
type Outcome interface {
	outcome()
}

// Continue means the step finished and replay may go on.
type Continue struct{}

// AbortEndOfLog means the host exit event was replayed.
type AbortEndOfLog struct {
	ExitCode int32
}

// AbortUncaughtException means a root call threw and the debugger asked to
// stop there. Location is the last source location the call executed.
type AbortUncaughtException struct {
	Location runtime.SourceLocation
	Message  string
}

func (Continue) outcome() {}
func (AbortEndOfLog) outcome() {}
func (AbortUncaughtException) outcome() {}

// IsAbort reports whether o stops the driver.
func IsAbort(o Outcome) bool {
	_, ok := o.(Continue)
	return !ok
}

// Debugger is the stepping state a replay driver may carry. The session
// consults it when a root call throws and resets it on every abort.
type Debugger interface {
	// InterceptUncaught reports whether an exception escaping a root call
	// should stop replay at loc.
	InterceptUncaught(loc runtime.SourceLocation, thrown runtime.Value) bool
	// Reset clears any stepping state.
	Reset()
}

// BreakOnUncaught is a Debugger that stops on every uncaught exception.
type BreakOnUncaught struct {
	Hits []runtime.SourceLocation
}

func (b *BreakOnUncaught) InterceptUncaught(loc runtime.SourceLocation, _ runtime.Value) bool {
	b.Hits = append(b.Hits, loc)
	return true
}

func (b *BreakOnUncaught) Reset() {}
