package replay

import (
	"fmt"

	"github.com/roach88/rewind/internal/eventlog"
	"github.com/roach88/rewind/internal/logio"
)

// handler holds the four transitions every event kind implements. Emit
// then parse must yield an entry that executes exactly like the original.
type handler struct {
	// execute re-performs the entry's effect during replay.
	execute func(s *Session, e *eventlog.Entry) (Outcome, error)
	// emit writes the payload fields after kind and time.
	emit func(s *Session, w logio.Writer, e *eventlog.Entry) error
	// parse reads the fields emit wrote, in the same order.
	parse func(d *decoder, kind eventlog.EventKind) eventlog.Payload
	// unload releases the entry's slab memory.
	unload func(s *Session, e *eventlog.Entry)
}

// handlers is filled in init: the execute functions reach back into the
// table through nested replay.
var handlers map[eventlog.EventKind]handler

func init() {
	handlers = map[eventlog.EventKind]handler{
		eventlog.KindSnapshot:               {execSnapshot, emitSnapshot, parseSnapshot, unloadNothing},
		eventlog.KindRandomSeed:             {execHookOnly, emitRandomSeed, parseRandomSeed, unloadNothing},
		eventlog.KindDouble:                 {execHookOnly, emitDouble, parseDouble, unloadNothing},
		eventlog.KindString:                 {execHookOnly, emitString, parseString, unloadString},
		eventlog.KindCallbackOp:             {execCallbackOp, emitCallbackOp, parseCallbackOp, unloadNothing},
		eventlog.KindExternalCall:           {execHookOnly, emitExternalCall, parseExternalCall, unloadExternalCall},
		eventlog.KindCreateScriptContext:    {execCreateContext, emitCreateContext, parseCreateContext, unloadNothing},
		eventlog.KindSetActiveScriptContext: {execSetActiveContext, emitSetActiveContext, parseSetActiveContext, unloadNothing},
		eventlog.KindDeadScriptContext:      {execDeadContext, emitDeadContext, parseDeadContext, unloadNothing},
		eventlog.KindHostExitProcess:        {execHostExit, emitHostExit, parseHostExit, unloadNothing},
		eventlog.KindAllocateObject:         {execAllocateObject, emitAllocateObject, parseAllocateObject, unloadNothing},
		eventlog.KindAllocateExternalObject: {execAllocateExternal, emitAllocateExternal, parseAllocateExternal, unloadNothing},
		eventlog.KindAllocateArray:          {execAllocateArray, emitAllocateArray, parseAllocateArray, unloadNothing},
		eventlog.KindAllocateFunction:       {execAllocateFunction, emitAllocateFunction, parseAllocateFunction, unloadAllocateFunction},
		eventlog.KindGetAndClearException:   {execGetAndClearException, emitGetAndClearException, parseGetAndClearException, unloadNothing},
		eventlog.KindSetException:           {execSetException, emitSetException, parseSetException, unloadNothing},
		eventlog.KindGetProperty:            {execGetProperty, emitGetProperty, parseGetProperty, unloadGetProperty},
		eventlog.KindSetProperty:            {execSetProperty, emitSetProperty, parseSetProperty, unloadSetProperty},
		eventlog.KindGetIndex:               {execGetIndex, emitGetIndex, parseGetIndex, unloadNothing},
		eventlog.KindSetIndex:               {execSetIndex, emitSetIndex, parseSetIndex, unloadNothing},
		eventlog.KindConvertToNumber:        {execConvert, emitConvert, parseConvert, unloadNothing},
		eventlog.KindConvertToBoolean:       {execConvert, emitConvert, parseConvert, unloadNothing},
		eventlog.KindConvertToString:        {execConvert, emitConvert, parseConvert, unloadNothing},
		eventlog.KindEquals:                 {execEquals, emitEquals, parseEquals, unloadNothing},
		eventlog.KindCodeParse:              {execCodeParse, emitCodeParse, parseCodeParse, unloadCodeParse},
		eventlog.KindCallExistingFunction:   {execCall, emitCall, parseCall, unloadCall},
		eventlog.KindConstructCall:          {execConstruct, emitConstruct, parseConstruct, unloadConstruct},
	}
	for _, k := range eventlog.Kinds() {
		h, ok := handlers[k]
		if !ok || h.execute == nil || h.emit == nil || h.parse == nil || h.unload == nil {
			panic(fmt.Sprintf("replay: no complete handler for %s", k))
		}
	}
}

func handlerFor(k eventlog.EventKind) handler {
	h, ok := handlers[k]
	if !ok {
		panic(fmt.Sprintf("replay: no handler for %s", k))
	}
	return h
}

// execute dispatches one entry.
func (s *Session) execute(e *eventlog.Entry) (Outcome, error) {
	s.logger.Debug("replaying", "kind", e.Kind, "time", e.Time)
	return handlerFor(e.Kind).execute(s, e)
}

func unloadNothing(*Session, *eventlog.Entry) {}

// execHookOnly serves kinds that are only consumed from inside a call,
// through the context hooks. Reaching one at top level means the log and
// the replay have diverged.
func execHookOnly(_ *Session, e *eventlog.Entry) (Outcome, error) {
	return nil, newError(ErrCodeKindMismatch, e, "event only valid inside a call")
}
