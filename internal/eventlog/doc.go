// Package eventlog defines the records of a time-travel recording.
//
// A recording is a sequence of Entry values, each stamped by a Clock with a
// strictly increasing time. An entry's EventKind selects exactly one payload
// type; PayloadAs enforces the pairing so a kind and its payload can never
// diverge.
//
// Heap values never appear in the log directly. They are written as LogTag
// references inside a Var and resolved against the live object graph when
// the log is replayed.
//
// ROOT CALLS:
// A CallExistingFunction entry with CallbackDepth 0 is a root call, made
// from the host event loop. Root calls and snapshots are the positions a
// debugger can seek to; AccessTimeInRootCallOrSnapshot resolves them.
//
// Log keeps entries in fixed-size blocks so that old history can be evicted
// a block at a time. Evicted entries are passed to an unload function that
// returns their out-of-line memory to the slab allocator.
package eventlog
