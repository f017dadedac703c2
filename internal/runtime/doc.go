// Package runtime provides the minimal script object model that the array
// engine and the replay engine are layered on.
//
// It is deliberately narrow: values, property storage with prototype
// lookup, native functions, script contexts, and the conversions the array
// algorithms depend on. Arrays plug into the object model through the
// Exotic hook; nothing in this package knows about segment storage.
//
// Key constraints:
//   - Values are a sealed interface; Missing is an internal hole marker and
//     never reaches script code.
//   - Script exceptions travel as *Exception errors, never as panics.
//   - Non-deterministic inputs go through the Context's Hooks so a replay
//     session can record or supply them.
package runtime
