// Package store archives recorded sessions in SQLite.
//
// A session is stored as three tables:
//   - sessions: id (UUIDv7 text), label, log format version, entry count
//   - entries: one row per log entry, the entry's binary encoding as payload
//   - script_bodies: script sources written out of line during save
//
// Entries are keyed by (session_id, seq). seq is the entry's index in the
// log, so all reads use ORDER BY seq ASC and a re-run save is a no-op
// (ON CONFLICT DO NOTHING).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// *Store satisfies replay.Archive.
package store
