package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations upgrade an archive one user_version at a time. Entry i takes
// the schema from version i to i+1; schema.sql itself is version 0.
var migrations = []func(*sql.Tx) error{
	// 1: seeks look entries up by (session, time).
	func(tx *sql.Tx) error {
		_, err := tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_session_time
			ON entries(session_id, time)`)
		return err
	},
	// 2: queries filter entries by kind across sessions.
	func(tx *sql.Tx) error {
		_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_entries_kind
			ON entries(kind, session_id, seq)`)
		return err
	},
}

// currentSchemaVersion is the user_version of a fully migrated archive.
var currentSchemaVersion = len(migrations)

// Options tune how an archive is opened.
type Options struct {
	// ReadOnly opens an existing archive without creating or migrating it.
	ReadOnly bool
	// BusyTimeout bounds waits on a locked database. Zero means 5s.
	BusyTimeout time.Duration
}

// Store archives recorded sessions in one SQLite file. Sessions are
// written by a single connection; WAL lets readers in other processes
// inspect an archive while a recording is saved.
type Store struct {
	db       *sql.DB
	readOnly bool
}

// Open opens the archive at path for writing, creating and migrating it
// as needed. Opening an up-to-date archive again changes nothing.
func Open(path string) (*Store, error) {
	return OpenWith(path, Options{})
}

// OpenWith opens the archive at path with opts. A read-only archive must
// already exist at the current schema version.
func OpenWith(path string, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path, opts))
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if opts.ReadOnly {
		err = checkVersion(db)
	} else {
		err = applySchema(db)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	return &Store{db: db, readOnly: opts.ReadOnly}, nil
}

// dsn carries the connection settings as go-sqlite3 parameters so every
// pooled connection gets them, not just the first.
func dsn(path string, opts Options) string {
	timeout := opts.BusyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	q := url.Values{}
	q.Set("_busy_timeout", strconv.FormatInt(timeout.Milliseconds(), 10))
	q.Set("_foreign_keys", "on")
	if opts.ReadOnly {
		q.Set("mode", "ro")
	} else {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}
	return "file:" + path + "?" + q.Encode()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ReadOnly reports whether the archive was opened read-only.
func (s *Store) ReadOnly() bool { return s.readOnly }

// SchemaVersion returns the archive's user_version.
func (s *Store) SchemaVersion() (int, error) {
	return userVersion(s.db)
}

func userVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return version, nil
}

func checkVersion(db *sql.DB) error {
	version, err := userVersion(db)
	if err != nil {
		return err
	}
	if version != currentSchemaVersion {
		return fmt.Errorf("schema version %d, want %d (open it writable to migrate)", version, currentSchemaVersion)
	}
	return nil
}

func applySchema(db *sql.DB) error {
	version, err := userVersion(db)
	if err != nil {
		return err
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	for v := version; v < currentSchemaVersion; v++ {
		if err := migrate(db, v+1); err != nil {
			return err
		}
	}
	return nil
}

// migrate applies migrations[to-1] and records the new version in the
// same transaction.
func migrate(db *sql.DB, to int) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate to v%d: %w", to, err)
	}
	defer tx.Rollback()
	if err := migrations[to-1](tx); err != nil {
		return fmt.Errorf("migrate to v%d: %w", to, err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", to)); err != nil {
		return fmt.Errorf("migrate to v%d: %w", to, err)
	}
	return tx.Commit()
}

// pragma reads the current value of a pragma.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}
