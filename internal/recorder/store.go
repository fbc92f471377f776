package recorder

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in PRAGMA user_version.
const schemaVersion = 1

// ErrNotRecorder is returned by OpenReadOnly for a SQLite file that holds
// no flight recorder schema.
var ErrNotRecorder = errors.New("not a flight recorder database")

// Store is the durable side of the flight recorder, one SQLite file per
// bench. A Store opened with Open is the single writer of the file;
// OpenReadOnly stores may read it at the same time (WAL).
type Store struct {
	db       *sql.DB
	readOnly bool
}

// writerParams are go-sqlite3 DSN parameters, applied to every connection.
var writerParams = url.Values{
	"_journal_mode": {"WAL"},
	"_synchronous":  {"NORMAL"},
	"_busy_timeout": {"5000"},
	"_foreign_keys": {"1"},
}

// Open creates or opens the recorder database at path and applies the
// schema. Opening an existing file again is safe.
func Open(path string) (*Store, error) {
	db, err := connect(path + "?" + writerParams.Encode())
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := checkVersion(db, true); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		db.Close()
		return nil, fmt.Errorf("set user_version: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenReadOnly opens an existing recorder database for inspection. It
// never creates the file or changes the schema.
func OpenReadOnly(path string) (*Store, error) {
	params := url.Values{"mode": {"ro"}, "_busy_timeout": {"5000"}}
	db, err := connect("file:" + path + "?" + params.Encode())
	if err != nil {
		return nil, err
	}
	if err := checkVersion(db, false); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, readOnly: true}, nil
}

func connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	// One connection: the recorder loop is the only writer and readers run
	// one query at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// checkVersion rejects files written by a newer schema. A fresh file has
// version 0, which only a writer may upgrade.
func checkVersion(db *sql.DB, writer bool) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	switch {
	case version > schemaVersion:
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, schemaVersion)
	case version == 0 && !writer:
		return ErrNotRecorder
	}
	return nil
}

// ReadOnly reports whether the store was opened with OpenReadOnly.
func (s *Store) ReadOnly() bool {
	return s.readOnly
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// pragma returns the value of a pragma as text.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("query %s: %w", name, err)
	}
	return value, nil
}
