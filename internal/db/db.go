package db

import (
	"database/sql"
	"net/url"

	_ "modernc.org/sqlite"

	"github.com/saadjs/bitelog/internal/errors"
)

// Open opens the SQLite database at path with foreign keys enforced on
// every connection. The pool is pinned to one connection: all writes go
// through a single owner.
func Open(path string) (*sql.DB, error) {
	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite database")
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite database")
	}
	return db, nil
}
