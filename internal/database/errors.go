package database

import (
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"
)

// Kind classifies driver errors at the database boundary so callers never
// have to match on error text.
type Kind int

const (
	KindOther Kind = iota
	KindLockContention
	KindConstraint
	KindNotFound
)

// Classify maps a driver error to its Kind. SQLITE_BUSY and SQLITE_LOCKED
// are the retryable lock-contention class.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}
	if errors.Is(err, sql.ErrNoRows) {
		return KindNotFound
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return KindLockContention
		case sqlite3.ErrConstraint:
			return KindConstraint
		}
	}
	return KindOther
}

// IsLockContention reports whether err is retryable lock contention.
func IsLockContention(err error) bool {
	return Classify(err) == KindLockContention
}

// IsConstraint reports whether err is a constraint violation.
func IsConstraint(err error) bool {
	return Classify(err) == KindConstraint
}

// IsNotFound reports whether err means no matching row.
func IsNotFound(err error) bool {
	return Classify(err) == KindNotFound
}
