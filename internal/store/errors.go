package store

import "errors"

var (
	// ErrConflict is returned when the database's overlap backstop rejects an
	// insert that slipped past the in-transaction recheck.
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
	// ErrContention marks a transient transaction failure (serialization or
	// deadlock) that callers may retry a bounded number of times.
	ErrContention = errors.New("transaction contention")
)
