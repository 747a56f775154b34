// Package store persists user records.
//
// Two implementations are provided: MongoUserStore backed by a MongoDB
// collection, and MemoryUserStore for local runs and tests. Both implement
// optimistic versioning on Save: a record whose version changed since it was
// read is rejected with ErrStale.
package store

import "errors"

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("user not found")

	// ErrDuplicate is returned when creating a record whose email is taken.
	ErrDuplicate = errors.New("user already exists")

	// ErrStale is returned by Save when the record was modified concurrently.
	ErrStale = errors.New("user record was modified concurrently")
)
