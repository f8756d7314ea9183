// Package store provides the durable per-character record store. Records are
// JSON documents addressed by key; all backends guarantee read-after-write
// consistency for a single writer.
package store

import (
	"errors"
)

// ErrNotFound is returned by Load when no record exists for the key.
var ErrNotFound = errors.New("record not found")

// RecordStore persists one JSON record per key.
type RecordStore interface {
	// Load unmarshals the record for key into v. Returns ErrNotFound when the
	// key has never been saved.
	Load(key string, v any) error

	// Save marshals v and durably stores it under key, replacing any previous
	// record.
	Save(key string, v any) error

	// Delete removes the record for key. Deleting a missing key is not an error.
	Delete(key string) error

	// Keys lists stored keys with the given prefix.
	Keys(prefix string) ([]string, error)

	Close() error
}
