// Package sentinel holds the storage-level facts stores report. Services map
// them onto coded domain errors; they never reach a client as-is.
package sentinel

import "errors"

var (
	// ErrNotFound means no row exists for the key.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a uniqueness constraint rejected the write, for
	// example a second current address for one account.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState means the write was attempted against a stale snapshot
	// or outside the transaction it requires.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnavailable means the backing store could not be reached.
	ErrUnavailable = errors.New("unavailable")
)
