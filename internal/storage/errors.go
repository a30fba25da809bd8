package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose key exists.
	// Journals and wallets are append-only.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when a record is nil or misses its key fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrClosed is returned when using a store after Close.
	ErrClosed = errors.New("store closed")
)
