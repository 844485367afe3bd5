package storage

import "errors"

// Storage errors shared by the memory, postgres and clickhouse stores.
var (
	// ErrNotFound is returned when a requested run or series does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a series point, pair event, run or
	// step is inserted twice. Stores are append-only.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned for nil records or missing key fields.
	ErrInvalidInput = errors.New("invalid input")
)
