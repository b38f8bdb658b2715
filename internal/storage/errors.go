package storage

import "errors"

// Sentinel errors shared by every backend. Stores are append-only: a run's
// summary, trade log and equity curve are written once and never updated.
var (
	ErrNotFound     = errors.New("storage: not found")
	ErrDuplicateKey = errors.New("storage: duplicate key")
	ErrInvalidInput = errors.New("storage: invalid input")
)
