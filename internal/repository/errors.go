package repository

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique constraint rejects a write.
	ErrConflict        = errors.New("record conflicts with existing data")
	ErrCapacityReached = errors.New("capacity reached")
)
