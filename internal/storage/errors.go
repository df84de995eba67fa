package storage

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique field (username, token) is already taken.
	ErrDuplicate = errors.New("duplicate record")
)
