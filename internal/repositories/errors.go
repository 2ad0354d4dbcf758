package repositories

import "errors"

// Common repository errors
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("optimistic state check failed")
)
