package types

import "errors"

// Validation errors for core types.
var (
	// ErrInvalidIDLength is returned when an ID string or byte slice has incorrect length
	ErrInvalidIDLength = errors.New("invalid ID length")

	// ErrInvalidIDCharacter is returned when an ID string contains invalid characters
	ErrInvalidIDCharacter = errors.New("invalid ID character")

	// ErrInvalidTableName is returned for names that are empty, too long, or
	// contain characters outside [A-Za-z0-9_]
	ErrInvalidTableName = errors.New("invalid table name")

	// ErrTableNumberOverflow is returned when incrementing the maximum table number
	ErrTableNumberOverflow = errors.New("table number overflow")

	// ErrInvalidTableState is returned for unknown persisted state values
	ErrInvalidTableState = errors.New("invalid table state")
)
