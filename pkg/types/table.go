// Package types provides core data types for Burrow.
package types

import (
	"math"
	"strings"
)

// TableName is the human-facing identifier of a table. Names starting with
// an underscore are reserved for system tables.
type TableName string

// NewTableName validates s and returns it as a TableName. A valid name is a
// non-empty identifier of at most 64 characters: letters, digits, and
// underscores, not starting with a digit.
func NewTableName(s string) (TableName, error) {
	if err := validateTableName(s); err != nil {
		return "", err
	}
	return TableName(s), nil
}

func validateTableName(s string) error {
	if len(s) == 0 || len(s) > 64 {
		return ErrInvalidTableName
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return ErrInvalidTableName
			}
		default:
			return ErrInvalidTableName
		}
	}
	return nil
}

// IsSystem reports whether the name denotes a system table.
// System-ness is a static property of the name: a reserved underscore prefix.
func (t TableName) IsSystem() bool {
	return strings.HasPrefix(string(t), "_")
}

func (t TableName) String() string {
	return string(t)
}

// TableNumber is the externally meaningful numeric identifier of a table,
// stable for the table's lifetime. Zero is not a valid table number.
type TableNumber uint32

// Increment returns the next table number, failing on overflow of the
// underlying number type.
func (n TableNumber) Increment() (TableNumber, error) {
	if n == math.MaxUint32 {
		return 0, ErrTableNumberOverflow
	}
	return n + 1, nil
}

// TableState is the lifecycle state of a table metadata row.
// Transitions: Hidden -> Active -> Deleting, or Active -> Deleting directly.
// Deleting is terminal.
type TableState string

const (
	// TableStateHidden marks a table staged during import, not yet visible
	// to ordinary queries.
	TableStateHidden TableState = "hidden"

	// TableStateActive marks a live, queryable table.
	TableStateActive TableState = "active"

	// TableStateDeleting marks a table awaiting physical reclamation.
	// No transition leaves this state.
	TableStateDeleting TableState = "deleting"
)

// ParseTableState parses the persisted state field.
func ParseTableState(s string) (TableState, error) {
	switch TableState(s) {
	case TableStateHidden, TableStateActive, TableStateDeleting:
		return TableState(s), nil
	}
	return "", ErrInvalidTableState
}

func (s TableState) String() string {
	return string(s)
}
