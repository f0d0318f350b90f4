package types

import (
	"math"
	"testing"
)

func TestNewTableName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "messages", false},
		{"with underscore", "user_profiles", false},
		{"system name", "_tables", false},
		{"mixed case", "MyTable", false},
		{"digits after first", "t2", false},
		{"empty", "", true},
		{"leading digit", "2fast", true},
		{"dash", "my-table", true},
		{"space", "my table", true},
		{"dot", "a.b", true},
		{"too long", string(make([]byte, 65)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTableName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewTableName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestTableName_IsSystem(t *testing.T) {
	if !TableName("_tables").IsSystem() {
		t.Error("_tables should be a system table")
	}
	if !TableName("_index").IsSystem() {
		t.Error("_index should be a system table")
	}
	if TableName("messages").IsSystem() {
		t.Error("messages should not be a system table")
	}
}

func TestTableNumber_Increment(t *testing.T) {
	n := TableNumber(10000)
	next, err := n.Increment()
	if err != nil {
		t.Fatalf("Increment failed: %v", err)
	}
	if next != 10001 {
		t.Errorf("Increment() = %d, want 10001", next)
	}

	if _, err := TableNumber(math.MaxUint32).Increment(); err != ErrTableNumberOverflow {
		t.Errorf("Increment at max error = %v, want %v", err, ErrTableNumberOverflow)
	}
}

func TestParseTableState(t *testing.T) {
	for _, s := range []TableState{TableStateHidden, TableStateActive, TableStateDeleting} {
		got, err := ParseTableState(string(s))
		if err != nil {
			t.Fatalf("ParseTableState(%q) failed: %v", s, err)
		}
		if got != s {
			t.Errorf("ParseTableState(%q) = %q", s, got)
		}
	}

	if _, err := ParseTableState("tombstoned"); err != ErrInvalidTableState {
		t.Errorf("ParseTableState(tombstoned) error = %v, want %v", err, ErrInvalidTableState)
	}
}
