package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/burrowdb/burrow/pkg/types"
)

// TableMetadata is the persisted form of one table catalog row. The row's
// document id in _tables is the table's tablet id.
type TableMetadata struct {
	Name   types.TableName   `json:"name"`
	Number types.TableNumber `json:"number"`
	State  types.TableState  `json:"state"`
}

// NewTableMetadata builds a catalog row.
func NewTableMetadata(name types.TableName, number types.TableNumber, state types.TableState) TableMetadata {
	return TableMetadata{Name: name, Number: number, State: state}
}

// Encode serializes the row for storage.
func (m TableMetadata) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeTableMetadata parses and validates a persisted catalog row.
func DecodeTableMetadata(data []byte) (TableMetadata, error) {
	var m TableMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return TableMetadata{}, fmt.Errorf("catalog: corrupt table metadata: %w", err)
	}
	if m.Name == "" {
		return TableMetadata{}, fmt.Errorf("catalog: table metadata missing name")
	}
	if _, err := types.ParseTableState(string(m.State)); err != nil {
		return TableMetadata{}, fmt.Errorf("catalog: table metadata %s: %w", m.Name, err)
	}
	return m, nil
}

// VirtualTableMetadata is the persisted form of one virtual table row in
// _virtual_tables. Virtual tables have no physical storage; they exist so
// their numbers participate in uniqueness checks.
type VirtualTableMetadata struct {
	Name   types.TableName   `json:"name"`
	Number types.TableNumber `json:"number"`
}

// Encode serializes the row for storage.
func (m VirtualTableMetadata) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeVirtualTableMetadata parses a persisted virtual table row.
func DecodeVirtualTableMetadata(data []byte) (VirtualTableMetadata, error) {
	var m VirtualTableMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return VirtualTableMetadata{}, fmt.Errorf("catalog: corrupt virtual table metadata: %w", err)
	}
	if m.Name == "" {
		return VirtualTableMetadata{}, fmt.Errorf("catalog: virtual table metadata missing name")
	}
	return m, nil
}
