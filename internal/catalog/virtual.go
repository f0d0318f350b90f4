package catalog

import (
	"context"
	"fmt"

	"github.com/burrowdb/burrow/internal/errors"
	"github.com/burrowdb/burrow/internal/txn"
	"github.com/burrowdb/burrow/pkg/types"
)

// VirtualTableModel manages the parallel catalog of non-physical tables in
// _virtual_tables. Virtual tables participate in number-uniqueness checks
// but store no documents.
type VirtualTableModel struct {
	tx *txn.Transaction
	bs *Bootstrap

	// onWrite invalidates the owning TableModel's cached mapping, which
	// includes virtual rows.
	onWrite func()
}

// NewVirtualTableModel binds a standalone virtual table model to an open
// transaction. When obtained through TableModel.Virtual, writes also
// invalidate the table mapping.
func NewVirtualTableModel(tx *txn.Transaction, bs *Bootstrap) *VirtualTableModel {
	return &VirtualTableModel{tx: tx, bs: bs}
}

// Insert creates a virtual table row. The number must not collide with any
// virtual or physical table; physical rows hold their number in every state,
// Deleting included.
func (m *VirtualTableModel) Insert(ctx context.Context, name types.TableName, number types.TableNumber) (types.ID, error) {
	rows, err := m.All(ctx)
	if err != nil {
		return types.ID{}, err
	}
	for _, existing := range rows {
		if existing.Name == name || existing.Number == number {
			return types.ID{}, errors.NewConflictError(errors.CodeTableConflict,
				fmt.Sprintf("virtual table %s conflicts with existing virtual table %s",
					name, existing.Name))
		}
	}

	physical, err := m.tx.Scan(ctx, m.bs.Tables)
	if err != nil {
		return types.ID{}, err
	}
	for _, row := range physical {
		md, err := DecodeTableMetadata(row.Value)
		if err != nil {
			return types.ID{}, errors.NewInternalError("corrupt table metadata", err)
		}
		if md.Number == number {
			return types.ID{}, errors.NewConflictError(errors.CodeTableConflict,
				fmt.Sprintf("virtual table %s conflicts with existing table %s",
					name, md.Name))
		}
	}

	id, err := m.tx.NewID()
	if err != nil {
		return types.ID{}, errors.NewInternalError("failed to generate virtual table id", err)
	}
	data, err := VirtualTableMetadata{Name: name, Number: number}.Encode()
	if err != nil {
		return types.ID{}, errors.NewInternalError("failed to encode virtual table metadata", err)
	}
	if err := m.tx.Insert(ctx, m.bs.VirtualTables, id, data); err != nil {
		return types.ID{}, err
	}
	if m.onWrite != nil {
		m.onWrite()
	}
	return id, nil
}

// All returns every virtual table row.
func (m *VirtualTableModel) All(ctx context.Context) ([]VirtualTableMetadata, error) {
	rows, err := m.tx.Scan(ctx, m.bs.VirtualTables)
	if err != nil {
		return nil, err
	}
	var tables []VirtualTableMetadata
	for _, row := range rows {
		md, err := DecodeVirtualTableMetadata(row.Value)
		if err != nil {
			return nil, errors.NewInternalError("corrupt virtual table metadata", err)
		}
		tables = append(tables, md)
	}
	return tables, nil
}
