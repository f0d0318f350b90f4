package catalog

import (
	"context"
	"fmt"

	"github.com/burrowdb/burrow/pkg/types"
)

// TableEntry pairs a tablet id with its decoded catalog row.
type TableEntry struct {
	Tablet types.ID
	Meta   TableMetadata
}

// TableMapping is a point-in-time index over the transaction's visible
// catalog rows (physical and virtual). Name lookups see Active tables only;
// Hidden tables stay invisible by name until activated. Number lookups cover
// Active and Hidden, since a Hidden table already owns its number.
//
// Building a mapping scans _tables and _virtual_tables, which registers a
// read dependency over both; any concurrent catalog change conflicts with
// this transaction at commit.
type TableMapping struct {
	entries      []TableEntry
	byTablet     map[types.ID]TableMetadata
	activeByName map[types.TableName]types.ID
	nameByNumber map[types.TableNumber]types.TableName

	virtual       []VirtualTableMetadata
	virtualByNum  map[types.TableNumber]types.TableName
	virtualByName map[types.TableName]types.TableNumber
}

// TabletByName resolves an Active table's tablet id.
func (m *TableMapping) TabletByName(name types.TableName) (types.ID, bool) {
	id, ok := m.activeByName[name]
	return id, ok
}

// MetadataByTablet returns the catalog row for a tablet id, any state.
func (m *TableMapping) MetadataByTablet(tablet types.ID) (TableMetadata, bool) {
	md, ok := m.byTablet[tablet]
	return md, ok
}

// NameByNumber resolves a table number to the Active or Hidden table that
// holds it.
func (m *TableMapping) NameByNumber(number types.TableNumber) (types.TableName, bool) {
	name, ok := m.nameByNumber[number]
	return name, ok
}

// NumberExists reports whether a number is held by any Active or Hidden
// physical table.
func (m *TableMapping) NumberExists(number types.TableNumber) bool {
	_, ok := m.nameByNumber[number]
	return ok
}

// VirtualNameByNumber resolves a table number to the virtual table that
// holds it.
func (m *TableMapping) VirtualNameByNumber(number types.TableNumber) (types.TableName, bool) {
	name, ok := m.virtualByNum[number]
	return name, ok
}

// VirtualNumberByName resolves a virtual table's number.
func (m *TableMapping) VirtualNumberByName(name types.TableName) (types.TableNumber, bool) {
	n, ok := m.virtualByName[name]
	return n, ok
}

// CountUserTables counts Active and Hidden tables whose name is not a
// reserved system name.
func (m *TableMapping) CountUserTables() int {
	count := 0
	for _, e := range m.entries {
		if e.Meta.State == types.TableStateDeleting {
			continue
		}
		if !e.Meta.Name.IsSystem() {
			count++
		}
	}
	return count
}

// Entries returns every catalog row, all states included, ordered by tablet
// id. The allocator scans this so numbers held by Deleting rows are never
// reused while the row exists.
func (m *TableMapping) Entries() []TableEntry {
	return m.entries
}

// Virtual returns every virtual table row.
func (m *TableMapping) Virtual() []VirtualTableMetadata {
	return m.virtual
}

// loadMapping returns the cached mapping, rebuilding it after catalog
// writes.
func (m *TableModel) loadMapping(ctx context.Context) (*TableMapping, error) {
	if m.mapping != nil {
		return m.mapping, nil
	}

	mapping := &TableMapping{
		byTablet:      make(map[types.ID]TableMetadata),
		activeByName:  make(map[types.TableName]types.ID),
		nameByNumber:  make(map[types.TableNumber]types.TableName),
		virtualByNum:  make(map[types.TableNumber]types.TableName),
		virtualByName: make(map[types.TableName]types.TableNumber),
	}

	rows, err := m.tx.Scan(ctx, m.bs.Tables)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		md, err := DecodeTableMetadata(row.Value)
		if err != nil {
			return nil, fmt.Errorf("catalog: tablet %s: %w", row.ID, err)
		}
		mapping.entries = append(mapping.entries, TableEntry{Tablet: row.ID, Meta: md})
		mapping.byTablet[row.ID] = md
		switch md.State {
		case types.TableStateActive:
			mapping.activeByName[md.Name] = row.ID
			mapping.nameByNumber[md.Number] = md.Name
		case types.TableStateHidden:
			mapping.nameByNumber[md.Number] = md.Name
		}
	}

	virtualRows, err := m.tx.Scan(ctx, m.bs.VirtualTables)
	if err != nil {
		return nil, err
	}
	for _, row := range virtualRows {
		md, err := DecodeVirtualTableMetadata(row.Value)
		if err != nil {
			return nil, fmt.Errorf("catalog: virtual tablet %s: %w", row.ID, err)
		}
		mapping.virtual = append(mapping.virtual, md)
		mapping.virtualByNum[md.Number] = md.Name
		mapping.virtualByName[md.Name] = md.Number
	}

	m.mapping = mapping
	return mapping, nil
}

// invalidateMapping drops the cached mapping after a write to a catalog
// table. The next read rebuilds it from the transaction's visible rows.
func (m *TableModel) invalidateMapping() {
	m.mapping = nil
}
