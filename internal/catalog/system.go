// Package catalog implements the table catalog: table creation, activation,
// deletion, table-number allocation, and count maintenance. All catalog state
// lives as ordinary rows inside the database's own metadata tables, so
// catalog changes are transactional and visible through the same read/write
// path as user data.
package catalog

import "github.com/burrowdb/burrow/pkg/types"

// MaxUserTables caps the number of user-visible tables. System tables are
// exempt. A variable so tests can lower it.
var MaxUserTables = 10000

const (
	// NumReservedLegacyTableNumbers is the floor for system table number
	// allocation. Numbers at or below it are never assigned to new tables.
	NumReservedLegacyTableNumbers types.TableNumber = 512

	// NumReservedSystemTableNumbers is the floor for user table number
	// allocation. User tables always get numbers above it.
	NumReservedSystemTableNumbers types.TableNumber = 10000
)

// The bootstrap system tables. Their metadata rows live in _tables itself;
// their tablet ids are registered in the persist layer's bootstrap registry
// when a fresh store is provisioned.
const (
	TablesTableName        types.TableName = "_tables"
	IndexTableName         types.TableName = "_index"
	VirtualTablesTableName types.TableName = "_virtual_tables"
	SchemasTableName       types.TableName = "_schemas"
)

// bootstrapTableNumbers assigns the fixed, low table numbers of the
// bootstrap system tables.
var bootstrapTableNumbers = map[types.TableName]types.TableNumber{
	TablesTableName:        1,
	IndexTableName:         2,
	VirtualTablesTableName: 3,
	SchemasTableName:       4,
}

// BootstrapTableNames returns the bootstrap system table names in
// provisioning order.
func BootstrapTableNames() []types.TableName {
	return []types.TableName{
		TablesTableName,
		IndexTableName,
		VirtualTablesTableName,
		SchemasTableName,
	}
}

// IsBootstrapSystemTable reports whether name is one of the bootstrap system
// tables. These are protected: their numbers can never be overwritten and
// imports may not target them.
func IsBootstrapSystemTable(name types.TableName) bool {
	_, ok := bootstrapTableNumbers[name]
	return ok
}
