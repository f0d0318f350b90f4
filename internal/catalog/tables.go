package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/burrowdb/burrow/internal/errors"
	"github.com/burrowdb/burrow/internal/txn"
	"github.com/burrowdb/burrow/pkg/types"
)

// ImportBatch is the set of table names being atomically introduced or
// overwritten by one bulk import. A number collision with a table in the
// batch is transient and allowed: that table is itself being overwritten.
type ImportBatch map[types.TableName]struct{}

// NewImportBatch builds an ImportBatch from table names.
func NewImportBatch(names ...types.TableName) ImportBatch {
	batch := make(ImportBatch, len(names))
	for _, name := range names {
		batch[name] = struct{}{}
	}
	return batch
}

// Contains reports whether name is part of the batch.
func (b ImportBatch) Contains(name types.TableName) bool {
	_, ok := b[name]
	return ok
}

// TableModel is the table catalog manager, bound to one open transaction.
// All reads and writes go through the transaction; invariants are enforced
// by read-before-write checks, relying on commit-time conflict detection for
// cross-transaction safety. Not safe for concurrent use, like the
// transaction it wraps.
type TableModel struct {
	tx     *txn.Transaction
	bs     *Bootstrap
	logger *slog.Logger

	indexes *IndexModel
	schemas *SchemaModel
	virtual *VirtualTableModel

	// mapping caches the derived name/number index; nil after a catalog
	// write until the next read rebuilds it.
	mapping *TableMapping
}

// NewTableModel binds a catalog manager to an open transaction. logger may
// be nil.
func NewTableModel(tx *txn.Transaction, bs *Bootstrap, logger *slog.Logger) *TableModel {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &TableModel{
		tx:      tx,
		bs:      bs,
		logger:  logger,
		indexes: NewIndexModel(tx, bs),
		schemas: NewSchemaModel(tx, bs),
	}
	m.virtual = &VirtualTableModel{tx: tx, bs: bs, onWrite: m.invalidateMapping}
	return m
}

// Indexes returns the index manager bound to the same transaction.
func (m *TableModel) Indexes() *IndexModel {
	return m.indexes
}

// Schemas returns the schema model bound to the same transaction.
func (m *TableModel) Schemas() *SchemaModel {
	return m.schemas
}

// Virtual returns the virtual table model bound to the same transaction.
func (m *TableModel) Virtual() *VirtualTableModel {
	return m.virtual
}

// TabletID resolves an Active table's tablet id by name.
func (m *TableModel) TabletID(ctx context.Context, name types.TableName) (types.ID, bool, error) {
	mapping, err := m.loadMapping(ctx)
	if err != nil {
		return types.ID{}, false, err
	}
	tablet, ok := mapping.TabletByName(name)
	return tablet, ok, nil
}

// AllTables returns every catalog row visible to the transaction, all
// states included, ordered by tablet id.
func (m *TableModel) AllTables(ctx context.Context) ([]TableEntry, error) {
	mapping, err := m.loadMapping(ctx)
	if err != nil {
		return nil, err
	}
	return mapping.Entries(), nil
}

// Count returns the table's current document count: the snapshot count
// oracle's value adjusted by this transaction's accumulated delta, with
// checked arithmetic. A nonexistent table counts 0 with no side effect.
// For an existing table, a read dependency covering the table's entire
// primary key range is registered even though no document bytes are read,
// so a concurrent insert or delete into the table conflicts with this
// transaction at commit.
func (m *TableModel) Count(ctx context.Context, name types.TableName) (uint64, error) {
	mapping, err := m.loadMapping(ctx)
	if err != nil {
		return 0, err
	}
	tablet, ok := mapping.TabletByName(name)
	if !ok {
		return 0, nil
	}

	snapshot, err := m.tx.SnapshotCount(ctx, tablet)
	if err != nil {
		return 0, err
	}
	count, err := applyCountDelta(snapshot, m.tx.CountDelta(tablet))
	if err != nil {
		return 0, err
	}
	m.tx.RecordTableRead(tablet)
	return count, nil
}

// applyCountDelta adjusts a snapshot count by a signed in-transaction delta.
// Overflow or underflow means the substrate lost track of documents; both
// surface as internal consistency failures.
func applyCountDelta(snapshot uint64, delta int64) (uint64, error) {
	if delta >= 0 {
		count := snapshot + uint64(delta)
		if count < snapshot {
			return 0, errors.NewArithmeticError(errors.CodeCountOverflow,
				fmt.Sprintf("document count overflow: %d + %d", snapshot, delta))
		}
		return count, nil
	}
	dec := uint64(-delta)
	if dec > snapshot {
		return 0, errors.NewArithmeticError(errors.CodeCountUnderflow,
			fmt.Sprintf("document count underflow: %d - %d", snapshot, dec))
	}
	return snapshot - dec, nil
}

// TableExists reports whether an Active table with the given name exists.
// Hidden tables are not visible by name.
func (m *TableModel) TableExists(ctx context.Context, name types.TableName) (bool, error) {
	mapping, err := m.loadMapping(ctx)
	if err != nil {
		return false, err
	}
	_, ok := mapping.TabletByName(name)
	return ok, nil
}

// CountUserTables counts the non-system tables in the catalog (Active and
// Hidden). Used to enforce the user-table cap.
func (m *TableModel) CountUserTables(ctx context.Context) (int, error) {
	mapping, err := m.loadMapping(ctx)
	if err != nil {
		return 0, err
	}
	return mapping.CountUserTables(), nil
}

// DeleteTable transitions a table to Deleting. A no-op if the table does not
// exist. Fails if the active schema references the table; a merely validated
// schema referencing it is marked failed instead and the delete proceeds.
// The row is not removed from the catalog, only transitioned; physical
// reclamation is an external job.
func (m *TableModel) DeleteTable(ctx context.Context, name types.TableName) error {
	mapping, err := m.loadMapping(ctx)
	if err != nil {
		return err
	}
	tablet, ok := mapping.TabletByName(name)
	if !ok {
		return nil
	}
	if err := m.schemas.EnforceTableDeletion(ctx, name); err != nil {
		return err
	}
	return m.deleteTableByID(ctx, tablet)
}

// deleteTableByID removes every index attached to the table, then rewrites
// the table's catalog row with state Deleting.
func (m *TableModel) deleteTableByID(ctx context.Context, tablet types.ID) error {
	indexes, err := m.indexes.AllIndexesOnTable(ctx, tablet)
	if err != nil {
		return err
	}
	for _, idx := range indexes {
		if err := m.indexes.Delete(ctx, idx.ID); err != nil {
			return err
		}
	}

	md, err := m.getTableMetadata(ctx, tablet)
	if err != nil {
		return err
	}
	md.State = types.TableStateDeleting
	data, err := md.Encode()
	if err != nil {
		return errors.NewInternalError("failed to encode table metadata", err)
	}
	if err := m.tx.Replace(ctx, m.bs.Tables, tablet, data); err != nil {
		return err
	}
	m.invalidateMapping()

	m.logger.Debug("table deleting",
		"table", md.Name.String(),
		"number", uint32(md.Number),
		"tablet", tablet.String())
	return nil
}

// ActivateTable flips a Hidden table to Active, superseding any existing
// Active table with the same name. Returns the number of documents deleted
// as a side effect of superseding (0 if none).
//
// Already-Active is a no-op; Deleting cannot be activated. The caller's
// name and number are used for conflict checking only: the activated row
// keeps its own name and number, and the supplied number must match the
// row's.
func (m *TableModel) ActivateTable(
	ctx context.Context,
	tablet types.ID,
	name types.TableName,
	number types.TableNumber,
	batch ImportBatch,
) (uint64, error) {
	md, err := m.getTableMetadata(ctx, tablet)
	if err != nil {
		return 0, err
	}
	switch md.State {
	case types.TableStateActive:
		return 0, nil
	case types.TableStateDeleting:
		return 0, errors.NewInvalidStateError(errors.CodeTableDeleting,
			fmt.Sprintf("cannot activate %s which is deleting", name))
	}

	if err := m.checkCanOverwrite(ctx, name, &number, batch); err != nil {
		return 0, err
	}
	if number != md.Number {
		return 0, errors.NewConflictError(errors.CodeInvalidId,
			fmt.Sprintf("table %s activated with number %d but holds number %d",
				name, number, md.Number))
	}

	var documentsDeleted uint64
	mapping, err := m.loadMapping(ctx)
	if err != nil {
		return 0, err
	}
	if existing, ok := mapping.TabletByName(name); ok {
		documentsDeleted, err = m.Count(ctx, name)
		if err != nil {
			return 0, err
		}
		if err := m.deleteTableByID(ctx, existing); err != nil {
			return 0, err
		}
	}

	md.State = types.TableStateActive
	data, err := md.Encode()
	if err != nil {
		return 0, errors.NewInternalError("failed to encode table metadata", err)
	}
	if err := m.tx.Replace(ctx, m.bs.Tables, tablet, data); err != nil {
		return 0, err
	}
	m.invalidateMapping()

	m.logger.Debug("table activated",
		"table", md.Name.String(),
		"number", uint32(md.Number),
		"documents_deleted", documentsDeleted)
	return documentsDeleted, nil
}

// InsertTableMetadata creates a table implicitly on first write. System
// tables are provisioned separately, so a system name is a no-op. Creating
// an already-existing table is idempotent.
func (m *TableModel) InsertTableMetadata(ctx context.Context, name types.TableName) error {
	if name.IsSystem() {
		return nil
	}
	_, _, err := m.insertTableMetadata(ctx, name, nil, types.TableStateActive)
	return err
}

// InsertTableForImport stages a Hidden table for a bulk import and returns
// its tablet id and number. Importing into an existing table name preserves
// that table's number unless the caller overrides it.
func (m *TableModel) InsertTableForImport(
	ctx context.Context,
	name types.TableName,
	number *types.TableNumber,
	batch ImportBatch,
) (types.ID, types.TableNumber, error) {
	if IsBootstrapSystemTable(name) {
		return types.ID{}, 0, errors.NewConflictError(errors.CodeTableConflict,
			fmt.Sprintf("conflict with bootstrap system table %s", name))
	}

	mapping, err := m.loadMapping(ctx)
	if err != nil {
		return types.ID{}, 0, err
	}
	effective := number
	if effective == nil {
		if tablet, ok := mapping.TabletByName(name); ok {
			if md, ok := mapping.MetadataByTablet(tablet); ok {
				n := md.Number
				effective = &n
			}
		}
	}

	if err := m.checkCanOverwrite(ctx, name, effective, batch); err != nil {
		return types.ID{}, 0, err
	}
	return m.insertTableMetadata(ctx, name, effective, types.TableStateHidden)
}

// insertTableMetadata is the private create path shared by implicit creation
// and import staging.
func (m *TableModel) insertTableMetadata(
	ctx context.Context,
	name types.TableName,
	number *types.TableNumber,
	state types.TableState,
) (types.ID, types.TableNumber, error) {
	mapping, err := m.loadMapping(ctx)
	if err != nil {
		return types.ID{}, 0, err
	}

	if state == types.TableStateActive {
		if tablet, ok := mapping.TabletByName(name); ok {
			md, ok := mapping.MetadataByTablet(tablet)
			if !ok {
				return types.ID{}, 0, errors.NewInternalError(
					fmt.Sprintf("mapping entry missing for tablet %s", tablet), nil)
			}
			if number != nil && *number != md.Number {
				return types.ID{}, 0, errors.NewConflictError(errors.CodeTableConflict,
					fmt.Sprintf("table %s already exists with number %d", name, md.Number))
			}
			return tablet, md.Number, nil
		}
	}

	if !name.IsSystem() && mapping.CountUserTables() >= MaxUserTables {
		return types.ID{}, 0, errors.NewConflictError(errors.CodeTooManyTables,
			fmt.Sprintf("too many tables (limit %d)", MaxUserTables))
	}

	var tableNumber types.TableNumber
	if number != nil {
		// Hidden tables may hold a provisional number that is reconciled
		// at activation; any other state requires an unused number.
		if state != types.TableStateHidden && mapping.NumberExists(*number) {
			return types.ID{}, 0, errors.NewConflictError(errors.CodeInvalidId,
				fmt.Sprintf("conflict trying to create %s with number %d", name, *number))
		}
		tableNumber = *number
	} else {
		tableNumber, err = m.nextTableNumber(ctx, name.IsSystem())
		if err != nil {
			return types.ID{}, 0, err
		}
	}

	tablet, err := m.tx.NewID()
	if err != nil {
		return types.ID{}, 0, errors.NewInternalError("failed to generate tablet id", err)
	}
	md := NewTableMetadata(name, tableNumber, state)
	data, err := md.Encode()
	if err != nil {
		return types.ID{}, 0, errors.NewInternalError("failed to encode table metadata", err)
	}
	if err := m.tx.Insert(ctx, m.bs.Tables, tablet, data); err != nil {
		return types.ID{}, 0, err
	}

	// The new table is empty, so its default indexes start enabled.
	if _, err := m.indexes.Insert(ctx, NewEnabledIndex(tablet, IndexByID)); err != nil {
		return types.ID{}, 0, err
	}
	if _, err := m.indexes.Insert(ctx, NewEnabledIndex(tablet, IndexByCreationTime)); err != nil {
		return types.ID{}, 0, err
	}
	m.invalidateMapping()

	m.logger.Debug("table created",
		"table", name.String(),
		"number", uint32(tableNumber),
		"state", state.String(),
		"tablet", tablet.String())
	return tablet, tableNumber, nil
}

// getTableMetadata reads a catalog row by tablet id. A missing row is an
// internal consistency failure, not a user error.
func (m *TableModel) getTableMetadata(ctx context.Context, tablet types.ID) (TableMetadata, error) {
	doc, err := m.tx.Get(ctx, m.bs.Tables, tablet)
	if err != nil {
		return TableMetadata{}, err
	}
	if doc == nil {
		return TableMetadata{}, errors.NewNotFoundError(errors.CodeTableNotFound,
			fmt.Sprintf("table metadata %s not found", tablet))
	}
	md, err := DecodeTableMetadata(doc.Value)
	if err != nil {
		return TableMetadata{}, errors.NewInternalError("corrupt table metadata", err)
	}
	return md, nil
}
