package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/burrowdb/burrow/internal/errors"
	"github.com/burrowdb/burrow/internal/txn"
	"github.com/burrowdb/burrow/pkg/types"
)

// Bootstrap holds the tablet ids of the four bootstrap system tables. It is
// loaded once when a store is opened and shared by every catalog model.
type Bootstrap struct {
	Tables        types.ID
	Index         types.ID
	VirtualTables types.ID
	Schemas       types.ID
}

// TabletFor resolves a bootstrap system table's tablet id by name.
func (b *Bootstrap) TabletFor(name types.TableName) (types.ID, bool) {
	switch name {
	case TablesTableName:
		return b.Tables, true
	case IndexTableName:
		return b.Index, true
	case VirtualTablesTableName:
		return b.VirtualTables, true
	case SchemasTableName:
		return b.Schemas, true
	}
	return types.ID{}, false
}

// Open loads the bootstrap system tables from the store, provisioning them
// on a fresh store. The four tables' metadata rows live in _tables itself,
// self-referentially; their tablet ids are additionally registered in the
// persist layer's bootstrap registry so reopening can find _tables.
func Open(ctx context.Context, store *txn.Store, logger *slog.Logger) (*Bootstrap, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	tablets, err := store.Persist().BootstrapTablets(ctx)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodePersistFailed,
			"failed to read bootstrap registry", err)
	}
	if len(tablets) == 0 {
		return provision(ctx, store, logger)
	}

	bs := &Bootstrap{}
	for _, name := range BootstrapTableNames() {
		id, ok := tablets[name.String()]
		if !ok {
			return nil, errors.NewInternalError(
				fmt.Sprintf("bootstrap registry missing %s", name), nil)
		}
		switch name {
		case TablesTableName:
			bs.Tables = id
		case IndexTableName:
			bs.Index = id
		case VirtualTablesTableName:
			bs.VirtualTables = id
		case SchemasTableName:
			bs.Schemas = id
		}
	}
	return bs, nil
}

// provision writes the bootstrap system tables into a fresh store: one
// Active catalog row per table (including _tables' own row) with its fixed
// number, plus the two default enabled indexes each, in one transaction.
func provision(ctx context.Context, store *txn.Store, logger *slog.Logger) (*Bootstrap, error) {
	bs := &Bootstrap{}
	registry := make(map[string]types.ID, len(bootstrapTableNumbers))
	for _, name := range BootstrapTableNames() {
		id, err := store.IDGenerator().Generate()
		if err != nil {
			return nil, errors.NewInternalError("failed to generate bootstrap tablet id", err)
		}
		registry[name.String()] = id
		switch name {
		case TablesTableName:
			bs.Tables = id
		case IndexTableName:
			bs.Index = id
		case VirtualTablesTableName:
			bs.VirtualTables = id
		case SchemasTableName:
			bs.Schemas = id
		}
	}

	tx, err := store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	indexes := NewIndexModel(tx, bs)
	for _, name := range BootstrapTableNames() {
		tablet := registry[name.String()]
		md := NewTableMetadata(name, bootstrapTableNumbers[name], types.TableStateActive)
		data, err := md.Encode()
		if err != nil {
			return nil, errors.NewInternalError("failed to encode bootstrap metadata", err)
		}
		if err := tx.Insert(ctx, bs.Tables, tablet, data); err != nil {
			return nil, err
		}
		if _, err := indexes.Insert(ctx, NewEnabledIndex(tablet, IndexByID)); err != nil {
			return nil, err
		}
		if _, err := indexes.Insert(ctx, NewEnabledIndex(tablet, IndexByCreationTime)); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if err := store.Persist().SaveBootstrapTablets(ctx, registry); err != nil {
		return nil, errors.NewStorageError(errors.CodePersistFailed,
			"failed to save bootstrap registry", err)
	}

	logger.Info("provisioned bootstrap system tables",
		"tables", len(registry))
	return bs, nil
}
