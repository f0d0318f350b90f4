package catalog

import (
	"context"
	"fmt"

	"github.com/burrowdb/burrow/internal/errors"
	"github.com/burrowdb/burrow/pkg/types"
)

// checkCanOverwrite decides whether a proposed (name, number) pair may enter
// the catalog, e.g. during snapshot import. A table may be replaced in place
// under its own name, and a collision with another table in the same import
// batch is transient (that table is itself being overwritten). Any other
// number collision fails.
func (m *TableModel) checkCanOverwrite(
	ctx context.Context,
	name types.TableName,
	number *types.TableNumber,
	batch ImportBatch,
) error {
	if number == nil {
		return nil
	}
	mapping, err := m.loadMapping(ctx)
	if err != nil {
		return err
	}

	if _, ok := mapping.VirtualNameByNumber(*number); ok {
		return errors.NewConflictError(errors.CodeTableConflict,
			fmt.Sprintf("new table %s has IDs that conflict with an existing system table", name))
	}

	existing, ok := mapping.NameByNumber(*number)
	if !ok {
		return nil
	}
	if IsBootstrapSystemTable(existing) {
		return errors.NewConflictError(errors.CodeTableConflict,
			fmt.Sprintf("conflict with bootstrap system table %s", existing))
	}
	if existing == name {
		// Overwriting in place, same table name and number.
		return nil
	}
	if batch.Contains(existing) {
		return nil
	}
	if existing.IsSystem() {
		return errors.NewConflictError(errors.CodeTableConflict,
			fmt.Sprintf("new table %s has IDs that conflict with an existing internal table; "+
				"import without id fields or into a fresh deployment", name))
	}
	return errors.NewConflictError(errors.CodeTableConflict,
		fmt.Sprintf("new table %s has IDs that conflict with existing table %s", name, existing))
}
