package catalog

import (
	"context"

	"github.com/burrowdb/burrow/internal/errors"
	"github.com/burrowdb/burrow/pkg/types"
)

// NextUserTableNumber returns the next free number for a user table,
// allocated above the system-reserved floor.
func (m *TableModel) NextUserTableNumber(ctx context.Context) (types.TableNumber, error) {
	return m.nextTableNumber(ctx, false)
}

// NextSystemTableNumber returns the next free number for a system table,
// allocated above the legacy-reserved floor.
func (m *TableModel) NextSystemTableNumber(ctx context.Context) (types.TableNumber, error) {
	return m.nextTableNumber(ctx, true)
}

// nextTableNumber scans the full catalog — every physical row regardless of
// state, plus every virtual table — for the maximum number at or above the
// floor, and returns it incremented by one. A number held by a Deleting row
// is still taken: numbers are never reused while any row references them.
//
// The result depends only on the transaction's current view: repeated calls
// without intervening inserts return the same value, so callers must insert
// before allocating again.
func (m *TableModel) nextTableNumber(ctx context.Context, system bool) (types.TableNumber, error) {
	floor := NumReservedSystemTableNumbers
	if system {
		floor = NumReservedLegacyTableNumbers
	}

	mapping, err := m.loadMapping(ctx)
	if err != nil {
		return 0, err
	}

	max := floor
	for _, e := range mapping.Entries() {
		if e.Meta.Number > max {
			max = e.Meta.Number
		}
	}
	for _, v := range mapping.Virtual() {
		if v.Number > max {
			max = v.Number
		}
	}

	next, err := max.Increment()
	if err != nil {
		return 0, errors.NewArithmeticError(errors.CodeNumberOverflow,
			"table number space exhausted")
	}
	return next, nil
}
