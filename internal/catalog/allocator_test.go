package catalog

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/burrowdb/burrow/pkg/types"
)

func TestAllocator_FirstUserNumber(t *testing.T) {
	store, bs := newTestCatalog(t)
	_, m := beginModel(t, store, bs)
	ctx := context.Background()

	n, err := m.NextUserTableNumber(ctx)
	if err != nil {
		t.Fatalf("NextUserTableNumber failed: %v", err)
	}
	if n != NumReservedSystemTableNumbers+1 {
		t.Errorf("first user number = %d, want %d", n, NumReservedSystemTableNumbers+1)
	}
}

func TestAllocator_FirstSystemNumber(t *testing.T) {
	store, bs := newTestCatalog(t)
	_, m := beginModel(t, store, bs)
	ctx := context.Background()

	n, err := m.NextSystemTableNumber(ctx)
	if err != nil {
		t.Fatalf("NextSystemTableNumber failed: %v", err)
	}
	if n != NumReservedLegacyTableNumbers+1 {
		t.Errorf("first system number = %d, want %d", n, NumReservedLegacyTableNumbers+1)
	}
}

func TestAllocator_DeterministicWithoutInserts(t *testing.T) {
	store, bs := newTestCatalog(t)
	_, m := beginModel(t, store, bs)
	ctx := context.Background()

	first, err := m.NextUserTableNumber(ctx)
	if err != nil {
		t.Fatalf("NextUserTableNumber failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		n, err := m.NextUserTableNumber(ctx)
		if err != nil {
			t.Fatalf("NextUserTableNumber failed: %v", err)
		}
		if n != first {
			t.Errorf("repeated allocation = %d, want %d", n, first)
		}
	}
}

func TestAllocator_AdvancesAfterInsert(t *testing.T) {
	store, bs := newTestCatalog(t)
	_, m := beginModel(t, store, bs)
	ctx := context.Background()

	before, err := m.NextUserTableNumber(ctx)
	if err != nil {
		t.Fatalf("NextUserTableNumber failed: %v", err)
	}
	if err := m.InsertTableMetadata(ctx, name(t, "users")); err != nil {
		t.Fatalf("InsertTableMetadata failed: %v", err)
	}
	after, err := m.NextUserTableNumber(ctx)
	if err != nil {
		t.Fatalf("NextUserTableNumber failed: %v", err)
	}
	if after != before+1 {
		t.Errorf("allocation after insert = %d, want %d", after, before+1)
	}
}

func TestAllocator_DeletingRowsHoldTheirNumbers(t *testing.T) {
	store, bs := newTestCatalog(t)
	_, m := beginModel(t, store, bs)
	ctx := context.Background()
	users := name(t, "users")

	if err := m.InsertTableMetadata(ctx, users); err != nil {
		t.Fatalf("InsertTableMetadata failed: %v", err)
	}
	taken, err := m.NextUserTableNumber(ctx)
	if err != nil {
		t.Fatalf("NextUserTableNumber failed: %v", err)
	}
	if err := m.DeleteTable(ctx, users); err != nil {
		t.Fatalf("DeleteTable failed: %v", err)
	}

	after, err := m.NextUserTableNumber(ctx)
	if err != nil {
		t.Fatalf("NextUserTableNumber failed: %v", err)
	}
	if after != taken {
		t.Errorf("deleting a table changed the next number: %d, want %d", after, taken)
	}
}

func TestAllocator_VirtualTablesHoldTheirNumbers(t *testing.T) {
	store, bs := newTestCatalog(t)
	_, m := beginModel(t, store, bs)
	ctx := context.Background()

	high := NumReservedSystemTableNumbers + 50
	if _, err := m.Virtual().Insert(ctx, name(t, "_sessions"), high); err != nil {
		t.Fatalf("virtual insert failed: %v", err)
	}

	n, err := m.NextUserTableNumber(ctx)
	if err != nil {
		t.Fatalf("NextUserTableNumber failed: %v", err)
	}
	if n != high+1 {
		t.Errorf("allocation ignores virtual numbers: %d, want %d", n, high+1)
	}
}

// Allocated numbers are unique and strictly increasing across any sequence
// of table creations within one transaction.
func TestAllocator_UniqueNumbersProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20

	properties := gopter.NewProperties(parameters)

	properties.Property("created tables get unique increasing numbers", prop.ForAll(
		func(count int) bool {
			store, bs := newTestCatalog(t)
			_, m := beginModel(t, store, bs)
			ctx := context.Background()

			seen := make(map[types.TableNumber]bool)
			var prev types.TableNumber
			for i := 0; i < count; i++ {
				tableName, err := types.NewTableName(tableNameForIndex(i))
				if err != nil {
					return false
				}
				if err := m.InsertTableMetadata(ctx, tableName); err != nil {
					return false
				}
				tablet, ok, err := m.TabletID(ctx, tableName)
				if err != nil || !ok {
					return false
				}
				md, err := m.getTableMetadata(ctx, tablet)
				if err != nil {
					return false
				}
				if seen[md.Number] || md.Number <= prev || md.Number <= NumReservedSystemTableNumbers {
					return false
				}
				seen[md.Number] = true
				prev = md.Number
			}
			return true
		},
		gen.IntRange(1, 12),
	))

	properties.TestingRun(t)
}

// tableNameForIndex gives a distinct valid table name per index.
func tableNameForIndex(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	s := "table_"
	for {
		s += string(letters[i%26])
		if i < 26 {
			return s
		}
		i /= 26
	}
}
