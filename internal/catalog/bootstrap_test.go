package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/burrowdb/burrow/internal/persist"
	"github.com/burrowdb/burrow/internal/txn"
	"github.com/burrowdb/burrow/pkg/types"
)

func TestBootstrap_ProvisionsFreshStore(t *testing.T) {
	store, bs := newTestCatalog(t)
	_, m := beginModel(t, store, bs)
	ctx := context.Background()

	entries, err := m.AllTables(ctx)
	if err != nil {
		t.Fatalf("AllTables failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("fresh catalog has %d rows, want 4", len(entries))
	}

	byName := make(map[types.TableName]TableMetadata)
	for _, e := range entries {
		byName[e.Meta.Name] = e.Meta
	}
	for _, tableName := range BootstrapTableNames() {
		md, ok := byName[tableName]
		if !ok {
			t.Errorf("missing bootstrap table %s", tableName)
			continue
		}
		if md.State != types.TableStateActive {
			t.Errorf("%s state = %s, want active", tableName, md.State)
		}
		if md.Number != bootstrapTableNumbers[tableName] {
			t.Errorf("%s number = %d, want %d", tableName, md.Number, bootstrapTableNumbers[tableName])
		}
	}

	// Bootstrap tables do not count as user tables.
	n, err := m.CountUserTables(ctx)
	if err != nil {
		t.Fatalf("CountUserTables failed: %v", err)
	}
	if n != 0 {
		t.Errorf("fresh catalog has %d user tables", n)
	}

	// Each bootstrap table carries the two default indexes.
	indexes, err := m.Indexes().AllIndexesOnTable(ctx, bs.Tables)
	if err != nil {
		t.Fatalf("AllIndexesOnTable failed: %v", err)
	}
	if len(indexes) != 2 {
		t.Errorf("_tables has %d indexes, want 2", len(indexes))
	}
}

func TestBootstrap_ReopenFindsSameTablets(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "store.db")

	p, err := persist.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open persist store: %v", err)
	}
	store, err := txn.NewStore(ctx, p, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	first, err := Open(ctx, store, nil)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	p2, err := persist.Open(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer p2.Close()
	store2, err := txn.NewStore(ctx, p2, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	second, err := Open(ctx, store2, nil)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}

	if *first != *second {
		t.Errorf("reopen changed bootstrap tablets: %+v vs %+v", first, second)
	}
}
