package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/burrowdb/burrow/internal/persist"
	"github.com/burrowdb/burrow/internal/txn"
	"github.com/burrowdb/burrow/pkg/types"
)

func newTestCatalog(t *testing.T) (*txn.Store, *Bootstrap) {
	t.Helper()
	p, err := persist.Open(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("failed to open persist store: %v", err)
	}
	t.Cleanup(func() { p.Close() })

	store, err := txn.NewStore(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	bs, err := Open(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	return store, bs
}

func beginModel(t *testing.T, store *txn.Store, bs *Bootstrap) (*txn.Transaction, *TableModel) {
	t.Helper()
	tx, err := store.Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	return tx, NewTableModel(tx, bs, nil)
}

func mustCommit(t *testing.T, tx *txn.Transaction) {
	t.Helper()
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
}

func name(t *testing.T, s string) types.TableName {
	t.Helper()
	n, err := types.NewTableName(s)
	if err != nil {
		t.Fatalf("invalid table name %q: %v", s, err)
	}
	return n
}
