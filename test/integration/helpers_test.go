// Package integration provides end-to-end tests over the full stack: the
// persist store, the transaction layer, the table catalog, and archiving.
package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"

	"github.com/burrowdb/burrow/internal/catalog"
	"github.com/burrowdb/burrow/internal/persist"
	"github.com/burrowdb/burrow/internal/txn"
	"github.com/burrowdb/burrow/pkg/types"
)

func init() {
	// Optional local overrides (e.g. BURROW_LOG_LEVEL, S3 test settings).
	_ = godotenv.Load("testdata/.env")
}

type env struct {
	persist *persist.Store
	store   *txn.Store
	bs      *catalog.Bootstrap
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	p, err := persist.Open(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("failed to open persist store: %v", err)
	}
	t.Cleanup(func() { p.Close() })

	store, err := txn.NewStore(ctx, p, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	bs, err := catalog.Open(ctx, store, nil)
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	return &env{persist: p, store: store, bs: bs}
}

func (e *env) begin(t *testing.T) (*txn.Transaction, *catalog.TableModel) {
	t.Helper()
	tx, err := e.store.Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	return tx, catalog.NewTableModel(tx, e.bs, nil)
}

// persistOpen opens a persist store at an explicit path, for tests that
// close and reopen the same database.
func persistOpen(dbPath string) (*persist.Store, error) {
	return persist.Open(dbPath)
}

// mustStore layers the transaction store and catalog over an open persist
// store.
func mustStore(t *testing.T, ctx context.Context, p *persist.Store) (*txn.Store, *catalog.Bootstrap) {
	t.Helper()
	store, err := txn.NewStore(ctx, p, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	bs, err := catalog.Open(ctx, store, nil)
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	return store, bs
}

func tableName(t *testing.T, s string) types.TableName {
	t.Helper()
	n, err := types.NewTableName(s)
	if err != nil {
		t.Fatalf("invalid table name %q: %v", s, err)
	}
	return n
}
