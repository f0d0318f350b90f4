package catalog

import (
	"context"
	"strings"
	"testing"

	burrowerrors "github.com/burrowdb/burrow/internal/errors"
	"github.com/burrowdb/burrow/pkg/types"
)

func submitSchema(t *testing.T, s *SchemaModel, md SchemaMetadata) types.ID {
	t.Helper()
	id, err := s.SubmitPending(context.Background(), md)
	if err != nil {
		t.Fatalf("SubmitPending failed: %v", err)
	}
	return id
}

func TestSchemaModel_Lifecycle(t *testing.T) {
	store, bs := newTestCatalog(t)
	_, m := beginModel(t, store, bs)
	ctx := context.Background()
	s := m.Schemas()

	id := submitSchema(t, s, SchemaMetadata{Tables: []types.TableName{name(t, "users")}})

	// Active requires Validated first.
	if err := s.MarkActive(ctx, id); err == nil {
		t.Fatal("activating a pending schema should fail")
	}

	if err := s.MarkValidated(ctx, id); err != nil {
		t.Fatalf("MarkValidated failed: %v", err)
	}
	if err := s.MarkActive(ctx, id); err != nil {
		t.Fatalf("MarkActive failed: %v", err)
	}

	active, err := s.GetByState(ctx, SchemaStateActive)
	if err != nil {
		t.Fatalf("GetByState failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != id {
		t.Errorf("active schemas = %v", active)
	}
}

func TestSchemaModel_SubmitOverwritesPending(t *testing.T) {
	store, bs := newTestCatalog(t)
	_, m := beginModel(t, store, bs)
	ctx := context.Background()
	s := m.Schemas()

	first := submitSchema(t, s, SchemaMetadata{Tables: []types.TableName{name(t, "users")}})
	second := submitSchema(t, s, SchemaMetadata{Tables: []types.TableName{name(t, "orders")}})

	pending, err := s.GetByState(ctx, SchemaStatePending)
	if err != nil {
		t.Fatalf("GetByState failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second {
		t.Errorf("pending schemas = %v, want only %s", pending, second)
	}
	overwritten, err := s.GetByState(ctx, SchemaStateOverwritten)
	if err != nil {
		t.Fatalf("GetByState failed: %v", err)
	}
	if len(overwritten) != 1 || overwritten[0].ID != first {
		t.Errorf("overwritten schemas = %v, want %s", overwritten, first)
	}
}

func TestSchemaModel_ActiveSchemaBlocksDelete(t *testing.T) {
	store, bs := newTestCatalog(t)
	_, m := beginModel(t, store, bs)
	ctx := context.Background()
	users := name(t, "users")

	if err := m.InsertTableMetadata(ctx, users); err != nil {
		t.Fatalf("InsertTableMetadata failed: %v", err)
	}
	id := submitSchema(t, m.Schemas(), SchemaMetadata{Tables: []types.TableName{users}})
	if err := m.Schemas().MarkValidated(ctx, id); err != nil {
		t.Fatalf("MarkValidated failed: %v", err)
	}
	if err := m.Schemas().MarkActive(ctx, id); err != nil {
		t.Fatalf("MarkActive failed: %v", err)
	}

	err := m.DeleteTable(ctx, users)
	if err == nil {
		t.Fatal("deleting a table in the active schema should fail")
	}
	if burrowerrors.GetCode(err) != burrowerrors.CodeSchemaInUse {
		t.Errorf("code = %s, want SchemaInUse", burrowerrors.GetCode(err))
	}
	if !strings.Contains(err.Error(), `Table "users" that appears in schema must exist`) {
		t.Errorf("error does not name the table: %v", err)
	}

	// The table survives.
	exists, err := m.TableExists(ctx, users)
	if err != nil {
		t.Fatalf("TableExists failed: %v", err)
	}
	if !exists {
		t.Error("blocked delete still removed the table")
	}
}

func TestSchemaModel_IdReferenceBlocksDelete(t *testing.T) {
	store, bs := newTestCatalog(t)
	_, m := beginModel(t, store, bs)
	ctx := context.Background()
	users := name(t, "users")
	orders := name(t, "orders")

	if err := m.InsertTableMetadata(ctx, users); err != nil {
		t.Fatalf("InsertTableMetadata failed: %v", err)
	}
	if err := m.InsertTableMetadata(ctx, orders); err != nil {
		t.Fatalf("InsertTableMetadata failed: %v", err)
	}

	// The schema declares orders only; users appears as an Id reference
	// target in orders' fields.
	id := submitSchema(t, m.Schemas(), SchemaMetadata{
		Tables:     []types.TableName{orders},
		References: []types.TableName{users},
	})
	if err := m.Schemas().MarkValidated(ctx, id); err != nil {
		t.Fatalf("MarkValidated failed: %v", err)
	}
	if err := m.Schemas().MarkActive(ctx, id); err != nil {
		t.Fatalf("MarkActive failed: %v", err)
	}

	if err := m.DeleteTable(ctx, users); err == nil {
		t.Fatal("deleting an Id-referenced table should fail")
	}
}

func TestSchemaModel_ValidatedSchemaFailsInsteadOfBlocking(t *testing.T) {
	store, bs := newTestCatalog(t)
	_, m := beginModel(t, store, bs)
	ctx := context.Background()
	users := name(t, "users")

	if err := m.InsertTableMetadata(ctx, users); err != nil {
		t.Fatalf("InsertTableMetadata failed: %v", err)
	}
	id := submitSchema(t, m.Schemas(), SchemaMetadata{Tables: []types.TableName{users}})
	if err := m.Schemas().MarkValidated(ctx, id); err != nil {
		t.Fatalf("MarkValidated failed: %v", err)
	}

	// The delete proceeds; the schema transitions to Failed and records
	// the offending table.
	if err := m.DeleteTable(ctx, users); err != nil {
		t.Fatalf("DeleteTable failed: %v", err)
	}
	exists, err := m.TableExists(ctx, users)
	if err != nil {
		t.Fatalf("TableExists failed: %v", err)
	}
	if exists {
		t.Error("table still exists after delete")
	}

	failed, err := m.Schemas().GetByState(ctx, SchemaStateFailed)
	if err != nil {
		t.Fatalf("GetByState failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != id {
		t.Fatalf("failed schemas = %v", failed)
	}
	if failed[0].Meta.FailedTable != users {
		t.Errorf("failed table = %s, want %s", failed[0].Meta.FailedTable, users)
	}
}
