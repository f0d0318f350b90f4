package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/burrowdb/burrow/internal/errors"
	"github.com/burrowdb/burrow/internal/txn"
	"github.com/burrowdb/burrow/pkg/types"
)

// SchemaState is the lifecycle state of a declared schema. A schema is
// submitted Pending, moves to Validated once existing documents are checked
// against it, and to Active when committed as the enforced schema. Failed
// and Overwritten are terminal.
type SchemaState string

const (
	SchemaStatePending     SchemaState = "pending"
	SchemaStateValidated   SchemaState = "validated"
	SchemaStateActive      SchemaState = "active"
	SchemaStateFailed      SchemaState = "failed"
	SchemaStateOverwritten SchemaState = "overwritten"
)

// SchemaMetadata is the persisted form of one schema row in _schemas. Tables
// lists the tables the schema declares; References lists the targets of
// Id-typed fields, which tie those tables to the schema just as declaring
// them does.
type SchemaMetadata struct {
	State       SchemaState       `json:"state"`
	Tables      []types.TableName `json:"tables"`
	References  []types.TableName `json:"references,omitempty"`
	FailedTable types.TableName   `json:"failed_table,omitempty"`
}

// Mentions reports whether the schema references the table, either as a
// declared table or as the target of an Id-typed field.
func (m SchemaMetadata) Mentions(name types.TableName) bool {
	for _, t := range m.Tables {
		if t == name {
			return true
		}
	}
	for _, t := range m.References {
		if t == name {
			return true
		}
	}
	return false
}

// Encode serializes the row for storage.
func (m SchemaMetadata) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeSchemaMetadata parses a persisted schema row.
func DecodeSchemaMetadata(data []byte) (SchemaMetadata, error) {
	var m SchemaMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return SchemaMetadata{}, fmt.Errorf("catalog: corrupt schema metadata: %w", err)
	}
	return m, nil
}

// SchemaEntry pairs a schema row's document id with its decoded metadata.
type SchemaEntry struct {
	ID   types.ID
	Meta SchemaMetadata
}

// SchemaModel manages schema rows in _schemas and enforces schema
// constraints against table deletion, bound to one open transaction.
type SchemaModel struct {
	tx *txn.Transaction
	bs *Bootstrap
}

// NewSchemaModel binds a schema model to an open transaction.
func NewSchemaModel(tx *txn.Transaction, bs *Bootstrap) *SchemaModel {
	return &SchemaModel{tx: tx, bs: bs}
}

// SubmitPending stores a new schema in state Pending. Any schema still
// Pending is overwritten: only one schema is ever in flight.
func (s *SchemaModel) SubmitPending(ctx context.Context, md SchemaMetadata) (types.ID, error) {
	pending, err := s.GetByState(ctx, SchemaStatePending)
	if err != nil {
		return types.ID{}, err
	}
	for _, e := range pending {
		e.Meta.State = SchemaStateOverwritten
		if err := s.replace(ctx, e.ID, e.Meta); err != nil {
			return types.ID{}, err
		}
	}

	md.State = SchemaStatePending
	id, err := s.tx.NewID()
	if err != nil {
		return types.ID{}, errors.NewInternalError("failed to generate schema id", err)
	}
	data, err := md.Encode()
	if err != nil {
		return types.ID{}, errors.NewInternalError("failed to encode schema metadata", err)
	}
	if err := s.tx.Insert(ctx, s.bs.Schemas, id, data); err != nil {
		return types.ID{}, err
	}
	return id, nil
}

// MarkValidated moves a Pending schema to Validated.
func (s *SchemaModel) MarkValidated(ctx context.Context, id types.ID) error {
	return s.transition(ctx, id, SchemaStatePending, SchemaStateValidated)
}

// MarkActive moves a Validated schema to Active, overwriting the previously
// active schema if any.
func (s *SchemaModel) MarkActive(ctx context.Context, id types.ID) error {
	active, err := s.GetByState(ctx, SchemaStateActive)
	if err != nil {
		return err
	}
	for _, e := range active {
		if e.ID == id {
			continue
		}
		e.Meta.State = SchemaStateOverwritten
		if err := s.replace(ctx, e.ID, e.Meta); err != nil {
			return err
		}
	}
	return s.transition(ctx, id, SchemaStateValidated, SchemaStateActive)
}

// MarkFailed moves a schema to Failed, recording the table that invalidated
// it.
func (s *SchemaModel) MarkFailed(ctx context.Context, id types.ID, table types.TableName) error {
	md, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	md.State = SchemaStateFailed
	md.FailedTable = table
	return s.replace(ctx, id, md)
}

// GetByState returns every schema row currently in the given state.
func (s *SchemaModel) GetByState(ctx context.Context, state SchemaState) ([]SchemaEntry, error) {
	rows, err := s.tx.Scan(ctx, s.bs.Schemas)
	if err != nil {
		return nil, err
	}
	var entries []SchemaEntry
	for _, row := range rows {
		md, err := DecodeSchemaMetadata(row.Value)
		if err != nil {
			return nil, errors.NewInternalError("corrupt schema metadata", err)
		}
		if md.State == state {
			entries = append(entries, SchemaEntry{ID: row.ID, Meta: md})
		}
	}
	return entries, nil
}

// EnforceTableDeletion vetoes deleting a table the active schema references.
// A validated-but-not-yet-active schema referencing the table does not block
// the delete: that schema is marked failed, recording the table name, since
// it can no longer be committed as written.
func (s *SchemaModel) EnforceTableDeletion(ctx context.Context, name types.TableName) error {
	active, err := s.GetByState(ctx, SchemaStateActive)
	if err != nil {
		return err
	}
	for _, e := range active {
		if e.Meta.Mentions(name) {
			return errors.NewConflictError(errors.CodeSchemaInUse,
				fmt.Sprintf("Table %q that appears in schema must exist", name))
		}
	}

	validated, err := s.GetByState(ctx, SchemaStateValidated)
	if err != nil {
		return err
	}
	for _, e := range validated {
		if e.Meta.Mentions(name) {
			if err := s.MarkFailed(ctx, e.ID, name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SchemaModel) get(ctx context.Context, id types.ID) (SchemaMetadata, error) {
	doc, err := s.tx.Get(ctx, s.bs.Schemas, id)
	if err != nil {
		return SchemaMetadata{}, err
	}
	if doc == nil {
		return SchemaMetadata{}, errors.NewNotFoundError(errors.CodeDocumentNotFound,
			fmt.Sprintf("schema %s not found", id))
	}
	md, err := DecodeSchemaMetadata(doc.Value)
	if err != nil {
		return SchemaMetadata{}, errors.NewInternalError("corrupt schema metadata", err)
	}
	return md, nil
}

func (s *SchemaModel) transition(ctx context.Context, id types.ID, from, to SchemaState) error {
	md, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if md.State != from {
		return errors.NewInvalidStateError(errors.CodeSchemaState,
			fmt.Sprintf("schema %s is %s, not %s", id, md.State, from))
	}
	md.State = to
	return s.replace(ctx, id, md)
}

func (s *SchemaModel) replace(ctx context.Context, id types.ID, md SchemaMetadata) error {
	data, err := md.Encode()
	if err != nil {
		return errors.NewInternalError("failed to encode schema metadata", err)
	}
	return s.tx.Replace(ctx, s.bs.Schemas, id, data)
}
