package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/burrowdb/burrow/internal/errors"
	"github.com/burrowdb/burrow/internal/txn"
	"github.com/burrowdb/burrow/pkg/types"
)

// The two default indexes every table gets at creation.
const (
	IndexByID           = "by_id"
	IndexByCreationTime = "by_creation_time"
)

// defaultIndexFields maps a default index name to its indexed fields.
var defaultIndexFields = map[string][]string{
	IndexByID:           {"_id"},
	IndexByCreationTime: {"_creationTime"},
}

// IndexMetadata is the persisted form of one index row in _index.
type IndexMetadata struct {
	TableID types.ID `json:"table_id"`
	Name    string   `json:"name"`
	Fields  []string `json:"fields"`
	Enabled bool     `json:"enabled"`
}

// NewEnabledIndex builds a default index row for a table. Only the default
// index names are known here; user-defined indexes supply their own fields.
func NewEnabledIndex(tablet types.ID, name string) IndexMetadata {
	return IndexMetadata{
		TableID: tablet,
		Name:    name,
		Fields:  defaultIndexFields[name],
		Enabled: true,
	}
}

// Encode serializes the row for storage.
func (m IndexMetadata) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeIndexMetadata parses a persisted index row.
func DecodeIndexMetadata(data []byte) (IndexMetadata, error) {
	var m IndexMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return IndexMetadata{}, fmt.Errorf("catalog: corrupt index metadata: %w", err)
	}
	return m, nil
}

// IndexEntry pairs an index row's document id with its decoded metadata.
type IndexEntry struct {
	ID   types.ID
	Meta IndexMetadata
}

// IndexModel manages index metadata rows in _index, bound to one open
// transaction.
type IndexModel struct {
	tx *txn.Transaction
	bs *Bootstrap
}

// NewIndexModel binds an index manager to an open transaction.
func NewIndexModel(tx *txn.Transaction, bs *Bootstrap) *IndexModel {
	return &IndexModel{tx: tx, bs: bs}
}

// Insert writes a new index metadata row and returns its id.
func (m *IndexModel) Insert(ctx context.Context, md IndexMetadata) (types.ID, error) {
	id, err := m.tx.NewID()
	if err != nil {
		return types.ID{}, errors.NewInternalError("failed to generate index id", err)
	}
	data, err := md.Encode()
	if err != nil {
		return types.ID{}, errors.NewInternalError("failed to encode index metadata", err)
	}
	if err := m.tx.Insert(ctx, m.bs.Index, id, data); err != nil {
		return types.ID{}, err
	}
	return id, nil
}

// AllIndexesOnTable returns every index row attached to a table.
func (m *IndexModel) AllIndexesOnTable(ctx context.Context, tablet types.ID) ([]IndexEntry, error) {
	rows, err := m.tx.Scan(ctx, m.bs.Index)
	if err != nil {
		return nil, err
	}
	var indexes []IndexEntry
	for _, row := range rows {
		md, err := DecodeIndexMetadata(row.Value)
		if err != nil {
			return nil, errors.NewInternalError("corrupt index metadata", err)
		}
		if md.TableID == tablet {
			indexes = append(indexes, IndexEntry{ID: row.ID, Meta: md})
		}
	}
	return indexes, nil
}

// Delete removes an index metadata row.
func (m *IndexModel) Delete(ctx context.Context, id types.ID) error {
	return m.tx.Delete(ctx, m.bs.Index, id)
}
