package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"github.com/golang/snappy"

	"github.com/burrowdb/burrow/internal/catalog"
	"github.com/burrowdb/burrow/internal/errors"
	"github.com/burrowdb/burrow/internal/txn"
	"github.com/burrowdb/burrow/pkg/types"
)

// Record is one archived document line in a table archive.
type Record struct {
	ID    types.ID        `json:"id"`
	Value json.RawMessage `json:"value"`
}

// Exporter writes table snapshots to object storage. Each archive is the
// full content of one table at a single snapshot, as snappy-compressed
// JSONL.
type Exporter struct {
	store   *txn.Store
	bs      *catalog.Bootstrap
	storage ObjectStorage
	prefix  string
	logger  *slog.Logger
}

// NewExporter creates an exporter. logger may be nil.
func NewExporter(store *txn.Store, bs *catalog.Bootstrap, storage ObjectStorage, prefix string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Exporter{
		store:   store,
		bs:      bs,
		storage: storage,
		prefix:  prefix,
		logger:  logger,
	}
}

// ExportTable archives one table at the current snapshot. Returns the
// object path and the number of documents written.
func (e *Exporter) ExportTable(ctx context.Context, name types.TableName) (string, int, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return "", 0, err
	}
	m := catalog.NewTableModel(tx, e.bs, e.logger)

	tablet, ok, err := m.TabletID(ctx, name)
	if err != nil {
		return "", 0, err
	}
	if !ok {
		return "", 0, errors.NewNotFoundError(errors.CodeTableNotFound,
			fmt.Sprintf("table %s not found", name))
	}

	docs, err := tx.Scan(ctx, tablet)
	if err != nil {
		return "", 0, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		if err := enc.Encode(Record{ID: doc.ID, Value: doc.Value}); err != nil {
			return "", 0, errors.NewInternalError("failed to encode archive record", err)
		}
	}

	objectPath := path.Join(e.prefix,
		fmt.Sprintf("%s-%d.jsonl.snappy", name, uint64(tx.BaseTimestamp())))
	if err := e.storage.Put(ctx, objectPath, snappy.Encode(nil, buf.Bytes())); err != nil {
		return "", 0, errors.NewStorageError(errors.CodeArchiveFailed,
			fmt.Sprintf("failed to upload archive for %s", name), err)
	}

	e.logger.Info("exported table",
		"table", name.String(),
		"documents", len(docs),
		"object", objectPath)
	return objectPath, len(docs), nil
}

// ExportAll archives every Active user table at the current snapshot and
// returns the object paths.
func (e *Exporter) ExportAll(ctx context.Context) ([]string, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	m := catalog.NewTableModel(tx, e.bs, e.logger)

	entries, err := m.AllTables(ctx)
	if err != nil {
		return nil, err
	}

	var objects []string
	for _, entry := range entries {
		if entry.Meta.State != types.TableStateActive || entry.Meta.Name.IsSystem() {
			continue
		}
		objectPath, _, err := e.ExportTable(ctx, entry.Meta.Name)
		if err != nil {
			return nil, err
		}
		objects = append(objects, objectPath)
	}
	return objects, nil
}

// ReadArchive decodes an archive back into records.
func ReadArchive(data []byte) ([]Record, error) {
	decoded, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress archive: %w", err)
	}

	var records []Record
	dec := json.NewDecoder(bytes.NewReader(decoded))
	for dec.More() {
		var r Record
		if err := dec.Decode(&r); err != nil {
			return nil, fmt.Errorf("corrupt archive record: %w", err)
		}
		records = append(records, r)
	}
	return records, nil
}
