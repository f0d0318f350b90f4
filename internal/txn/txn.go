// Package txn provides the transactional substrate of the document store:
// snapshot-isolated transactions over the committed multi-version store,
// with read-your-own-writes inside a transaction and optimistic conflict
// detection at commit time.
package txn

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/burrowdb/burrow/internal/bloom"
	"github.com/burrowdb/burrow/internal/errors"
	"github.com/burrowdb/burrow/internal/persist"
	"github.com/burrowdb/burrow/pkg/types"
)

// commitRecord summarizes one committed transaction for conflict checks
// against transactions that were in flight when it committed.
type commitRecord struct {
	ts      persist.Timestamp
	txnID   uuid.UUID
	tablets map[types.ID]struct{}
	keys    map[persist.Key]struct{}
	summary *bloom.Filter
}

// Store coordinates transactions over one persist.Store. It owns the commit
// lock, the commit timestamp, and the in-memory log of committed write sets
// used for conflict detection. Transactions are cheap; a Store is long-lived.
type Store struct {
	persist *persist.Store
	idGen   *types.IDGenerator
	logger  *slog.Logger

	mu      sync.Mutex
	lastTs  persist.Timestamp
	commits []commitRecord
}

// NewStore wraps an opened persist.Store. logger may be nil.
func NewStore(ctx context.Context, p *persist.Store, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	lastTs, err := p.LastTimestamp(ctx)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodePersistFailed, "failed to read last commit timestamp", err)
	}
	return &Store{
		persist: p,
		idGen:   types.NewIDGenerator(),
		logger:  logger,
		lastTs:  lastTs,
	}, nil
}

// IDGenerator returns the store's shared document id generator.
func (s *Store) IDGenerator() *types.IDGenerator {
	return s.idGen
}

// Persist returns the underlying committed store.
func (s *Store) Persist() *persist.Store {
	return s.persist
}

// Begin starts a transaction reading from the current committed snapshot.
func (s *Store) Begin(ctx context.Context) (*Transaction, error) {
	s.mu.Lock()
	baseTs := s.lastTs
	s.mu.Unlock()

	return &Transaction{
		store:       s,
		id:          uuid.New(),
		baseTs:      baseTs,
		writes:      make(map[persist.Key]writeEntry),
		readKeys:    make(map[persist.Key]struct{}),
		readTablets: make(map[types.ID]struct{}),
		countDeltas: make(map[types.ID]int64),
	}, nil
}

// writeEntry is one buffered write. value is nil for deletes.
type writeEntry struct {
	value   []byte
	deleted bool
}

// Transaction is a snapshot-isolated transaction. It is not safe for
// concurrent use; the catalog's cooperative single-threaded model matches
// this. Writes buffer in a private overlay and become durable only on
// Commit.
type Transaction struct {
	store  *Store
	id     uuid.UUID
	baseTs persist.Timestamp

	writes      map[persist.Key]writeEntry
	readKeys    map[persist.Key]struct{}
	readTablets map[types.ID]struct{}
	countDeltas map[types.ID]int64

	done bool
}

// ID returns the transaction id.
func (t *Transaction) ID() uuid.UUID {
	return t.id
}

// BaseTimestamp returns the snapshot timestamp the transaction reads at.
func (t *Transaction) BaseTimestamp() persist.Timestamp {
	return t.baseTs
}

// NewID generates a fresh document id.
func (t *Transaction) NewID() (types.ID, error) {
	return t.store.idGen.Generate()
}

// Get returns the document visible to this transaction, or nil if it does
// not exist. The read is recorded as a point dependency.
func (t *Transaction) Get(ctx context.Context, tablet, doc types.ID) (*persist.Document, error) {
	key := persist.Key{Tablet: tablet, Doc: doc}
	t.readKeys[key] = struct{}{}

	if w, ok := t.writes[key]; ok {
		if w.deleted {
			return nil, nil
		}
		return &persist.Document{ID: doc, Value: w.value}, nil
	}

	d, err := t.store.persist.GetAt(ctx, tablet, doc, t.baseTs)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodePersistFailed, "failed to read document", err)
	}
	return d, nil
}

// Insert writes a new document. It fails if a document with the same id is
// already visible. The owning tablet's count delta is incremented.
func (t *Transaction) Insert(ctx context.Context, tablet, doc types.ID, value []byte) error {
	existing, err := t.Get(ctx, tablet, doc)
	if err != nil {
		return err
	}
	if existing != nil {
		return errors.NewInternalError(
			fmt.Sprintf("insert of existing document %s", doc), nil)
	}

	t.writes[persist.Key{Tablet: tablet, Doc: doc}] = writeEntry{value: value}
	t.countDeltas[tablet]++
	return nil
}

// Replace overwrites an existing document in place. The document count is
// unchanged.
func (t *Transaction) Replace(ctx context.Context, tablet, doc types.ID, value []byte) error {
	existing, err := t.Get(ctx, tablet, doc)
	if err != nil {
		return err
	}
	if existing == nil {
		return errors.NewNotFoundError(errors.CodeDocumentNotFound,
			fmt.Sprintf("replace of missing document %s", doc))
	}

	t.writes[persist.Key{Tablet: tablet, Doc: doc}] = writeEntry{value: value}
	return nil
}

// Delete removes a visible document. The owning tablet's count delta is
// decremented.
func (t *Transaction) Delete(ctx context.Context, tablet, doc types.ID) error {
	existing, err := t.Get(ctx, tablet, doc)
	if err != nil {
		return err
	}
	if existing == nil {
		return errors.NewNotFoundError(errors.CodeDocumentNotFound,
			fmt.Sprintf("delete of missing document %s", doc))
	}

	t.writes[persist.Key{Tablet: tablet, Doc: doc}] = writeEntry{deleted: true}
	t.countDeltas[tablet]--
	return nil
}

// Scan returns all documents of a tablet visible to this transaction,
// ordered by document id. It records a read dependency on the whole tablet.
func (t *Transaction) Scan(ctx context.Context, tablet types.ID) ([]persist.Document, error) {
	t.RecordTableRead(tablet)

	base, err := t.store.persist.ScanAt(ctx, tablet, t.baseTs)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodePersistFailed, "failed to scan tablet", err)
	}

	// Merge the overlay: overlay entries win over snapshot versions.
	overlay := make(map[types.ID]writeEntry)
	for key, w := range t.writes {
		if key.Tablet == tablet {
			overlay[key.Doc] = w
		}
	}
	if len(overlay) == 0 {
		return base, nil
	}

	merged := make([]persist.Document, 0, len(base)+len(overlay))
	for _, d := range base {
		if w, ok := overlay[d.ID]; ok {
			delete(overlay, d.ID)
			if w.deleted {
				continue
			}
			merged = append(merged, persist.Document{ID: d.ID, Value: w.value})
			continue
		}
		merged = append(merged, d)
	}
	for doc, w := range overlay {
		if !w.deleted {
			merged = append(merged, persist.Document{ID: doc, Value: w.value})
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ID.Compare(merged[j].ID) < 0
	})
	return merged, nil
}

// RecordTableRead registers a read dependency covering a tablet's entire
// primary key range without reading any documents. Any concurrent commit
// that writes into the tablet then conflicts with this transaction.
func (t *Transaction) RecordTableRead(tablet types.ID) {
	t.readTablets[tablet] = struct{}{}
}

// SnapshotCount returns the tablet's document count as of the transaction's
// base snapshot, before in-transaction deltas.
func (t *Transaction) SnapshotCount(ctx context.Context, tablet types.ID) (uint64, error) {
	count, err := t.store.persist.CountAt(ctx, tablet, t.baseTs)
	if err != nil {
		return 0, errors.NewStorageError(errors.CodePersistFailed, "failed to count tablet", err)
	}
	return count, nil
}

// CountDelta returns the signed number of documents this transaction has
// added to (or removed from) a tablet so far.
func (t *Transaction) CountDelta(tablet types.ID) int64 {
	return t.countDeltas[tablet]
}

// Commit validates the transaction against commits that happened after its
// base snapshot and, if no conflict is found, applies its write set at the
// next timestamp. A conflict aborts the transaction with a retryable
// WriteConflict; the caller retries the whole transaction.
func (t *Transaction) Commit(ctx context.Context) error {
	if t.done {
		return errors.NewInternalError("commit of finished transaction", nil)
	}
	t.done = true

	if len(t.writes) == 0 {
		// Read-only transactions read a consistent snapshot; nothing to validate.
		return nil
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.commits) - 1; i >= 0; i-- {
		c := &s.commits[i]
		if c.ts <= t.baseTs {
			break
		}
		if key, ok := t.conflictsWith(c); ok {
			s.logger.Debug("commit conflict",
				"txn", t.id.String(),
				"conflicting_txn", c.txnID.String(),
				"key", key)
			return errors.NewConflictError(errors.CodeWriteConflict,
				fmt.Sprintf("transaction read data modified at timestamp %d", c.ts))
		}
	}

	ts := s.lastTs + 1
	writes := t.orderedWrites()
	if err := s.persist.Apply(ctx, ts, writes); err != nil {
		return errors.NewStorageError(errors.CodePersistFailed, "failed to apply commit", err)
	}
	s.lastTs = ts
	s.commits = append(s.commits, t.record(ts))

	s.logger.Debug("committed transaction",
		"txn", t.id.String(),
		"ts", uint64(ts),
		"writes", len(writes))
	return nil
}

// conflictsWith reports whether a later commit wrote anything this
// transaction read. Whole-tablet reads compare against the commit's tablet
// set; point reads go through the bloom summary first and are confirmed
// against the exact key set.
func (t *Transaction) conflictsWith(c *commitRecord) (string, bool) {
	for tablet := range t.readTablets {
		if _, ok := c.tablets[tablet]; ok {
			return tablet.String(), true
		}
	}
	for key := range t.readKeys {
		if !c.summary.Contains([]byte(key.String())) {
			continue
		}
		if _, ok := c.keys[key]; ok {
			return key.String(), true
		}
	}
	return "", false
}

// orderedWrites returns the final write set in key order.
func (t *Transaction) orderedWrites() []persist.WriteOp {
	keys := make([]persist.Key, 0, len(t.writes))
	for key := range t.writes {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if c := keys[i].Tablet.Compare(keys[j].Tablet); c != 0 {
			return c < 0
		}
		return keys[i].Doc.Compare(keys[j].Doc) < 0
	})

	writes := make([]persist.WriteOp, 0, len(keys))
	for _, key := range keys {
		w := t.writes[key]
		writes = append(writes, persist.WriteOp{Key: key, Value: w.value, Deleted: w.deleted})
	}
	return writes
}

// record builds the commit record for conflict checks by later commits.
func (t *Transaction) record(ts persist.Timestamp) commitRecord {
	tablets := make(map[types.ID]struct{})
	keys := make(map[persist.Key]struct{}, len(t.writes))
	summary := bloom.NewWithEstimates(len(t.writes), 0.01)
	for key := range t.writes {
		tablets[key.Tablet] = struct{}{}
		keys[key] = struct{}{}
		summary.Add([]byte(key.String()))
	}
	return commitRecord{
		ts:      ts,
		txnID:   t.id,
		tablets: tablets,
		keys:    keys,
		summary: summary,
	}
}
