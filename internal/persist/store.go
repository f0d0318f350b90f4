package persist

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"

	"github.com/burrowdb/burrow/pkg/types"
)

// Timestamp is a commit timestamp. Commits are totally ordered; a
// transaction reads at its base timestamp and commits at a later one.
type Timestamp uint64

// Key identifies one document: the tablet that stores it and its id.
type Key struct {
	Tablet types.ID
	Doc    types.ID
}

func (k Key) String() string {
	return k.Tablet.String() + "/" + k.Doc.String()
}

// WriteOp is one entry of a commit's write set. Value is the raw document
// bytes, nil for tombstones.
type WriteOp struct {
	Key     Key
	Value   []byte
	Deleted bool
}

// Document is a resolved document version.
type Document struct {
	ID    types.ID
	Value []byte
}

// Store is the committed multi-version document store, backed by a single
// SQLite database. Values are snappy-compressed.
type Store struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool (concurrent readers)
	dbPath string
	mu     sync.Mutex // Write-only lock (reads don't need this)

	insertVersionStmt *sql.Stmt
	getAtStmt         *sql.Stmt
	countAtStmt       *sql.Stmt
}

// Open opens (creating if necessary) the store at dbPath.
func Open(dbPath string) (*Store, error) {
	// Write connection: single writer with WAL mode
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("persist: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // Single writer
	db.SetMaxIdleConns(1)

	// Read connection pool: concurrent readers
	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		db:     db,
		readDB: readDB,
		dbPath: dbPath,
	}

	if err := s.initSchema(); err != nil {
		readDB.Close()
		db.Close()
		return nil, fmt.Errorf("persist: failed to initialize schema: %w", err)
	}

	if err := s.prepareStatements(); err != nil {
		readDB.Close()
		db.Close()
		return nil, fmt.Errorf("persist: failed to prepare statements: %w", err)
	}

	return s, nil
}

// initSchema creates all required tables and indexes.
func (s *Store) initSchema() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func (s *Store) prepareStatements() error {
	insertStmt, err := s.db.Prepare(`
		INSERT INTO documents (tablet_id, doc_id, ts, value, deleted)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	s.insertVersionStmt = insertStmt

	getStmt, err := s.readDB.Prepare(`
		SELECT value, deleted FROM documents
		WHERE tablet_id = ? AND doc_id = ? AND ts <= ?
		ORDER BY ts DESC LIMIT 1`)
	if err != nil {
		return err
	}
	s.getAtStmt = getStmt

	countStmt, err := s.readDB.Prepare(`
		SELECT COUNT(*) FROM documents d
		JOIN (
			SELECT doc_id, MAX(ts) AS max_ts FROM documents
			WHERE tablet_id = ? AND ts <= ?
			GROUP BY doc_id
		) latest ON d.doc_id = latest.doc_id AND d.ts = latest.max_ts
		WHERE d.tablet_id = ? AND d.deleted = 0`)
	if err != nil {
		return err
	}
	s.countAtStmt = countStmt

	return nil
}

// LastTimestamp returns the highest commit timestamp in the store, 0 for a
// fresh store.
func (s *Store) LastTimestamp(ctx context.Context) (Timestamp, error) {
	var ts uint64
	err := s.readDB.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE key = 'last_ts'`).Scan(&ts)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("persist: failed to read last timestamp: %w", err)
	}
	return Timestamp(ts), nil
}

// GetAt returns the document as of the snapshot at ts, or nil if it does not
// exist (never written, or tombstoned) at that snapshot.
func (s *Store) GetAt(ctx context.Context, tablet, doc types.ID, ts Timestamp) (*Document, error) {
	var value []byte
	var deleted int
	err := s.getAtStmt.QueryRowContext(ctx, tablet.String(), doc.String(), uint64(ts)).
		Scan(&value, &deleted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persist: failed to get document: %w", err)
	}
	if deleted != 0 {
		return nil, nil
	}

	decoded, err := snappy.Decode(nil, value)
	if err != nil {
		return nil, fmt.Errorf("persist: failed to decompress document: %w", err)
	}
	return &Document{ID: doc, Value: decoded}, nil
}

// ScanAt returns all documents of a tablet as of the snapshot at ts, ordered
// by document id.
func (s *Store) ScanAt(ctx context.Context, tablet types.ID, ts Timestamp) ([]Document, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT d.doc_id, d.value FROM documents d
		JOIN (
			SELECT doc_id, MAX(ts) AS max_ts FROM documents
			WHERE tablet_id = ? AND ts <= ?
			GROUP BY doc_id
		) latest ON d.doc_id = latest.doc_id AND d.ts = latest.max_ts
		WHERE d.tablet_id = ? AND d.deleted = 0
		ORDER BY d.doc_id ASC`,
		tablet.String(), uint64(ts), tablet.String())
	if err != nil {
		return nil, fmt.Errorf("persist: failed to scan tablet: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var docID string
		var value []byte
		if err := rows.Scan(&docID, &value); err != nil {
			return nil, fmt.Errorf("persist: failed to scan row: %w", err)
		}
		id, err := types.ParseID(docID)
		if err != nil {
			return nil, fmt.Errorf("persist: corrupt document id %q: %w", docID, err)
		}
		decoded, err := snappy.Decode(nil, value)
		if err != nil {
			return nil, fmt.Errorf("persist: failed to decompress document: %w", err)
		}
		docs = append(docs, Document{ID: id, Value: decoded})
	}
	return docs, rows.Err()
}

// CountAt returns the number of live documents in a tablet as of the
// snapshot at ts. This is the snapshot count oracle.
func (s *Store) CountAt(ctx context.Context, tablet types.ID, ts Timestamp) (uint64, error) {
	var count uint64
	err := s.countAtStmt.QueryRowContext(ctx, tablet.String(), uint64(ts), tablet.String()).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("persist: failed to count tablet: %w", err)
	}
	return count, nil
}

// Apply durably applies one commit's write set at timestamp ts. The caller
// (the transaction store) is responsible for ordering and conflict checks;
// ts must be greater than every previously applied timestamp.
func (s *Store) Apply(ctx context.Context, ts Timestamp, writes []WriteOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist: failed to begin commit: %w", err)
	}
	defer tx.Rollback()

	insert := tx.StmtContext(ctx, s.insertVersionStmt)
	for _, w := range writes {
		var value []byte
		deleted := 0
		if w.Deleted {
			deleted = 1
		} else {
			value = snappy.Encode(nil, w.Value)
		}
		if _, err := insert.ExecContext(ctx,
			w.Key.Tablet.String(), w.Key.Doc.String(), uint64(ts), value, deleted); err != nil {
			return fmt.Errorf("persist: failed to write version: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('last_ts', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		uint64(ts)); err != nil {
		return fmt.Errorf("persist: failed to advance timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persist: failed to commit: %w", err)
	}
	return nil
}

// BootstrapTablets returns the registered bootstrap tablet ids by table
// name. Empty for a fresh store.
func (s *Store) BootstrapTablets(ctx context.Context) (map[string]types.ID, error) {
	rows, err := s.readDB.QueryContext(ctx, `SELECT name, tablet_id FROM bootstrap`)
	if err != nil {
		return nil, fmt.Errorf("persist: failed to read bootstrap tablets: %w", err)
	}
	defer rows.Close()

	tablets := make(map[string]types.ID)
	for rows.Next() {
		var name, tabletID string
		if err := rows.Scan(&name, &tabletID); err != nil {
			return nil, fmt.Errorf("persist: failed to scan bootstrap row: %w", err)
		}
		id, err := types.ParseID(tabletID)
		if err != nil {
			return nil, fmt.Errorf("persist: corrupt bootstrap tablet id %q: %w", tabletID, err)
		}
		tablets[name] = id
	}
	return tablets, rows.Err()
}

// SaveBootstrapTablets registers the bootstrap tablet ids. Called once when
// a fresh store is initialized.
func (s *Store) SaveBootstrapTablets(ctx context.Context, tablets map[string]types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persist: failed to begin bootstrap: %w", err)
	}
	defer tx.Rollback()

	for name, id := range tablets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bootstrap (name, tablet_id) VALUES (?, ?)`,
			name, id.String()); err != nil {
			return fmt.Errorf("persist: failed to register bootstrap tablet %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// Close closes the store's database connections.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertVersionStmt != nil {
		s.insertVersionStmt.Close()
	}
	if s.getAtStmt != nil {
		s.getAtStmt.Close()
	}
	if s.countAtStmt != nil {
		s.countAtStmt.Close()
	}

	var firstErr error
	if err := s.readDB.Close(); err != nil {
		firstErr = err
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
