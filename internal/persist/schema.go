// Package persist provides the committed multi-version document store
// (store.db). Every committed write appends a version row; reads resolve the
// latest version at or below a snapshot timestamp.
package persist

// CreateDocumentsTableSQL creates the version log. One row per (document,
// commit timestamp); a deleted flag marks tombstones. The primary key gives
// ordered full-tablet scans for free.
const CreateDocumentsTableSQL = `
CREATE TABLE IF NOT EXISTS documents (
    tablet_id TEXT NOT NULL,
    doc_id TEXT NOT NULL,
    ts INTEGER NOT NULL,
    value BLOB,
    deleted INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (tablet_id, doc_id, ts)
)`

// CreateDocumentsIndexesSQL creates indexes for snapshot resolution.
var CreateDocumentsIndexesSQL = []string{
	// Index for per-tablet timestamp range checks and snapshot counts
	`CREATE INDEX IF NOT EXISTS idx_documents_tablet_ts ON documents(tablet_id, ts)`,
}

// CreateBootstrapTableSQL creates the bootstrap tablet registry: the tablet
// ids of the catalog's own system tables, written once when the store is
// first initialized. Everything else about those tables lives as ordinary
// rows inside them.
const CreateBootstrapTableSQL = `
CREATE TABLE IF NOT EXISTS bootstrap (
    name TEXT PRIMARY KEY,
    tablet_id TEXT NOT NULL
)`

// CreateMetaTableSQL creates the store metadata table (last commit timestamp).
const CreateMetaTableSQL = `
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value INTEGER NOT NULL
)`

// AllSchemaSQL returns all SQL statements needed to initialize the store.
func AllSchemaSQL() []string {
	statements := []string{
		CreateDocumentsTableSQL,
		CreateBootstrapTableSQL,
		CreateMetaTableSQL,
	}
	statements = append(statements, CreateDocumentsIndexesSQL...)
	return statements
}
