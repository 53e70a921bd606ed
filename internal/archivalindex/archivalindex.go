// Package archivalindex is a secondary, read-only index of archived
// records (name, creator, archival time) for external reporting queries,
// populated as a propagator.ArchivalObserver on each false-to-true
// archival transition (SPEC_FULL.md supplemental feature). Grounded on
// the teacher's internal/storage/relationaldb/postgres package shape
// (Open/initSchema/Close over database/sql), adapted from PostgreSQL to
// modernc.org/sqlite's pure-Go driver and from a full ledger schema down
// to the one table this index needs.
package archivalindex

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dledger/dlnode/internal/ledger"
	"github.com/dledger/dlnode/internal/record"
	_ "modernc.org/sqlite"
)

// Index is a sqlite-backed append-only log of archival transitions.
type Index struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite file at path and ensures
// the schema exists.
func Open(ctx context.Context, path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archivalindex: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite: one writer at a time is simplest and sufficient here

	idx := &Index{db: db}
	if err := idx.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) initSchema(ctx context.Context) error {
	_, err := idx.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS archived_records (
			name TEXT PRIMARY KEY,
			creator_prefix TEXT NOT NULL,
			entropy INTEGER NOT NULL,
			archived_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_archived_records_creator ON archived_records(creator_prefix);
		CREATE INDEX IF NOT EXISTS idx_archived_records_archived_at ON archived_records(archived_at);
	`)
	if err != nil {
		return fmt.Errorf("archivalindex: initializing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// OnArchived implements propagator.ArchivalObserver. It is best-effort:
// a write failure is discarded, neither logged nor propagated back
// into the propagation path, since the archival index is
// a reporting convenience, not part of the ledger's own durability
// contract.
func (idx *Index) OnArchived(name string, entry *ledger.Entry) {
	_ = idx.recordArchival(context.Background(), name, entry)
}

func (idx *Index) recordArchival(ctx context.Context, name string, entry *ledger.Entry) error {
	creatorPrefix := ""
	if entry.Record != nil {
		creatorPrefix = record.CreatorPrefix(entry.Record.Name)
	}
	_, err := idx.db.ExecContext(ctx, `
		INSERT INTO archived_records (name, creator_prefix, entropy, archived_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, creatorPrefix, entry.Entropy, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("archivalindex: recording %s: %w", name, err)
	}
	return nil
}

// ArchivalRecord is one row of the archived_records table.
type ArchivalRecord struct {
	Name          string
	CreatorPrefix string
	Entropy       int
	ArchivedAt    time.Time
}

// ByCreator returns every archived record created by creatorPrefix,
// most-recently-archived first.
func (idx *Index) ByCreator(ctx context.Context, creatorPrefix string) ([]ArchivalRecord, error) {
	rows, err := idx.db.QueryContext(ctx, `
		SELECT name, creator_prefix, entropy, archived_at
		FROM archived_records
		WHERE creator_prefix = ?
		ORDER BY archived_at DESC
	`, creatorPrefix)
	if err != nil {
		return nil, fmt.Errorf("archivalindex: querying creator %s: %w", creatorPrefix, err)
	}
	defer rows.Close()
	return scanArchivalRecords(rows)
}

// Count returns the total number of archived records indexed.
func (idx *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := idx.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM archived_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("archivalindex: counting: %w", err)
	}
	return n, nil
}

func scanArchivalRecords(rows *sql.Rows) ([]ArchivalRecord, error) {
	var out []ArchivalRecord
	for rows.Next() {
		var r ArchivalRecord
		var archivedAtNanos int64
		if err := rows.Scan(&r.Name, &r.CreatorPrefix, &r.Entropy, &archivedAtNanos); err != nil {
			return nil, fmt.Errorf("archivalindex: scanning row: %w", err)
		}
		r.ArchivedAt = time.Unix(0, archivedAtNanos)
		out = append(out, r)
	}
	return out, rows.Err()
}
