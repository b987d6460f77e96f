// Package store implements the fingerprint store described in spec.md §4.1:
// durable (location, fingerprint, ts_start, ts_finish) rows with
// interval-merge upsert semantics, backed by modernc.org/sqlite the same
// way the teacher keeps its own local state in a pure-Go SQLite file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// StorageError wraps any failure from the underlying database, so callers
// (internal/httpapi) can map it to a 503 without caring about the driver
// error shape underneath, per spec.md §4.1 "Failure modes".
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// Record is one persisted fingerprint observation for a location.
type Record struct {
	Fingerprint string
	Start       int64
	Finish      int64
}

// Store is the narrow interface the rest of the notary depends on. It is
// intentionally small enough that spec.md §1 can treat SQLite as "an
// opaque key-value-with-intervals store accessed through a narrow
// interface" — tests substitute an in-memory fake implementing the same
// interface.
type Store interface {
	GetRecords(ctx context.Context, host, port string) ([]Record, error)
	Upsert(ctx context.Context, host, port, fingerprint string, now int64) ([]Record, error)
	Close() error
}

// SQLiteStore is the production Store backed by modernc.org/sqlite.
//
// Per spec.md §5, concurrent upserts for the same location must serialize
// while upserts for disjoint locations should not block each other beyond
// what SQLite itself requires; a single mutex around writes is the
// "minimal correct implementation" the spec explicitly sanctions, so that
// is what this does — SQLite in its default journal mode only allows one
// writer at a time regardless, so a finer-grained lock would buy nothing.
type SQLiteStore struct {
	db     *sql.DB
	writeM sync.Mutex
}

// Open opens (and, if necessary, creates) the SQLite database at path and
// ensures the fingerprints table exists.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1) // modernc sqlite is not safe for concurrent writers across conns
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, &StorageError{Op: "migrate", Err: err}
	}
	return &SQLiteStore{db: db}, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS fingerprints (
	id INTEGER PRIMARY KEY,
	location TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	timestamp_start INTEGER NOT NULL,
	timestamp_finish INTEGER NOT NULL,
	UNIQUE(location, fingerprint)
);
CREATE INDEX IF NOT EXISTS idx_fingerprints_location ON fingerprints(location);
`

func location(host, port string) string { return host + ":" + port }

// GetRecords returns every fingerprint ever observed at (host, port), in
// unspecified order, as a point-in-time snapshot.
func (s *SQLiteStore) GetRecords(ctx context.Context, host, port string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, timestamp_start, timestamp_finish FROM fingerprints WHERE location = ?`,
		location(host, port))
	if err != nil {
		return nil, &StorageError{Op: "get_records", Err: err}
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Fingerprint, &r.Start, &r.Finish); err != nil {
			return nil, &StorageError{Op: "get_records.scan", Err: err}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "get_records.rows", Err: err}
	}
	return out, nil
}

// Upsert advances timestamp_finish for an existing (location, fingerprint)
// row or inserts a new one with timestamp_start == timestamp_finish == now,
// then returns the full post-update record set for the location. The
// write is serialized behind writeM and wrapped in a transaction so the
// select-then-insert/update is atomic with respect to other Upserts.
func (s *SQLiteStore) Upsert(ctx context.Context, host, port, fingerprint string, now int64) ([]Record, error) {
	s.writeM.Lock()
	defer s.writeM.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &StorageError{Op: "upsert.begin", Err: err}
	}
	defer tx.Rollback()

	loc := location(host, port)
	res, err := tx.ExecContext(ctx,
		`UPDATE fingerprints SET timestamp_finish = ? WHERE location = ? AND fingerprint = ?`,
		now, loc, fingerprint)
	if err != nil {
		return nil, &StorageError{Op: "upsert.update", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, &StorageError{Op: "upsert.rows_affected", Err: err}
	}
	if affected == 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fingerprints (location, fingerprint, timestamp_start, timestamp_finish) VALUES (?, ?, ?, ?)`,
			loc, fingerprint, now, now); err != nil {
			return nil, &StorageError{Op: "upsert.insert", Err: err}
		}
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT fingerprint, timestamp_start, timestamp_finish FROM fingerprints WHERE location = ?`, loc)
	if err != nil {
		return nil, &StorageError{Op: "upsert.select", Err: err}
	}
	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Fingerprint, &r.Start, &r.Finish); err != nil {
			rows.Close()
			return nil, &StorageError{Op: "upsert.scan", Err: err}
		}
		out = append(out, r)
	}
	closeErr := rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "upsert.rows", Err: err}
	}
	if closeErr != nil {
		return nil, &StorageError{Op: "upsert.rows_close", Err: closeErr}
	}

	if err := tx.Commit(); err != nil {
		return nil, &StorageError{Op: "upsert.commit", Err: err}
	}
	return out, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return &StorageError{Op: "close", Err: err}
	}
	return nil
}

// IsStorageError reports whether err is (or wraps) a StorageError.
// internal/httpapi does not call it: it answers 503 for any store or
// verifier error.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
