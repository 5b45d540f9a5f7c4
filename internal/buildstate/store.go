// Package buildstate records the outcome of each configure run so that
// repeated runs over an unchanged source tree can be recognized.
package buildstate

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"shanhu.io/misc/errcode"

	_ "modernc.org/sqlite" // sqlite driver
)

// FileName is the default name of the state database inside a build dir.
const FileName = "pyext-state.db"

const schema = `
CREATE TABLE IF NOT EXISTS configure_runs (
	target        TEXT PRIMARY KEY,
	fingerprint   TEXT NOT NULL,
	sources       INTEGER NOT NULL,
	optional      TEXT NOT NULL,
	configured_at INTEGER NOT NULL
)`

// Record is the stored summary of the last configure run of a target.
type Record struct {
	Target       string
	Fingerprint  string
	Sources      int
	Optional     []string // optional dependencies that were found
	ConfiguredAt time.Time
}

// Store is a sqlite-backed table of configure records.
//
// Store is safe for concurrent use; database/sql serializes access.
type Store struct {
	db *sql.DB
}

// Open opens (creating when needed) the state database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errcode.Annotatef(err, "open state db %q", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errcode.Annotate(err, "create schema")
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Lookup returns the record of target, or an errcode.NotFound error.
func (s *Store) Lookup(ctx context.Context, target string) (*Record, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT fingerprint, sources, optional, configured_at
		FROM configure_runs WHERE target = ?`,
		target,
	)

	rec := &Record{Target: target}
	var optional string
	var at int64
	if err := row.Scan(&rec.Fingerprint, &rec.Sources, &optional, &at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcode.NotFoundf("no configure record for %q", target)
		}
		return nil, errcode.Annotatef(err, "lookup %q", target)
	}
	if optional != "" {
		rec.Optional = strings.Split(optional, ",")
	}
	rec.ConfiguredAt = time.Unix(at, 0).UTC()
	return rec, nil
}

// Put inserts or replaces the record of rec.Target.
func (s *Store) Put(ctx context.Context, rec *Record) error {
	at := rec.ConfiguredAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO configure_runs
		(target, fingerprint, sources, optional, configured_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.Target, rec.Fingerprint, rec.Sources,
		strings.Join(rec.Optional, ","), at.Unix(),
	)
	if err != nil {
		return errcode.Annotatef(err, "put %q", rec.Target)
	}
	return nil
}

// Delete removes the record of target. Deleting a missing record is not an
// error.
func (s *Store) Delete(ctx context.Context, target string) error {
	_, err := s.db.ExecContext(
		ctx, `DELETE FROM configure_runs WHERE target = ?`, target,
	)
	if err != nil {
		return errcode.Annotatef(err, "delete %q", target)
	}
	return nil
}
