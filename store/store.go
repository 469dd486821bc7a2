// Package store keeps scripts in a SQLite database, keyed by identity,
// together with the diagnostics of their last compile.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/ezachrisen/dyneval"
)

// ErrNotFound is returned when no script is stored under an identity.
var ErrNotFound = errors.New("script not found")

// Script is a stored script.
type Script struct {
	Identity    string
	Name        string
	Source      string
	Updated     time.Time
	Compiled    time.Time // zero until a compile report is recorded
	OK          bool
	Diagnostics dyneval.Diagnostics
}

// Store is a SQLite-backed script repository.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS scripts (
	identity TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	updated INTEGER NOT NULL,
	compiled INTEGER NOT NULL DEFAULT 0,
	ok INTEGER NOT NULL DEFAULT 0,
	diagnostics BLOB
);
CREATE INDEX IF NOT EXISTS idx_scripts_name ON scripts(name);
`

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one connection, so an in-memory database is shared by every query
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or replaces the source stored under identity. Any recorded
// compile report is cleared, since it no longer describes the source.
func (s *Store) Put(ctx context.Context, identity, name, source string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scripts (identity, name, source, updated) VALUES (?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			name = excluded.name, source = excluded.source, updated = excluded.updated,
			compiled = 0, ok = 0, diagnostics = NULL`,
		identity, name, source, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("storing %s: %w", identity, err)
	}
	return nil
}

// RecordCompile stores the outcome of compiling the script under identity.
func (s *Store) RecordCompile(ctx context.Context, identity string, ok bool, diags dyneval.Diagnostics) error {
	blob, err := msgpack.Marshal(diags)
	if err != nil {
		return fmt.Errorf("encoding diagnostics: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE scripts SET compiled = ?, ok = ?, diagnostics = ? WHERE identity = ?`,
		time.Now().UnixNano(), ok, blob, identity)
	if err != nil {
		return fmt.Errorf("recording compile of %s: %w", identity, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, identity)
	}
	return nil
}

// Get returns the script stored under identity.
func (s *Store) Get(ctx context.Context, identity string) (Script, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT identity, name, source, updated, compiled, ok, diagnostics FROM scripts WHERE identity = ?`, identity)
	sc, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Script{}, fmt.Errorf("%w: %s", ErrNotFound, identity)
	}
	return sc, err
}

// List returns every stored script ordered by name, then identity.
func (s *Store) List(ctx context.Context) ([]Script, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identity, name, source, updated, compiled, ok, diagnostics FROM scripts ORDER BY name, identity`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Script
	for rows.Next() {
		sc, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Delete removes the script under identity and reports whether it existed.
func (s *Store) Delete(ctx context.Context, identity string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scripts WHERE identity = ?`, identity)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scan(r scanner) (Script, error) {
	var (
		sc                Script
		updated, compiled int64
		blob              []byte
	)
	if err := r.Scan(&sc.Identity, &sc.Name, &sc.Source, &updated, &compiled, &sc.OK, &blob); err != nil {
		return Script{}, err
	}
	sc.Updated = time.Unix(0, updated)
	if compiled > 0 {
		sc.Compiled = time.Unix(0, compiled)
	}
	if len(blob) > 0 {
		if err := msgpack.Unmarshal(blob, &sc.Diagnostics); err != nil {
			return Script{}, fmt.Errorf("decoding diagnostics of %s: %w", sc.Identity, err)
		}
	}
	return sc, nil
}
