// Package store implements the embedded SQLite-backed persistence layer for
// entities, verbs, capabilities and scheduled tasks, including the
// depth-counted nested-transaction manager (tx.go) and the prototype-chain
// queries the resolver package consumes.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Sentinel errors returned by Store methods.
var (
	ErrNotFound          = errors.New("store: not found")
	ErrInvalidDocument   = errors.New("store: invalid document")
	ErrTransactionState  = errors.New("store: invalid transaction state")
)

// Store wraps a single-process SQLite database and the nested-transaction
// bookkeeping in tx.go. A single *sql.DB backs it; callers serialize
// access to mutating operations (see exec.Context and
// scheduler.Scheduler, which hold the guard for the lifetime of one verb
// invocation).
type Store struct {
	db *sql.DB

	txMu    *sync.Mutex
	txDepth *int
}

// Open opens (creating if necessary) a SQLite database at path. Pass ""
// or ":memory:" for an ephemeral in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	// SQLite allows only one writer; a single connection avoids
	// SQLITE_BUSY races across goroutines sharing this *sql.DB.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, txMu: &sync.Mutex{}, txDepth: new(int)}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			prototype_id INTEGER,
			props TEXT NOT NULL DEFAULT '{}',
			FOREIGN KEY(prototype_id) REFERENCES entities(id)
		)`,
		`CREATE TABLE IF NOT EXISTS verbs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			code TEXT NOT NULL,
			required_capability TEXT,
			FOREIGN KEY(entity_id) REFERENCES entities(id) ON DELETE CASCADE,
			UNIQUE(entity_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS capabilities (
			id TEXT PRIMARY KEY,
			owner_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			params TEXT NOT NULL,
			FOREIGN KEY(owner_id) REFERENCES entities(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_capabilities_owner ON capabilities(owner_id)`,
		`CREATE TABLE IF NOT EXISTS scheduled_tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_id INTEGER NOT NULL,
			verb TEXT NOT NULL,
			args TEXT NOT NULL DEFAULT '[]',
			execute_at INTEGER NOT NULL,
			FOREIGN KEY(entity_id) REFERENCES entities(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scheduled_tasks_due ON scheduled_tasks(execute_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: ensure schema: %w", err)
		}
	}
	return nil
}
