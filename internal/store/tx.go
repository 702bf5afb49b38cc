package store

import (
	"context"
	"fmt"
	"sync"
)

// Tx is a depth-counted transaction handle over the store's single
// connection. Depth 0 maps to BEGIN IMMEDIATE/COMMIT/ROLLBACK; any deeper
// nesting maps to SAVEPOINT sp_N / RELEASE SAVEPOINT sp_N / ROLLBACK TO
// SAVEPOINT sp_N, mirroring the transaction manager's savepoint stack.
// A single *Store is expected to be used from one Tx chain at a time; the
// mutex below only guards the depth counter itself, not cross-goroutine
// call ordering — callers (exec.Context, scheduler.Scheduler) are
// responsible for holding their own coarse-grained lock around an entire
// verb invocation or scheduled-task tick.
type Tx struct {
	store *Store
	mu    *sync.Mutex
	depth *int
}

// Begin starts (or nests into) a transaction on s.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	depth := *s.txDepth
	var stmt string
	if depth == 0 {
		stmt = "BEGIN IMMEDIATE"
	} else {
		stmt = fmt.Sprintf("SAVEPOINT sp_%d", depth)
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return nil, fmt.Errorf("store: begin at depth %d: %w", depth, err)
	}
	*s.txDepth++
	return &Tx{store: s, mu: s.txMu, depth: s.txDepth}, nil
}

// Commit commits the transaction, releasing the savepoint if nested.
func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if *t.depth == 0 {
		return ErrTransactionState
	}
	*t.depth--
	var stmt string
	if *t.depth == 0 {
		stmt = "COMMIT"
	} else {
		stmt = fmt.Sprintf("RELEASE SAVEPOINT sp_%d", *t.depth)
	}
	if _, err := t.store.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("store: commit at depth %d: %w", *t.depth, err)
	}
	return nil
}

// Rollback rolls back the transaction, or to the savepoint if nested.
func (t *Tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if *t.depth == 0 {
		return ErrTransactionState
	}
	*t.depth--
	var stmt string
	if *t.depth == 0 {
		stmt = "ROLLBACK"
	} else {
		stmt = fmt.Sprintf("ROLLBACK TO SAVEPOINT sp_%d", *t.depth)
	}
	if _, err := t.store.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("store: rollback at depth %d: %w", *t.depth, err)
	}
	return nil
}

// WithTx runs fn inside a transaction (nesting into an outer one via
// savepoints if already inside one), committing on success and rolling
// back — preserving fn's original error — on failure.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}
