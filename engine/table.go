package engine

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tbdingqi/tbleveldb/db"
	"github.com/tbdingqi/tbleveldb/internal/rowcodec"
)

// estimatedRowsInRange is the fixed cardinality reported to cost-based
// callers. Deliberately low so the host prefers key lookups over a full
// scan, which this engine cannot serve anyway.
const estimatedRowsInRange = 10

// KeyRange bounds an EstimateRows query. Either bound may be nil.
type KeyRange struct {
	Min []byte
	Max []byte
}

// Table is one open handle to a table. Handles on the same name share
// one underlying store through the engine's registry. A Table must be
// closed exactly once; mutations additionally require an active lock
// scope on the calling session.
type Table struct {
	engine *Engine
	name   string
	schema Schema
	store  db.Store
	codec  *rowcodec.Codec
	closed bool
}

// Name returns the qualified table name.
func (t *Table) Name() string { return t.name }

// Schema returns the table's schema descriptor.
func (t *Table) Schema() Schema { return t.schema }

// Close releases this handle's reference to the shared store. The store
// itself is closed when the last handle goes away.
func (t *Table) Close() error {
	if t.closed {
		return fmt.Errorf("%w: %s", ErrTableNotOpen, t.name)
	}
	t.closed = true
	return t.engine.release(t.name)
}

// ---------------------------------------------------------------------------
// Lock scope
// ---------------------------------------------------------------------------

// BeginLock opens a lock scope for this table on the session, creating
// the session's transaction scope if none exists yet. Re-locking within
// an existing scope on the same table is a no-op; a scope spans exactly
// one table, so binding a second table fails with [ErrSessionBusy].
func (t *Table) BeginLock(sess *Session, _ LockType) error {
	if t.closed {
		return fmt.Errorf("%w: %s", ErrTableNotOpen, t.name)
	}

	if sess.txn != nil {
		if sess.txn.table != t {
			return fmt.Errorf("%w: bound to %s", ErrSessionBusy, sess.txn.table.name)
		}
		return nil
	}

	sess.txn = &txn{table: t}
	return nil
}

// EndLock closes the session's lock scope and commits its staged
// operations as one atomic, synced batch. The scope is destroyed either
// way: on failure every staged operation is discarded, the store is
// left exactly as it was, and the error is reported upward.
func (t *Table) EndLock(sess *Session) error {
	if t.closed {
		return fmt.Errorf("%w: %s", ErrTableNotOpen, t.name)
	}
	scope := sess.txn
	if scope == nil {
		return ErrNoTransaction
	}
	if scope.table != t {
		return fmt.Errorf("%w: bound to %s", ErrSessionBusy, scope.table.name)
	}

	sess.txn = nil
	if err := scope.commit(t.store); err != nil {
		t.engine.logger.Error("lock-scope commit failed",
			"table", t.name,
			"staged_ops", len(scope.ops),
			"error", err,
		)
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Row operations
// ---------------------------------------------------------------------------

// activeScope returns the session's scope if it is bound to this table.
func (t *Table) activeScope(sess *Session) (*txn, error) {
	if t.closed {
		return nil, fmt.Errorf("%w: %s", ErrTableNotOpen, t.name)
	}
	if sess.txn == nil {
		return nil, ErrNoTransaction
	}
	if sess.txn.table != t {
		return nil, fmt.Errorf("%w: bound to %s", ErrSessionBusy, sess.txn.table.name)
	}
	return sess.txn, nil
}

// WriteRow stages an insert (or overwrite) of row. The key is extracted
// from the row buffer per the schema; the full row buffer, compressed
// best-effort, becomes the stored value. Nothing is visible until the
// lock scope commits.
func (t *Table) WriteRow(sess *Session, row []byte) error {
	scope, err := t.activeScope(sess)
	if err != nil {
		return err
	}

	key := ExtractKey(row, t.schema.keyPart())
	scope.stagePut(key, t.codec.Encode(row))
	return nil
}

// UpdateRow stages the replacement of oldRow by newRow. When the key
// changed, a delete of the old key is staged ahead of the new write, so
// the old entry is guaranteed gone after commit; equal keys stage no
// delete, leaving no visibility gap for an in-place update.
func (t *Table) UpdateRow(sess *Session, oldRow, newRow []byte) error {
	scope, err := t.activeScope(sess)
	if err != nil {
		return err
	}

	kp := t.schema.keyPart()
	oldKey := ExtractKey(oldRow, kp)
	newKey := ExtractKey(newRow, kp)

	if !bytes.Equal(oldKey, newKey) {
		scope.stageDelete(oldKey)
	}
	scope.stagePut(newKey, t.codec.Encode(newRow))
	return nil
}

// DeleteRow stages the deletion of the row identified by row's key.
func (t *Table) DeleteRow(sess *Session, row []byte) error {
	scope, err := t.activeScope(sess)
	if err != nil {
		return err
	}

	scope.stageDelete(ExtractKey(row, t.schema.keyPart()))
	return nil
}

// Lookup reads the row stored under key, decompressing it back to the
// original row buffer. A miss returns [ErrNotFound]. Lookup reads the
// committed state only: operations staged in an open lock scope are not
// visible (no read-your-own-uncommitted-writes).
func (t *Table) Lookup(key []byte) ([]byte, error) {
	if t.closed {
		return nil, fmt.Errorf("%w: %s", ErrTableNotOpen, t.name)
	}

	value, err := t.store.Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("engine: lookup %s: %w", t.name, err)
	}

	row, err := t.codec.Decode(value)
	if err != nil {
		return nil, fmt.Errorf("engine: lookup %s: %w", t.name, err)
	}
	return row, nil
}

// LookupRow extracts the key from a row buffer and performs a Lookup.
// This mirrors keyed reads where the host hands back a buffer laid out
// like a row rather than a bare key.
func (t *Table) LookupRow(row []byte) ([]byte, error) {
	return t.Lookup(ExtractKey(row, t.schema.keyPart()))
}

// EstimateRows reports a fixed small row count for any key range. It is
// a planner bias toward keyed access, not a real cardinality estimate.
func (t *Table) EstimateRows(_ KeyRange) uint64 {
	return estimatedRowsInRange
}

// ---------------------------------------------------------------------------
// Unsupported operations
//
// Ordered traversal is deliberately not implemented. Each call refuses
// loudly rather than returning wrong data; callers must not fall back
// to scanning this table.
// ---------------------------------------------------------------------------

// ScanFirst is not supported.
func (t *Table) ScanFirst() ([]byte, error) {
	return nil, fmt.Errorf("%w: scan first", ErrUnsupportedOperation)
}

// ScanNext is not supported.
func (t *Table) ScanNext() ([]byte, error) {
	return nil, fmt.Errorf("%w: scan next", ErrUnsupportedOperation)
}

// ScanPrev is not supported.
func (t *Table) ScanPrev() ([]byte, error) {
	return nil, fmt.Errorf("%w: scan prev", ErrUnsupportedOperation)
}

// ScanLast is not supported.
func (t *Table) ScanLast() ([]byte, error) {
	return nil, fmt.Errorf("%w: scan last", ErrUnsupportedOperation)
}

// ScanAt (position-based re-seek) is not supported.
func (t *Table) ScanAt(_ []byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: positioned scan", ErrUnsupportedOperation)
}

// Truncate is not supported.
func (t *Table) Truncate() error {
	return fmt.Errorf("%w: truncate", ErrUnsupportedOperation)
}

// DeleteAllRows is not supported.
func (t *Table) DeleteAllRows() error {
	return fmt.Errorf("%w: delete all rows", ErrUnsupportedOperation)
}
