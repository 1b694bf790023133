package engine

import (
	"fmt"

	"github.com/tbdingqi/tbleveldb/db"
)

// LockType distinguishes the lock-scope notifications the host delivers
// at statement boundaries. The engine only cares whether a scope is
// opening (read or write) or closing; the host's lock manager provides
// the actual exclusion.
type LockType int

const (
	// LockRead marks a shared-read lock scope.
	LockRead LockType = iota

	// LockWrite marks a write-intent lock scope.
	LockWrite
)

// Session is the explicit per-worker context threaded through adapter
// calls. It carries at most one transaction scope at a time and is not
// safe for concurrent use: one session belongs to one worker, matching
// the host's one-thread-per-session model.
type Session struct {
	txn *txn
}

// NewSession creates an idle session.
func NewSession() *Session {
	return &Session{}
}

// InTransaction reports whether the session has an active scope.
func (s *Session) InTransaction() bool {
	return s.txn != nil
}

// Pending returns the number of operations staged in the session's
// scope, or zero when idle.
func (s *Session) Pending() int {
	if s.txn == nil {
		return 0
	}
	return len(s.txn.ops)
}

// ---------------------------------------------------------------------------
// Transaction scope
// ---------------------------------------------------------------------------

type opKind uint8

const (
	opPut opKind = iota
	opDelete
)

// stagedOp is one pending mutation. Key and value are private copies;
// the host may reuse its row buffer immediately after staging.
type stagedOp struct {
	kind  opKind
	key   []byte
	value []byte
}

// txn is the session's pending batch, created when a lock scope opens
// and destroyed when it closes. It back-references the owning table
// (non-owning: the table handle outlives every scope it hosts) to reach
// the store at commit time.
type txn struct {
	table *Table
	ops   []stagedOp
}

func (t *txn) stagePut(key, value []byte) {
	t.ops = append(t.ops, stagedOp{
		kind:  opPut,
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
}

func (t *txn) stageDelete(key []byte) {
	t.ops = append(t.ops, stagedOp{
		kind: opDelete,
		key:  append([]byte(nil), key...),
	})
}

// commit replays the staged operations, in staging order, into one
// atomic store batch. Either every operation becomes visible or none
// do; on failure the staged operations are simply discarded by the
// caller dropping the scope.
func (t *txn) commit(store db.Store) error {
	if len(t.ops) == 0 {
		return nil
	}

	batch := store.NewBatch()
	defer batch.Close()

	for _, op := range t.ops {
		var err error
		switch op.kind {
		case opPut:
			err = batch.Put(op.key, op.value)
		case opDelete:
			err = batch.Delete(op.key)
		}
		if err != nil {
			return fmt.Errorf("%w: stage replay: %w", ErrWriteFailed, err)
		}
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
