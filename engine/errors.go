package engine

import "errors"

// Sentinel errors for the engine package. Row-operation failures are
// always surfaced to the caller; the engine performs no internal retries
// and no silent recovery.
var (
	// ErrInvalidSchema is returned by Create when the schema does not
	// declare exactly one unique key part.
	ErrInvalidSchema = errors.New("engine: invalid schema")

	// ErrStoreUnavailable is returned by Open when the underlying store
	// fails to open.
	ErrStoreUnavailable = errors.New("engine: store unavailable")

	// ErrWriteFailed is returned when a batch commit fails. All staged
	// operations in that batch are discarded; none were applied.
	ErrWriteFailed = errors.New("engine: batch commit failed")

	// ErrNotFound is returned by point lookups when no row exists for
	// the key. A miss is a normal empty result, not a store failure.
	ErrNotFound = errors.New("engine: row not found")

	// ErrUnsupportedOperation is returned by scan and traversal calls,
	// which this engine deliberately does not implement.
	ErrUnsupportedOperation = errors.New("engine: operation not supported")

	// ErrRegistryLeak is reported by Close when tables are still open at
	// shutdown. It signals a reference-counting leak in the caller; the
	// leaked stores are force-closed regardless.
	ErrRegistryLeak = errors.New("engine: open tables remained at shutdown")

	// ErrTableBusy is returned by Drop (and Create) while the table is
	// held open by any handle.
	ErrTableBusy = errors.New("engine: table is open")

	// ErrTableNotOpen is returned when an operation requires an open
	// table handle that has already been closed.
	ErrTableNotOpen = errors.New("engine: table not open")

	// ErrNoTransaction is returned by write operations and EndLock when
	// the session has no active transaction scope.
	ErrNoTransaction = errors.New("engine: no active transaction scope")

	// ErrSessionBusy is returned by BeginLock when the session's scope
	// is already bound to a different table. A scope spans exactly one
	// table.
	ErrSessionBusy = errors.New("engine: session already bound to another table")
)
