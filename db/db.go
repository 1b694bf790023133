// Package db provides a single-table ordered key-value store backed by
// Pebble, with atomic batch writes, point lookups, and graceful shutdown.
// Each table owns exactly one database directory on disk; there is no
// key-space multiplexing inside one database.
//
// The primary interface is [Store], satisfied by [PebbleDB] (production)
// and [MockStore] (testing). Create instances with [Open] or
// [NewMockStore] and inject them into consumers via constructor
// arguments or functional options.
package db

import (
	"errors"
	"io"
)

// Sentinel errors returned by Store implementations.
var (
	ErrClosed      = errors.New("db: database is closed")
	ErrKeyNotFound = errors.New("db: key not found")
	ErrNilKey      = errors.New("db: key must not be nil")
	ErrBatchClosed = errors.New("db: batch is closed")
)

// Store defines the contract for all database operations.
// All methods are safe for concurrent use by multiple goroutines.
type Store interface {
	// Get retrieves the value for a key.
	// Returns ErrKeyNotFound if the key does not exist.
	Get(key []byte) ([]byte, error)

	// Has reports whether a key exists.
	Has(key []byte) (bool, error)

	// Put stores a key-value pair.
	Put(key []byte, value []byte) error

	// Delete removes a key. Deleting a non-existent key is not an error.
	Delete(key []byte) error

	// NewBatch creates an atomic write batch. Operations are buffered in
	// memory and applied atomically when Commit is called. The caller
	// must call Close when the batch is no longer needed.
	NewBatch() Batch

	// Flush forces all buffered writes (memtable) to persistent storage.
	Flush() error

	// Close performs a graceful shutdown: flushes pending writes, closes
	// the underlying engine, and releases all resources.
	// After Close returns, every other method returns ErrClosed.
	io.Closer
}

// Batch is an atomic write batch. Operations are buffered in memory and
// applied atomically on Commit: either every staged operation becomes
// visible, or none do.
type Batch interface {
	// Put stages a key-value write.
	Put(key []byte, value []byte) error

	// Delete stages a key deletion.
	Delete(key []byte) error

	// Count returns the number of staged operations.
	Count() int

	// Commit atomically applies all staged operations. The write is
	// synced to stable storage before Commit returns.
	Commit() error

	// Close releases batch resources. Must be called even after Commit.
	Close()
}
