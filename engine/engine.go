// Package engine implements a batched key-value table adapter: it maps
// row-oriented CRUD operations onto one ordered key-value store per
// table, with writes deferred into a per-session batch that commits
// atomically when the session's lock scope ends.
//
// The [Engine] owns a process-wide registry of open tables. A [Table]
// handle is acquired with [Engine.Open] and released with [Table.Close];
// any number of handles may share one underlying store. Mutations
// require an active lock scope on a [Session]:
//
//	eng := engine.New(engine.WithBaseDir(dir))
//	defer eng.Close()
//
//	tbl, _ := eng.Open("users", schema)
//	defer tbl.Close()
//
//	sess := engine.NewSession()
//	tbl.BeginLock(sess, engine.LockWrite)
//	tbl.WriteRow(sess, row)
//	err := tbl.EndLock(sess) // commits the batch
//
// Ordered scans are deliberately unsupported and always return
// [ErrUnsupportedOperation]; the adapter serves point lookups only.
package engine

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tbdingqi/tbleveldb/db"
	"github.com/tbdingqi/tbleveldb/internal/rowcodec"
	"github.com/tbdingqi/tbleveldb/pkg/logger"
)

// StoreOpener opens or creates the store for one table directory.
// It exists as a seam for tests; the default opener uses [db.Open].
type StoreOpener func(path string, create bool) (db.Store, error)

// Config holds all settings for an [Engine]. Use functional [Option]
// values with [New] rather than constructing a Config directly.
type Config struct {
	// BaseDir is the directory under which each table's database
	// directory is created, named after the table.
	BaseDir string

	// Codec compresses row buffers before they are stored.
	Codec *rowcodec.Codec

	// OpenStore opens the store for a table path. Defaults to a
	// Pebble-backed opener. Replaceable in tests.
	OpenStore StoreOpener

	// Logger receives structured operational log messages.
	// If not set, the global logger.Default() is used.
	Logger logger.Logger
}

// DefaultConfig returns a Config with production defaults: snappy row
// compression and Pebble storage under the current directory.
func DefaultConfig() *Config {
	return &Config{
		BaseDir: ".",
		Codec:   rowcodec.New(rowcodec.Snappy),
	}
}

// Option is a functional option applied to [Config] during [New].
type Option func(*Config)

// WithBaseDir sets the directory holding the per-table databases.
func WithBaseDir(dir string) Option {
	return func(c *Config) { c.BaseDir = dir }
}

// WithCodec sets the row compression codec.
func WithCodec(codec *rowcodec.Codec) Option {
	return func(c *Config) { c.Codec = codec }
}

// WithStoreOpener replaces the store opener. Intended for tests.
func WithStoreOpener(open StoreOpener) Option {
	return func(c *Config) { c.OpenStore = open }
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// shareEntry is the registry record for one open table. At most one
// entry exists per table name; useCount tracks the open [Table] handles
// referencing it and the entry is removed exactly when useCount reaches
// zero.
type shareEntry struct {
	name     string
	store    db.Store
	useCount int
}

// Engine is the process-wide table registry and adapter factory.
// All methods are safe for concurrent use.
type Engine struct {
	cfg    *Config
	logger logger.Logger

	// mu serializes every registry mutation. The first open of a table
	// performs its store I/O under this lock, which guarantees no two
	// callers construct a store for the same name concurrently.
	mu     sync.Mutex
	tables map[string]*shareEntry
}

// New constructs an Engine. Call Close at shutdown to verify all tables
// were released.
func New(opts ...Option) *Engine {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(cfg)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	log = log.With("component", "engine")

	if cfg.Codec == nil {
		cfg.Codec = rowcodec.New(rowcodec.Raw)
	}
	if cfg.OpenStore == nil {
		cfg.OpenStore = func(path string, create bool) (db.Store, error) {
			return db.Open(path,
				db.WithCreateIfMissing(create),
				db.WithLogger(log),
			)
		}
	}

	return &Engine{
		cfg:    cfg,
		logger: log,
		tables: make(map[string]*shareEntry),
	}
}

// tablePath maps a qualified table name to its database directory.
// Names may contain forward slashes (e.g. "testdb/users"); anything that
// would escape the base directory is rejected.
func (e *Engine) tablePath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("engine: empty table name")
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("engine: table name %q escapes base directory", name)
	}
	return filepath.Join(e.cfg.BaseDir, clean), nil
}

// Create validates the schema and creates the table's store on disk.
// The store is opened with create-if-missing and closed again; use Open
// to acquire a handle. Creating over an open table fails with
// [ErrTableBusy].
func (e *Engine) Create(name string, schema Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}

	path, err := e.tablePath(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tables[name]; ok {
		return fmt.Errorf("%w: %s", ErrTableBusy, name)
	}

	store, err := e.cfg.OpenStore(path, true)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrStoreUnavailable, name, err)
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("engine: close after create %s: %w", name, err)
	}

	e.logger.Info("table created", "table", name, "path", path)
	return nil
}

// Open acquires a handle to an existing table. The first open of a name
// opens the on-disk store; subsequent opens share it. Every successful
// Open must be paired with exactly one [Table.Close].
func (e *Engine) Open(name string, schema Schema) (*Table, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	store, err := e.acquire(name)
	if err != nil {
		return nil, err
	}

	return &Table{
		engine: e,
		name:   name,
		schema: schema,
		store:  store,
		codec:  e.cfg.Codec,
	}, nil
}

// Drop irreversibly deletes the table's persisted data. It refuses with
// [ErrTableBusy] while any handle holds the table open: destroying a
// live store would corrupt the open handles.
func (e *Engine) Drop(name string) error {
	path, err := e.tablePath(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if entry, ok := e.tables[name]; ok {
		return fmt.Errorf("%w: %s has %d open handles", ErrTableBusy, name, entry.useCount)
	}

	if err := db.Destroy(path); err != nil {
		return fmt.Errorf("engine: drop %s: %w", name, err)
	}

	e.logger.Info("table dropped", "table", name, "path", path)
	return nil
}

// Rename is not supported.
func (e *Engine) Rename(from, to string) error {
	return fmt.Errorf("%w: rename %s to %s", ErrUnsupportedOperation, from, to)
}

// Close tears the engine down. Tables still registered indicate a
// missing [Table.Close] somewhere; they are force-closed and the leak is
// reported as [ErrRegistryLeak].
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	leaked := len(e.tables)
	for name, entry := range e.tables {
		e.logger.Warn("table still open at shutdown",
			"table", name,
			"use_count", entry.useCount,
		)
		if err := entry.store.Close(); err != nil {
			e.logger.Error("failed to close leaked store", "table", name, "error", err)
		}
		delete(e.tables, name)
	}

	if leaked > 0 {
		return fmt.Errorf("%w: %d", ErrRegistryLeak, leaked)
	}
	return nil
}

// OpenTables returns the number of registered tables. Diagnostic only.
func (e *Engine) OpenTables() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tables)
}

// ---------------------------------------------------------------------------
// Share registry
// ---------------------------------------------------------------------------

// acquire returns the shared store for name, opening it on first use.
func (e *Engine) acquire(name string) (db.Store, error) {
	path, err := e.tablePath(name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if entry, ok := e.tables[name]; ok {
		entry.useCount++
		return entry.store, nil
	}

	store, err := e.cfg.OpenStore(path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStoreUnavailable, name, err)
	}

	e.tables[name] = &shareEntry{
		name:     name,
		store:    store,
		useCount: 1,
	}
	e.logger.Debug("table registered", "table", name)
	return store, nil
}

// release drops one reference to name, closing and removing the store
// when the last reference goes away. A release without a matching
// acquire is a caller bug and is reported, not absorbed.
func (e *Engine) release(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.tables[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotOpen, name)
	}

	entry.useCount--
	if entry.useCount > 0 {
		return nil
	}

	delete(e.tables, name)
	e.logger.Debug("table unregistered", "table", name)

	if err := entry.store.Close(); err != nil {
		return fmt.Errorf("engine: close store %s: %w", name, err)
	}
	return nil
}
