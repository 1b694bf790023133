package db

import (
	"runtime"

	"github.com/tbdingqi/tbleveldb/pkg/logger"
)

// Config holds all tunable parameters for a [PebbleDB] instance.
// Use functional [Option] values with [Open] rather than constructing
// a Config directly.
type Config struct {
	// CreateIfMissing controls whether Open creates a new database when
	// none exists at the target path. When false, opening a missing
	// database fails.
	CreateIfMissing bool

	// --- Performance Tuning ---

	// CacheSize is the shared block-cache capacity in bytes.
	// A larger cache reduces read I/O at the cost of memory.
	CacheSize int64

	// WriteBufferSize is the size of a single memtable in bytes.
	// Larger buffers improve write throughput and reduce write
	// amplification, but increase memory usage.
	WriteBufferSize uint64

	// MaxConcurrentCompactions controls parallelism for background
	// compactions. Higher values speed up compaction at the cost of
	// I/O and CPU.
	MaxConcurrentCompactions int

	// MaxOpenFiles limits the number of open file descriptors Pebble
	// keeps open. Use 0 for unlimited (recommended for SSDs).
	MaxOpenFiles int

	// L0CompactionThreshold is the number of L0 sub-levels that trigger
	// a compaction into L1. Lower values reduce read amplification at
	// the cost of more compaction work.
	L0CompactionThreshold int

	// L0StopWritesThreshold is the hard limit on L0 sub-levels. When
	// reached, foreground writes stall until compaction catches up.
	L0StopWritesThreshold int

	// SyncWrites controls whether each individual Put/Delete is synced
	// to stable storage. Batch commits are always synced regardless of
	// this setting; it only affects the direct write path.
	SyncWrites bool

	// Logger receives structured operational log messages.
	// If not set, the global logger.Default() is used.
	Logger logger.Logger
}

// DefaultConfig returns a Config with defaults tuned for a table-adapter
// workload (keyed point writes in small batches, point lookups). The
// 32 MiB write buffer matches the fixed buffer size the adapter
// historically configured on its databases.
func DefaultConfig() *Config {
	return &Config{
		CacheSize:                64 << 20, // 64 MB
		WriteBufferSize:          32 << 20, // 32 MB
		MaxConcurrentCompactions: runtime.NumCPU(),
		MaxOpenFiles:             0, // unlimited
		L0CompactionThreshold:    4,
		L0StopWritesThreshold:    12,
	}
}

// Option is a functional option applied to [Config] during [Open].
type Option func(*Config)

// WithCreateIfMissing controls whether a missing database is created.
func WithCreateIfMissing(create bool) Option {
	return func(c *Config) { c.CreateIfMissing = create }
}

// WithCacheSize sets the shared block-cache capacity in bytes.
func WithCacheSize(size int64) Option {
	return func(c *Config) { c.CacheSize = size }
}

// WithWriteBufferSize sets the memtable size in bytes.
func WithWriteBufferSize(size uint64) Option {
	return func(c *Config) { c.WriteBufferSize = size }
}

// WithMaxConcurrentCompactions sets background compaction parallelism.
func WithMaxConcurrentCompactions(n int) Option {
	return func(c *Config) { c.MaxConcurrentCompactions = n }
}

// WithMaxOpenFiles limits the number of open file descriptors.
// Use 0 for unlimited.
func WithMaxOpenFiles(n int) Option {
	return func(c *Config) { c.MaxOpenFiles = n }
}

// WithL0CompactionThreshold sets the L0 sub-level compaction trigger.
func WithL0CompactionThreshold(n int) Option {
	return func(c *Config) { c.L0CompactionThreshold = n }
}

// WithL0StopWritesThreshold sets the L0 write-stall limit.
func WithL0StopWritesThreshold(n int) Option {
	return func(c *Config) { c.L0StopWritesThreshold = n }
}

// WithSyncWrites enables per-write durability (fsync) on the direct
// Put/Delete path. Batch commits are synced unconditionally.
func WithSyncWrites(sync bool) Option {
	return func(c *Config) { c.SyncWrites = sync }
}

// WithLogger sets a custom logger for the database.
// If not set, the global logger.Default() is used.
func WithLogger(l logger.Logger) Option {
	return func(c *Config) { c.Logger = l }
}
